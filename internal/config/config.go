package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the sync service.
// Values come from environment variables (SYNCAPI_* prefix) with an
// optional YAML file overriding defaults.
type Config struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	DatabaseURL string `mapstructure:"database_url"`

	JWTSecret string `mapstructure:"jwt_secret"`
	DevMode   bool   `mapstructure:"dev_mode"`

	// ConflictStrategy is applied to every version conflict in the
	// deployment: server_wins, client_wins, or newest_wins.
	ConflictStrategy string `mapstructure:"conflict_strategy"`

	// PullPageSize caps rows returned per entity type per pull call.
	PullPageSize int `mapstructure:"pull_page_size"`
	// PushBatchLimit caps the number of change items in one push call.
	PushBatchLimit int `mapstructure:"push_batch_limit"`

	RateLimitWindowSeconds int `mapstructure:"rate_limit_window_seconds"`
	RateLimitMaxRequests   int `mapstructure:"rate_limit_max_requests"`
	RateLimitBurst         int `mapstructure:"rate_limit_burst"`

	LogLevel string `mapstructure:"log_level"`
	// LogFile enables a rotating file sink when set; empty means stderr only.
	LogFile string `mapstructure:"log_file"`
}

const maxPullPageSize = 1000

var validStrategies = map[string]bool{
	"server_wins": true,
	"client_wins": true,
	"newest_wins": true,
}

// Load reads configuration from the environment and, if path is non-empty,
// a YAML config file. File values override defaults; env overrides both.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_addr", ":8081")
	v.SetDefault("database_url", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("dev_mode", false)
	v.SetDefault("conflict_strategy", "server_wins")
	v.SetDefault("pull_page_size", maxPullPageSize)
	v.SetDefault("push_batch_limit", 500)
	v.SetDefault("rate_limit_window_seconds", 60)
	v.SetDefault("rate_limit_max_requests", 600)
	v.SetDefault("rate_limit_burst", 120)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("SYNCAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the sync engine cannot honor. An unknown
// conflict strategy is a hard error rather than a silent fallback.
func (c *Config) Validate() error {
	if !validStrategies[c.ConflictStrategy] {
		return fmt.Errorf("unsupported conflict_strategy %q (want server_wins, client_wins, or newest_wins)", c.ConflictStrategy)
	}
	if c.PullPageSize <= 0 || c.PullPageSize > maxPullPageSize {
		return fmt.Errorf("pull_page_size must be in 1..%d, got %d", maxPullPageSize, c.PullPageSize)
	}
	if c.PushBatchLimit <= 0 {
		return fmt.Errorf("push_batch_limit must be positive, got %d", c.PushBatchLimit)
	}
	if c.RateLimitWindowSeconds <= 0 || c.RateLimitMaxRequests <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}
