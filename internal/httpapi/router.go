package httpapi

import (
	"net/http"

	"github.com/creativehub/sync-api/internal/auth"
	"github.com/creativehub/sync-api/internal/syncservice"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Server holds dependencies for HTTP handlers
type Server struct {
	DB     *pgxpool.Pool
	Push   *syncservice.PushService
	Pull   *syncservice.PullService
	Status *syncservice.StatusService

	PullPageSize int
	RateLimit    RateLimitConfig
}

// Routes creates the HTTP router with all sync endpoints
func (s *Server) Routes(jwt auth.JWTCfg) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CorrelationMiddleware)

	// Health check (unauthenticated)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	})

	// All sync endpoints require an authenticated principal
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwt))
		r.Use(DeviceMiddleware)
		r.Use(RateLimitMiddleware(s.RateLimit))

		r.Get("/sync/status", s.GetStatus)
		r.Get("/sync/pull", s.GetPull)
		r.Post("/sync/push", s.PostPush)
	})

	log.Info().Msg("HTTP routes registered")
	return r
}
