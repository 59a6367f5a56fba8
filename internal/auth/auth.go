package auth

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const ctxPrincipal ctxKey = "principal"

// RoleSuperAdmin may mutate entities it does not own.
const RoleSuperAdmin = "super_admin"

// Principal is the authenticated actor performing a sync call. It is
// built entirely from token claims; user management lives elsewhere.
type Principal struct {
	ID   string // subject, never empty after the middleware
	Team string // team identifier, may be empty
	Role string // e.g. "member", "admin", "super_admin"
}

// IsSuperAdmin reports whether the principal bypasses ownership checks.
func (p Principal) IsSuperAdmin() bool {
	return p.Role == RoleSuperAdmin
}

// JWTCfg holds JWT authentication configuration
type JWTCfg struct {
	HS256Secret string // HMAC secret for HS256 tokens
	DevMode     bool   // Allow X-Debug-* headers (DANGEROUS: only for local dev)
}

// Middleware creates HTTP middleware that resolves the request principal.
// Supports two modes:
// 1. Production: Bearer token with JWT validation (sub/team/role claims)
// 2. Development: X-Debug-Sub / X-Debug-Team / X-Debug-Role headers
//    (ONLY when DevMode=true)
func Middleware(cfg JWTCfg) func(http.Handler) http.Handler {
	if cfg.DevMode {
		log.Warn().Msg("SECURITY WARNING: DevMode enabled - X-Debug-Sub header will bypass JWT authentication")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := ""
			if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
				tok = h[7:]
			}

			var p Principal

			// Development mode: accept debug headers ONLY if DevMode is
			// enabled and no token is present
			if cfg.DevMode && tok == "" {
				p.ID = r.Header.Get("X-Debug-Sub")
				p.Team = r.Header.Get("X-Debug-Team")
				p.Role = r.Header.Get("X-Debug-Role")
				if p.ID != "" {
					log.Debug().Str("sub", p.ID).Msg("using X-Debug-Sub header (dev mode)")
				}
			}

			if tok != "" {
				claims := jwt.MapClaims{}
				t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, jwt.ErrSignatureInvalid
					}
					return []byte(cfg.HS256Secret), nil
				})

				if err != nil || !t.Valid {
					log.Warn().Err(err).Msg("jwt validation failed")
					unauthorized(w)
					return
				}

				if s, ok := claims["sub"].(string); ok {
					p.ID = s
				}
				if s, ok := claims["team"].(string); ok {
					p.Team = s
				}
				if s, ok := claims["role"].(string); ok {
					p.Role = s
				}
			}

			if p.ID == "" {
				log.Warn().Msg("missing subject (no JWT sub or X-Debug-Sub header)")
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), ctxPrincipal, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// unauthorized writes a 401 in the API's error envelope.
func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":true,"message":"unauthorized"}`))
}

// FromContext extracts the authenticated principal from request context.
// The zero Principal means unauthenticated (should never happen after
// the middleware).
func FromContext(ctx context.Context) Principal {
	if v := ctx.Value(ctxPrincipal); v != nil {
		if p, ok := v.(Principal); ok {
			return p
		}
	}
	return Principal{}
}
