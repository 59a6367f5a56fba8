package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func principalEcho(t *testing.T) (http.Handler, *Principal) {
	t.Helper()
	var got Principal
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		w.WriteHeader(200)
	})
	return h, &got
}

func TestMiddlewareJWT(t *testing.T) {
	const secret = "test-secret"

	tests := []struct {
		name       string
		header     func(r *http.Request)
		devMode    bool
		wantStatus int
		wantID     string
		wantTeam   string
		wantRole   string
	}{
		{
			name: "valid token with team and role",
			header: func(r *http.Request) {
				tok := signToken(t, secret, jwt.MapClaims{
					"sub":  "u1",
					"team": "t1",
					"role": "member",
					"exp":  time.Now().Add(time.Hour).Unix(),
				})
				r.Header.Set("Authorization", "Bearer "+tok)
			},
			wantStatus: 200,
			wantID:     "u1",
			wantTeam:   "t1",
			wantRole:   "member",
		},
		{
			name: "super admin role claim",
			header: func(r *http.Request) {
				tok := signToken(t, secret, jwt.MapClaims{"sub": "admin", "role": "super_admin"})
				r.Header.Set("Authorization", "Bearer "+tok)
			},
			wantStatus: 200,
			wantID:     "admin",
			wantRole:   "super_admin",
		},
		{
			name: "wrong secret rejected",
			header: func(r *http.Request) {
				tok := signToken(t, "other-secret", jwt.MapClaims{"sub": "u1"})
				r.Header.Set("Authorization", "Bearer "+tok)
			},
			wantStatus: 401,
		},
		{
			name:       "no credentials rejected",
			header:     func(r *http.Request) {},
			wantStatus: 401,
		},
		{
			name: "debug headers ignored without dev mode",
			header: func(r *http.Request) {
				r.Header.Set("X-Debug-Sub", "sneaky")
			},
			wantStatus: 401,
		},
		{
			name:    "debug headers honored in dev mode",
			devMode: true,
			header: func(r *http.Request) {
				r.Header.Set("X-Debug-Sub", "dev-user")
				r.Header.Set("X-Debug-Team", "dev-team")
				r.Header.Set("X-Debug-Role", "member")
			},
			wantStatus: 200,
			wantID:     "dev-user",
			wantTeam:   "dev-team",
			wantRole:   "member",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			echo, got := principalEcho(t)
			h := Middleware(JWTCfg{HS256Secret: secret, DevMode: tt.devMode})(echo)

			req := httptest.NewRequest("GET", "/sync/status", nil)
			tt.header(req)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != 200 {
				return
			}
			if got.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", got.ID, tt.wantID)
			}
			if got.Team != tt.wantTeam {
				t.Errorf("Team = %q, want %q", got.Team, tt.wantTeam)
			}
			if got.Role != tt.wantRole {
				t.Errorf("Role = %q, want %q", got.Role, tt.wantRole)
			}
		})
	}
}

func TestIsSuperAdmin(t *testing.T) {
	if (Principal{Role: "member"}).IsSuperAdmin() {
		t.Error("member should not be super admin")
	}
	if !(Principal{Role: "super_admin"}).IsSuperAdmin() {
		t.Error("super_admin should be super admin")
	}
}
