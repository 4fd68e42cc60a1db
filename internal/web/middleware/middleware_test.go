package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/JonMunkholm/stockroom/internal/core"
)

func actorEcho(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := core.ActorFromContext(r.Context())
		if !ok {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(a.Username))
	})
}

func TestAuthenticate(t *testing.T) {
	cfg := &config.SecurityConfig{APIKeys: []string{"key-one", "key-two"}}
	lookup := func(_ context.Context, token string) (core.Actor, bool) {
		if token == "good" {
			return core.Actor{ID: 7, Username: "ana", Role: core.RoleUser}, true
		}
		return core.Actor{}, false
	}
	h := Authenticate(cfg, lookup)(actorEcho(t))

	tests := []struct {
		name       string
		apiKey     string
		cookie     string
		wantStatus int
		wantBody   string
	}{
		{"anonymous", "", "", http.StatusOK, "anonymous"},
		{"valid session", "", "good", http.StatusOK, "ana"},
		{"unknown session", "", "stale", http.StatusOK, "anonymous"},
		{"valid api key", "key-two", "", http.StatusOK, "api"},
		{"api key wins over cookie", "key-one", "good", http.StatusOK, "api"},
		{"invalid api key", "nope", "good", http.StatusForbidden, "AUTH_INVALID_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/products", nil)
			if tt.apiKey != "" {
				req.Header.Set("X-API-Key", tt.apiKey)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireAuth(ok)

	t.Run("browser redirected to login", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products?status=agotado", nil))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("status = %d, want 303", rec.Code)
		}
		want := "/login?next=%2Fproducts%3Fstatus%3Dagotado"
		if got := rec.Header().Get("Location"); got != want {
			t.Errorf("Location = %q, want %q", got, want)
		}
	})

	t.Run("api gets 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("authenticated passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req = req.WithContext(core.ContextWithActor(req.Context(), core.Actor{ID: 1}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RequireAdmin(ok)

	tests := []struct {
		name  string
		actor *core.Actor
		want  int
	}{
		{"anonymous", nil, http.StatusForbidden},
		{"plain user", &core.Actor{ID: 2, Role: core.RoleUser}, http.StatusForbidden},
		{"admin", &core.Actor{ID: 1, Role: core.RoleAdmin}, http.StatusNoContent},
		{"api key", &APIActor, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/settings/usuarios", nil)
			if tt.actor != nil {
				req = req.WithContext(core.ContextWithActor(req.Context(), *tt.actor))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestIsValidAPIKey(t *testing.T) {
	keys := []string{"alpha", "beta"}
	tests := []struct {
		key  string
		want bool
	}{
		{"alpha", true},
		{"beta", true},
		{"gamma", false},
		{"alph", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isValidAPIKey(tt.key, keys); got != tt.want {
			t.Errorf("isValidAPIKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
	if isValidAPIKey("alpha", nil) {
		t.Error("no configured keys must reject every key")
	}
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		realIP     string
		forwarded  string
		want       string
	}{
		{"untrusted keeps connection ip", []string{"10.0.0.0/8"}, "203.0.113.5:4000", "1.2.3.4", "", "203.0.113.5"},
		{"trusted uses x-real-ip", []string{"10.0.0.0/8"}, "10.1.2.3:4000", "198.51.100.7", "", "198.51.100.7"},
		{"trusted uses first forwarded hop", []string{"10.0.0.0/8"}, "10.1.2.3:4000", "", "198.51.100.8, 10.0.0.1", "198.51.100.8"},
		{"single address entry", []string{"127.0.0.1"}, "127.0.0.1:5000", "198.51.100.9", "", "198.51.100.9"},
		{"invalid header ignored", []string{"10.0.0.0/8"}, "10.1.2.3:4000", "not-an-ip", "", "10.1.2.3"},
		{"no trusted proxies", nil, "192.0.2.1:80", "1.2.3.4", "", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoggerCapturesStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		RecordActor(core.ContextWithActor(r.Context(), core.Actor{Username: "ana"}))
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want first WriteHeader to win", rec.Code)
	}
}
