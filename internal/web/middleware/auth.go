package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/JonMunkholm/stockroom/internal/core"
)

// SessionCookie is the name of the browser session cookie.
const SessionCookie = "stockroom_session"

// APIActor is the identity attached to requests authenticated by API key.
// It has no user row, so audit entries record a NULL user_id.
var APIActor = core.Actor{Name: "API", Username: "api", Role: core.RoleAdmin}

// SessionLookup resolves a session token to its user. It runs on every
// request carrying a session cookie.
type SessionLookup func(ctx context.Context, token string) (core.Actor, bool)

// Authenticate attaches the caller's identity to the request context.
//
// An X-API-Key header is checked first; a present but unknown key is
// rejected outright. Otherwise the session cookie is resolved through
// lookup. Requests with neither pass through anonymous; RequireAuth
// decides what an anonymous caller may see.
func Authenticate(cfg *config.SecurityConfig, lookup SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
				if !isValidAPIKey(apiKey, cfg.APIKeys) {
					slog.Warn("auth: invalid API key",
						"path", r.URL.Path,
						"method", r.Method,
						"remote_addr", r.RemoteAddr,
					)
					writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
					return
				}
				ctx := core.ContextWithActor(r.Context(), APIActor)
				RecordActor(ctx)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
				if actor, ok := lookup(r.Context(), c.Value); ok {
					ctx := core.ContextWithActor(r.Context(), actor)
					RecordActor(ctx)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects anonymous requests: API callers get 401, browsers
// are redirected to the login page.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := core.ActorFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		if isAPIRequest(r) {
			writeAuthError(w, http.StatusUnauthorized, "authentication required", "AUTH_REQUIRED")
			return
		}
		target := "/login"
		if r.Method == http.MethodGet && r.URL.Path != "/" {
			target += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		http.Redirect(w, r, target, http.StatusSeeOther)
	})
}

// RequireAdmin allows only admin actors through.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a, ok := core.ActorFromContext(r.Context()); ok && a.IsAdmin() {
			next.ServeHTTP(w, r)
			return
		}
		slog.Warn("auth: admin required",
			"path", r.URL.Path,
			"method", r.Method,
			"remote_addr", r.RemoteAddr,
		)
		if isAPIRequest(r) {
			writeAuthError(w, http.StatusForbidden, "admin role required", "AUTH_FORBIDDEN")
			return
		}
		http.Error(w, "Permiso denegado", http.StatusForbidden)
	})
}

// isValidAPIKey checks if the provided key matches any configured key.
// Every key is compared so the timing does not depend on which one matches.
func isValidAPIKey(key string, validKeys []string) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(validKey))
	}
	return valid == 1
}

func isAPIRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `","code":"` + code + `"}`))
}
