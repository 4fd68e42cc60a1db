package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/stockroom/internal/core"
)

// WithRequestMetadata adds IP and User-Agent to context for audit logging.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ip := r.RemoteAddr // Already resolved by TrustedRealIP
	ua := r.Header.Get("User-Agent")
	ctx = core.ContextWithIPAddress(ctx, ip)
	ctx = core.ContextWithUserAgent(ctx, ua)
	return ctx
}

// requestMetadata applies WithRequestMetadata to every request so service
// calls can audit without threading the request through.
func requestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithRequestMetadata(r.Context(), r)))
	})
}

// actor returns the authenticated user. Routes behind RequireAuth always
// have one.
func actor(r *http.Request) core.Actor {
	a, _ := core.ActorFromContext(r.Context())
	return a
}
