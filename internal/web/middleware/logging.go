// Package middleware provides HTTP middleware for the web server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/logging"
)

// Logger is an HTTP middleware that logs request details using structured logging.
// Entries carry chi's request id through logging.FromContext, plus the
// authenticated username when one is known. Static assets log at debug.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK, ctx: r.Context()}

		next.ServeHTTP(ww, r.WithContext(withRecorder(r.Context(), ww)))

		duration := time.Since(start)
		logger := logging.FromContext(r.Context())

		level := slog.LevelInfo
		switch {
		case ww.status >= http.StatusInternalServerError:
			level = slog.LevelError
		case strings.HasPrefix(r.URL.Path, "/static/"):
			level = slog.LevelDebug
		}

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.status,
			"duration_ms", duration.Milliseconds(),
			"ip", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		}
		if a, ok := core.ActorFromContext(ww.ctx); ok {
			attrs = append(attrs, "user", a.Username)
		}
		logger.Log(r.Context(), level, "request", attrs...)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool

	// ctx is replaced by later middleware that learns the actor.
	ctx context.Context
}

type recorderKey struct{}

func withRecorder(ctx context.Context, w *responseWriter) context.Context {
	return context.WithValue(ctx, recorderKey{}, w)
}

// RecordActor lets authentication middleware running after Logger report
// the resolved user back to the access log.
func RecordActor(ctx context.Context) {
	if w, ok := ctx.Value(recorderKey{}).(*responseWriter); ok {
		w.ctx = ctx
	}
}

func (w *responseWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
