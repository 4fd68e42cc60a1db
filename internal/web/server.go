// Package web provides the HTTP server: server-rendered pages for the
// browser and a JSON API under /api served by the same handlers.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/JonMunkholm/stockroom/internal/core"
	mw "github.com/JonMunkholm/stockroom/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed static
var staticFiles embed.FS

// Server is the HTTP server for the inventory application.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	sessions *sessionStore
	accounts accountSource
	router   *chi.Mux
	server   *http.Server
}

// NewServer creates a new Server instance.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		cfg:      cfg,
		sessions: newSessionStore(cfg.Security.SessionTTL),
		router:   chi.NewRouter(),
	}
	if service != nil {
		s.accounts = service
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if d := s.cfg.Server.RequestTimeout; d > 0 {
		s.router.Use(middleware.Timeout(d))
	}
	s.router.Use(securityHeaders)

	if n := s.cfg.Security.RateLimitPerMinute; n > 0 {
		limiter := newRateLimiter(n, time.Minute)
		s.router.Use(limiter.middleware)
	}

	s.router.Use(requestMetadata)
	s.router.Use(mw.Authenticate(&s.cfg.Security, s.lookupSession))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/login", s.handleLoginPage)
	s.router.Post("/login", s.handleLogin)
	s.router.Get("/register", s.handleRegisterPage)
	s.router.Post("/register", s.handleRegister)

	// Pages
	s.router.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth)
		r.Post("/logout", s.handleLogout)
		r.Get("/", s.handleDashboard)
		s.routes(r)
	})

	// JSON API. Login and register work without a session so API
	// clients can bootstrap one.
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/register", s.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAuth)
			r.Post("/logout", s.handleLogout)
			r.Get("/me", s.handleMe)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/notifications", s.handleNotifications)
			r.Post("/stock/refresh", s.handleRefreshStock)

			r.Get("/lookups/{table}", s.handleComboOptions)
			r.Get("/lookups/{table}/id", s.handleIDByName)
			r.Get("/inventory/categories", s.handleInventoryCategories)
			r.Get("/inventory/products", s.handleInventoryProducts)
			r.Get("/inventory/lookup", s.handleProductDetails)
			r.Get("/products/{id}/name", s.handleProductName)
			r.Get("/purchases/categories", s.handleCategoryNames)
			r.Get("/purchases/products", s.handleProductsByCategory)
			r.Get("/purchases/suppliers", s.handleSupplierNames)
			r.Get("/requests/categories", s.handleCategories)
			r.Get("/requests/departments", s.handleDepartments)
			r.Get("/requests/requesters", s.handleRequesters)
			r.Get("/requests/{id}/items", s.handleRequestItems)
			r.Get("/suppliers/by-name/{name}", s.handleSupplierByName)
			r.Get("/suppliers/{id}/categories", s.handleSupplierCategories)
			r.Get("/suppliers/{id}/products", s.handleSupplierProducts)
			r.Get("/suppliers/{id}/available-products", s.handleAvailableProducts)
			r.Get("/settings/{table}/active", s.handleSettingsActive)
			r.Get("/options/{related}", s.handleRelatedOptions)
			r.Get("/users", s.handleActiveUsers)
			r.With(mw.RequireAdmin).Post("/users", s.handleCreateUser)

			// REST verbs alongside the form-friendly POST routes.
			r.Put("/products/{id}", s.handleSaveProduct)
			r.Delete("/products/{id}", s.handleDeleteProduct)
			r.Patch("/purchases/{id}", s.handlePurchaseStatus)
			r.Delete("/purchases/{id}", s.handleDeletePurchase)
			r.Put("/suppliers/{id}", s.handleSaveSupplier)
			r.Delete("/suppliers/{id}", s.handleDeleteSupplier)
			r.Delete("/suppliers/{id}/products/{productID}", s.handleRemoveSupplierProduct)
			r.With(s.adminForUsers).Put("/settings/{table}/{id}", s.handleSettingsSave)
			r.With(s.adminForUsers).Delete("/settings/{table}/{id}", s.handleSettingsDelete)

			s.routes(r)
		})
	})
}

// routes registers the endpoints shared by pages and the API. Handlers
// pick HTML or JSON per request.
func (s *Server) routes(r chi.Router) {
	r.Post("/account/password", s.handleChangePassword)

	r.Get("/products", s.handleProducts)
	r.Post("/products", s.handleSaveProduct)
	r.Get("/products/{id}", s.handleProduct)
	r.Post("/products/{id}", s.handleSaveProduct)
	r.Post("/products/{id}/delete", s.handleDeleteProduct)
	r.Post("/products/{id}/stock", s.handleAddStock)
	r.Post("/products/lookups/{table}", s.handleAddLookup)
	r.Get("/products/low", s.handleNotifications)

	r.Get("/purchases", s.handlePurchases)
	r.Post("/purchases", s.handleCreatePurchase)
	r.Post("/purchases/{id}/status", s.handlePurchaseStatus)
	r.Post("/purchases/{id}/delete", s.handleDeletePurchase)

	r.Get("/movements", s.handleMovements)
	r.Post("/movements", s.handleRegisterMovement)

	r.Get("/requests", s.handleRequests)
	r.Post("/requests", s.handleCreateRequest)
	r.Get("/requests/{id}", s.handleRequest)
	r.Post("/requests/departments", s.handleAddDepartment)
	r.Post("/requests/requesters", s.handleAddRequester)

	r.Get("/suppliers", s.handleSuppliers)
	r.Post("/suppliers", s.handleSaveSupplier)
	r.Get("/suppliers/{id}", s.handleSupplier)
	r.Post("/suppliers/{id}", s.handleSaveSupplier)
	r.Post("/suppliers/{id}/delete", s.handleDeleteSupplier)
	r.Post("/suppliers/{id}/category", s.handleSetSupplierCategory)
	r.Post("/suppliers/{id}/products", s.handleAddSupplierProduct)
	r.Post("/suppliers/{id}/products/{productID}/delete", s.handleRemoveSupplierProduct)

	r.Get("/settings", s.handleSettingsIndex)
	r.Get("/settings/{table}", s.handleSettingsTable)
	r.With(s.adminForUsers).Post("/settings/{table}", s.handleSettingsSave)
	r.Get("/settings/{table}/{id}", s.handleSettingsItem)
	r.With(s.adminForUsers).Post("/settings/{table}/{id}", s.handleSettingsSave)
	r.With(s.adminForUsers).Post("/settings/{table}/{id}/activate", s.handleSettingsActivate)
	r.With(s.adminForUsers).Post("/settings/{table}/{id}/deactivate", s.handleSettingsDeactivate)
	r.With(s.adminForUsers).Post("/settings/{table}/{id}/delete", s.handleSettingsDelete)

	r.With(mw.RequireAdmin).Get("/audit-log", s.handleAuditLog)
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		writeJSON(w, map[string]string{"status": "ok"})
		return
	}
	if err := s.service.Ping(r.Context()); err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		// Confirmation prompts on delete buttons are inline handlers.
		h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self'; img-src 'self' data:; font-src 'self'")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// rateLimiter implements a fixed-window request budget per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
	go rl.cleanup()
	return rl
}

// cleanup removes stale visitor entries every minute.
func (rl *rateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.sweep()
	}
}

func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rate limits by RemoteAddr, which TrustedRealIP has already
// resolved to the client address.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(r.RemoteAddr) {
			w.Header().Set("Retry-After", fmt.Sprint(int(rl.window.Seconds())))
			msg := core.MapError(core.ErrRateLimited)
			respondErrorJSON(w, msg, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with a 200 status.
func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

// writeJSONStatus encodes v as JSON. Encoding errors are only logged since
// the header is already sent.
func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
