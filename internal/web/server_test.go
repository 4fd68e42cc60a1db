package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/JonMunkholm/stockroom/internal/core"
	mw "github.com/JonMunkholm/stockroom/internal/web/middleware"
)

// newTestServer builds a server without a database. Only routes that fail
// or finish before reaching the service can be exercised.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Security: config.SecurityConfig{
			SessionTTL: time.Hour,
			APIKeys:    []string{"test-key"},
		},
	}
	return NewServer(nil, cfg)
}

func (s *Server) loginAs(req *http.Request, a core.Actor) {
	req.AddCookie(&http.Cookie{Name: mw.SessionCookie, Value: s.sessions.Create(a)})
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if !strings.Contains(rec.Header().Get("Content-Security-Policy"), "default-src 'self'") {
		t.Error("expected a Content-Security-Policy header")
	}
}

func TestStaticAssets(t *testing.T) {
	s := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "table.data") {
		t.Error("stylesheet content missing")
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantLoc    string
	}{
		{"dashboard redirects", http.MethodGet, "/", http.StatusSeeOther, "/login"},
		{"page redirects with next", http.MethodGet, "/products", http.StatusSeeOther, "/login?next=%2Fproducts"},
		{"form post redirects", http.MethodPost, "/products", http.StatusSeeOther, "/login"},
		{"api is 401", http.MethodGet, "/api/products", http.StatusUnauthorized, ""},
		{"api mutation is 401", http.MethodDelete, "/api/products/3", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantLoc != "" {
				if got := rec.Header().Get("Location"); got != tt.wantLoc {
					t.Errorf("Location = %q, want %q", got, tt.wantLoc)
				}
			}
		})
	}
}

func TestLoginPage(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/login?next=/purchases", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `action="/login?next=%2Fpurchases"`) {
		t.Errorf("login form does not carry next: %s", body)
	}

	// An authenticated visitor is sent home.
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	s.loginAs(req, core.Actor{ID: 1, Username: "ana", Role: core.RoleUser})
	rec = serve(s, req)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/" {
		t.Errorf("got %d %q, want redirect to /", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	token := s.sessions.Create(core.Actor{ID: 1, Username: "ana"})

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(&http.Cookie{Name: mw.SessionCookie, Value: token})
	rec := serve(s, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Fatalf("got %d %q, want redirect to /login", rec.Code, rec.Header().Get("Location"))
	}
	if _, ok := s.sessions.Lookup(token); ok {
		t.Error("session still valid after logout")
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Errorf("expected an expiring session cookie, got %+v", cookies)
	}
}

func TestMeWithAPIKey(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("X-API-Key", "test-key")
	rec := serve(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var a core.Actor
	if err := json.NewDecoder(rec.Body).Decode(&a); err != nil {
		t.Fatal(err)
	}
	if a.Username != "api" || !a.IsAdmin() {
		t.Errorf("actor = %+v, want the API actor", a)
	}
}

func TestUserSettingsRequireAdmin(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/settings/usuarios",
		"/settings/usuarios/4",
		"/settings/usuarios/4/deactivate",
		"/settings/usuarios/4/delete",
	} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		s.loginAs(req, core.Actor{ID: 2, Username: "luis", Role: core.RoleUser})
		if rec := serve(s, req); rec.Code != http.StatusForbidden {
			t.Errorf("POST %s: status = %d, want 403", path, rec.Code)
		}
	}

	for _, method := range []string{http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/api/settings/usuarios/4", nil)
		s.loginAs(req, core.Actor{ID: 2, Username: "luis", Role: core.RoleUser})
		if rec := serve(s, req); rec.Code != http.StatusForbidden {
			t.Errorf("%s /api/settings/usuarios/4: status = %d, want 403", method, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit-log", nil)
	s.loginAs(req, core.Actor{ID: 2, Username: "luis", Role: core.RoleUser})
	if rec := serve(s, req); rec.Code != http.StatusForbidden {
		t.Errorf("audit log: status = %d, want 403", rec.Code)
	}
}

func TestInvalidInputRejectedBeforeService(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		wantCode    string
	}{
		{"bad json", http.MethodPost, "/api/products", "application/json", "{", "VAL006"},
		{"bad path id", http.MethodPost, "/api/products/abc/stock", "application/json", `{"quantity":1}`, "VAL002"},
		{"bad form number", http.MethodPost, "/api/movements", "application/x-www-form-urlencoded", "productId=x&type=Entrada&quantity=1", "VAL002"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			req.Header.Set("X-API-Key", "test-key")
			rec := serve(s, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestBrowserErrorRendersPage(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/products/abc/delete", nil)
	s.loginAs(req, core.Actor{ID: 1, Username: "ana", Name: "Ana", Role: core.RoleUser})
	rec := serve(s, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want HTML", ct)
	}
	if !strings.Contains(rec.Body.String(), "VAL002") {
		t.Error("error page does not show the error code")
	}
}
