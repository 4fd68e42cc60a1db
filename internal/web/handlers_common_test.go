package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/stockroom/internal/core"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rl := &rateLimiter{visitors: make(map[string]*visitor), rate: 3, window: time.Minute,
		now: func() time.Time { return now }}

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied within budget", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("fourth request allowed")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("other IP must have its own budget")
	}

	now = now.Add(61 * time.Second)
	if !rl.allow("10.0.0.1") {
		t.Error("budget not reset after the window")
	}

	now = now.Add(5 * time.Minute)
	rl.sweep()
	if len(rl.visitors) != 0 {
		t.Errorf("sweep left %d visitors", len(rl.visitors))
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := &rateLimiter{visitors: make(map[string]*visitor), rate: 1, window: time.Minute, now: time.Now}
	h := rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if !strings.Contains(rec.Body.String(), "RATE001") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ValidationErrors{{Field: "nombre", Message: "required field is empty"}}, http.StatusBadRequest},
		{fmt.Errorf("save: %w", core.ValidationError{Field: "stock"}), http.StatusBadRequest},
		{core.ErrInvalidQuantity, http.StatusBadRequest},
		{core.ErrInvalidCredentials, http.StatusUnauthorized},
		{core.ErrInactiveUser, http.StatusForbidden},
		{core.ErrForbidden, http.StatusForbidden},
		{&core.InsufficientStockError{ProductID: 1, Requested: 5}, http.StatusConflict},
		{fmt.Errorf("delete marcas 3: %w: %w", core.ErrInUse, core.ErrSoftDeleteUnsupported), http.StatusConflict},
		{core.ErrDuplicateUser, http.StatusConflict},
		{fmt.Errorf("get: %w", core.ErrNotFound), http.StatusNotFound},
		{core.ErrUnknownTable, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		path        string
		accept      string
		contentType string
		want        bool
	}{
		{"/api/products", "", "", true},
		{"/products", "application/json", "", true},
		{"/products", "", "application/json; charset=utf-8", true},
		{"/products", "text/html", "application/x-www-form-urlencoded", false},
		{"/apix", "", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Header.Set("Accept", tt.accept)
		req.Header.Set("Content-Type", tt.contentType)
		if got := wantsJSON(req); got != tt.want {
			t.Errorf("wantsJSON(%s, %q, %q) = %v, want %v", tt.path, tt.accept, tt.contentType, got, tt.want)
		}
	}
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"":                "/",
		"/products":       "/products",
		"/products?a=b":   "/products?a=b",
		"//evil.example":  "/",
		"https://evil.io": "/",
		"/\\evil":         "/",
	}
	for in, want := range tests {
		if got := safeRedirect(in); got != want {
			t.Errorf("safeRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWithFlash(t *testing.T) {
	if got := withFlash("/products", "saved"); got != "/products?ok=saved" {
		t.Errorf("got %q", got)
	}
	if got := withFlash("/products?status=agotado", "stock"); got != "/products?status=agotado&ok=stock" {
		t.Errorf("got %q", got)
	}
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestRequestLines(t *testing.T) {
	req := formRequest(url.Values{
		"productId": {"4", "", "9", ""},
		"quantity":  {"2", "", "1", "7"},
	})
	f, err := newFormReader(req)
	if err != nil {
		t.Fatal(err)
	}
	items := requestLines(f)
	want := []core.RequestItem{{ProductID: 4, Quantity: 2}, {ProductID: 9, Quantity: 1}}
	if len(items) != len(want) {
		t.Fatalf("items = %+v, want %+v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("items[%d] = %+v, want %+v", i, items[i], want[i])
		}
	}
	if f.err() != nil {
		t.Errorf("unexpected error %v", f.err())
	}
}

func TestRequestLinesBadQuantity(t *testing.T) {
	f, err := newFormReader(formRequest(url.Values{"productId": {"4"}, "quantity": {"dos"}}))
	if err != nil {
		t.Fatal(err)
	}
	if items := requestLines(f); len(items) != 0 {
		t.Errorf("items = %+v, want none", items)
	}
	if f.err() == nil {
		t.Error("expected a validation error")
	}
}

func TestFormReader(t *testing.T) {
	f, err := newFormReader(formRequest(url.Values{
		"name":     {"  Lápiz  "},
		"stock":    {"12"},
		"minStock": {""},
		"bad":      {"x"},
		"activo":   {"off", "on"},
	}))
	if err != nil {
		t.Fatal(err)
	}
	if got := f.text("name"); got != "Lápiz" {
		t.Errorf("text = %q", got)
	}
	if got := f.number("stock"); got != 12 {
		t.Errorf("number = %d", got)
	}
	if got := f.optNumber("minStock"); got != nil {
		t.Errorf("optNumber = %v, want nil", *got)
	}
	if f.err() != nil {
		t.Fatalf("unexpected error %v", f.err())
	}
	f.number("bad")
	if f.err() == nil {
		t.Error("expected error for a non-numeric field")
	}
	if got := f.fields()["activo"]; got != "on" {
		t.Errorf("fields()[activo] = %q, want the checkbox to override the hidden field", got)
	}
}

func TestQueryDate(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?from=2024-03-01&to=2024-03-02&bad=03/01/2024", nil)

	from, raw := queryDate(req, "from", false)
	if raw != "2024-03-01" || from.Day() != 1 || from.Hour() != 0 {
		t.Errorf("from = %v %q", from, raw)
	}
	to, _ := queryDate(req, "to", true)
	if to.Day() != 2 || to.Hour() != 23 || to.Minute() != 59 {
		t.Errorf("to = %v, want end of day", to)
	}
	if bad, raw := queryDate(req, "bad", false); !bad.IsZero() || raw != "" {
		t.Errorf("bad date parsed as %v", bad)
	}
}

func TestSupplierRatingAndPositive(t *testing.T) {
	if r := supplierRating("4"); r == nil || *r != 4 {
		t.Errorf("supplierRating(4) = %v", r)
	}
	if r := supplierRating("Sin valoración"); r != nil {
		t.Errorf("supplierRating(label) = %v, want nil", *r)
	}
	zero, three := 0, 3
	if positive(&zero) != nil {
		t.Error("positive(0) must be nil")
	}
	if p := positive(&three); p == nil || *p != 3 {
		t.Error("positive(3) must keep the value")
	}
}
