package web

// Shared utilities for the handlers: rendering, input binding, redirects.

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/web/templates"
	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds JSON and form payloads.
const maxBodyBytes = 1 << 20

// dateLayout is the format of date filters and date inputs.
const dateLayout = "2006-01-02"

// flashMessages maps the ?ok= code set by redirects to the banner text.
var flashMessages = map[string]string{
	"saved":       "Cambios guardados",
	"created":     "Registro creado",
	"deleted":     "Registro eliminado",
	"deactivated": "El registro está en uso; se desactivó en lugar de eliminarse",
	"activated":   "Registro activado",
	"stock":       "Stock actualizado",
	"registered":  "Cuenta creada; ya puede iniciar sesión",
	"password":    "Contraseña actualizada",
}

// render writes c as a 200 HTML page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	s.renderStatus(w, r, http.StatusOK, c)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "path", r.URL.Path, "error", err)
	}
}

// page builds the shell data shared by every page.
func (s *Server) page(r *http.Request, title, nav string) templates.Page {
	p := templates.Page{
		Title: title,
		Nav:   nav,
		Flash: flashMessages[r.URL.Query().Get("ok")],
	}
	if a, ok := core.ActorFromContext(r.Context()); ok {
		p.Actor = &a
		if s.service != nil {
			if low, err := s.service.LowStock(r.Context()); err == nil {
				p.Notice = len(low)
			}
		}
	}
	return p
}

// done finishes a successful mutation: JSON clients get payload with
// status, browsers are redirected (POST/redirect/GET) to target.
func done(w http.ResponseWriter, r *http.Request, status int, payload interface{}, target string) {
	if wantsJSON(r) {
		if payload == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSONStatus(w, status, payload)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// withFlash appends the ?ok= code to a redirect target.
func withFlash(target, code string) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + "ok=" + url.QueryEscape(code)
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, core.ValidationError{Field: name, Value: raw, Message: "invalid number"}
	}
	return id, nil
}

// queryInt parses an optional integer query parameter; anything invalid
// means "no filter".
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// queryDate parses a yyyy-mm-dd query parameter. endOfDay moves the
// result to the last instant of that day so ranges are inclusive.
func queryDate(r *http.Request, name string, endOfDay bool) (time.Time, string) {
	raw := r.URL.Query().Get(name)
	t, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		return time.Time{}, ""
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, raw
}

// bind fills v from a JSON body, or runs fromForm for form posts.
func bind(r *http.Request, v interface{}, fromForm func(f *formReader)) error {
	if isJSONBody(r) {
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
		if err := dec.Decode(v); err != nil {
			return core.ValidationError{Field: "body", Message: fmt.Sprintf("validation failed: invalid JSON: %v", err)}
		}
		return nil
	}
	f, err := newFormReader(r)
	if err != nil {
		return err
	}
	fromForm(f)
	return f.err()
}

// formReader reads typed form values, collecting conversion failures.
type formReader struct {
	values url.Values
	errs   core.ValidationErrors
}

func newFormReader(r *http.Request) (*formReader, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return nil, core.ValidationError{Field: "form", Message: "validation failed: " + err.Error()}
	}
	return &formReader{values: r.PostForm}, nil
}

func (f *formReader) text(name string) string {
	return strings.TrimSpace(f.values.Get(name))
}

// all returns every value submitted under name.
func (f *formReader) all(name string) []string {
	return f.values[name]
}

// number parses an integer field; empty is zero.
func (f *formReader) number(name string) int {
	raw := f.text(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		f.errs = append(f.errs, core.ValidationError{Field: name, Value: raw, Message: "invalid number"})
	}
	return n
}

// optNumber parses an integer field; empty is nil.
func (f *formReader) optNumber(name string) *int {
	if f.text(name) == "" {
		return nil
	}
	n := f.number(name)
	return &n
}

// fields returns the submitted values as a map for the settings engine.
// For repeated names the last value wins, so a checkbox overrides the
// hidden "off" rendered before it.
func (f *formReader) fields() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, vals := range f.values {
		if len(vals) > 0 {
			out[k] = strings.TrimSpace(vals[len(vals)-1])
		}
	}
	return out
}

func (f *formReader) err() error {
	if len(f.errs) == 0 {
		return nil
	}
	return f.errs
}

// safeRedirect accepts only local paths so ?next= cannot send users
// off-site.
func safeRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	return target
}
