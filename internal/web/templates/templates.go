// Package templates renders the server-side HTML views.
//
// Views are written as templ components in the .templ files next to this
// one; the _templ.go files are generated with `templ generate` and
// committed. This file holds the plain Go helpers the components share.
package templates

//go:generate templ generate

import (
	"net/url"
	"strconv"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/a-h/templ"
)

type navItem struct{ key, href, label string }

var navigation = []navItem{
	{"dashboard", "/", "Inicio"},
	{"products", "/products", "Inventario"},
	{"purchases", "/purchases", "Compras"},
	{"movements", "/movements", "Movimientos"},
	{"requests", "/requests", "Solicitudes"},
	{"suppliers", "/suppliers", "Proveedores"},
	{"settings", "/settings", "Configuración"},
	{"audit", "/audit-log", "Auditoría"},
}

func itoa(n int) string { return strconv.Itoa(n) }

func date(v interface{}) string { return core.FormatValue(v) }

func intPtr(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

// columnCount is the number of cells a dataTable row spans.
func columnCount(headers []string, actions func(i int) templ.Component) int {
	if actions != nil {
		return len(headers) + 1
	}
	return len(headers)
}

func loginAction(next string) string {
	if next == "" {
		return "/login"
	}
	return "/login?next=" + url.QueryEscape(next)
}

// auditPageURL links to another page of the audit log with the same
// filter. Filter values come from the query string and are re-encoded.
func auditPageURL(f core.AuditLogFilter, offset int) string {
	q := url.Values{}
	q.Set("table", f.TableKey)
	q.Set("action", string(f.Action))
	q.Set("offset", strconv.Itoa(offset))
	return "/audit-log?" + q.Encode()
}
