package templates

import (
	"context"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/a-h/templ"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var b strings.Builder
	if err := c.Render(context.Background(), &b); err != nil {
		t.Fatalf("render: %v", err)
	}
	return b.String()
}

func TestLayoutEscapesAndHighlights(t *testing.T) {
	p := Page{
		Title:  "<script>",
		Nav:    "products",
		Actor:  &core.Actor{Name: "Ana <Admin>", Role: core.RoleAdmin},
		Flash:  "Cambios guardados",
		Notice: 3,
	}
	html := renderString(t, Layout(p))

	if strings.Contains(html, "<script>") {
		t.Error("title not escaped")
	}
	if !strings.Contains(html, `<a href="/products" class="active">`) {
		t.Error("active navigation entry not highlighted")
	}
	if !strings.Contains(html, "Ana &lt;Admin&gt;") {
		t.Error("actor name not escaped")
	}
	if !strings.Contains(html, `class="badge"`) || !strings.Contains(html, ">3<") {
		t.Error("notice badge missing")
	}
	if !strings.Contains(html, `class="flash"`) {
		t.Error("flash banner missing")
	}
}

func TestDataTable(t *testing.T) {
	noActions := func(int) templ.Component { return templ.NopComponent }

	tests := []struct {
		name    string
		rows    [][]string
		actions func(int) templ.Component
		want    []string
		notWant []string
	}{
		{
			name:    "empty with actions",
			actions: noActions,
			want:    []string{`colspan="3"`, "Sin registros"},
		},
		{
			name: "empty without actions",
			want: []string{`colspan="2"`},
		},
		{
			name:    "cells are escaped",
			rows:    [][]string{{"1", `<img src=x onerror=alert(1)>`}},
			want:    []string{"<td>1</td>", "&lt;img src=x onerror=alert(1)&gt;"},
			notWant: []string{"<img", "Sin registros"},
		},
		{
			name:    "action column",
			rows:    [][]string{{"1", "a"}},
			actions: func(int) templ.Component { return link("/x/1", "Ver") },
			want:    []string{"<th></th>", `<td class="actions"><a href="/x/1">Ver</a></td>`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := renderString(t, dataTable([]string{"A", "B"}, tt.rows, tt.actions))
			for _, w := range tt.want {
				if !strings.Contains(html, w) {
					t.Errorf("missing %q in %s", w, html)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(html, w) {
					t.Errorf("unexpected %q in %s", w, html)
				}
			}
		})
	}
}

func TestOptionSelect(t *testing.T) {
	html := renderString(t, optionSelect("brand", "Marca", []core.Option{{ID: 1, Name: "Acme"}, {ID: 2, Name: "Norma"}}, 2, "Todas"))
	if !strings.Contains(html, `<option value="">Todas</option>`) {
		t.Error("missing all entry")
	}
	if !strings.Contains(html, `<option value="2" selected>2 - Norma</option>`) {
		t.Errorf("selected option wrong: %s", html)
	}
}

func TestProductsPageEditForm(t *testing.T) {
	brand := 2
	d := ProductsData{
		Products: []core.Product{{ID: 5, Code: "P-5", Name: "Lápiz", Stock: 0, Status: core.StockOut}},
		Brands:   []core.Option{{ID: 2, Name: "Norma"}},
		Edit:     &core.ProductDetail{ID: 5, Code: "P-5", Name: "Lápiz", BrandID: &brand, MinStock: 4},
	}
	html := renderString(t, ProductsPage(Page{Title: "Inventario"}, d))

	for _, want := range []string{
		`action="/products/5"`,
		`action="/products/5/stock"`,
		`action="/products/5/delete"`,
		`<option value="2" selected>2 - Norma</option>`,
		`name="minStock" value="4"`,
		core.StockOut,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("products page missing %q", want)
		}
	}
}

func TestSettingsTablePage(t *testing.T) {
	def, ok := core.Get("solicitantes")
	if !ok {
		t.Fatal("solicitantes not registered")
	}
	active, inactive := true, false
	d := SettingsData{
		Def: def,
		Data: &core.TableData{
			Columns: []string{"id_solicitante", "nombre"},
			Rows: []core.TableRow{
				{ID: 1, Values: []string{"1", "Ana"}, Active: &active},
				{ID: 2, Values: []string{"2", "Luis"}, Active: &inactive},
			},
		},
		Options:  map[string][]core.Option{"id_departamento": {{ID: 3, Name: "Compras"}}},
		CanWrite: true,
	}
	html := renderString(t, SettingsTablePage(Page{Title: "Solicitantes"}, d))

	for _, want := range []string{
		`action="/settings/solicitantes/1/deactivate"`,
		`action="/settings/solicitantes/2/activate"`,
		`action="/settings/solicitantes/2/delete"`,
		`action="/settings/solicitantes"`,
		`<option value="3">3 - Compras</option>`,
		`type="hidden" name="activo" value="off"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("settings page missing %q", want)
		}
	}

	d.CanWrite = false
	html = renderString(t, SettingsTablePage(Page{Title: "Solicitantes"}, d))
	if strings.Contains(html, "/deactivate") || strings.Contains(html, `method="post" action="/settings/solicitantes"`) {
		t.Error("read-only page still offers mutations")
	}
}

func TestSettingsCreateDisabled(t *testing.T) {
	def, _ := core.Get("usuarios")
	d := SettingsData{Def: def, Data: &core.TableData{}, CanWrite: true}
	html := renderString(t, SettingsTablePage(Page{}, d))
	if strings.Contains(html, "Nuevo registro") {
		t.Error("create form rendered for a table that disallows it")
	}
}

func TestRequestDetailPage(t *testing.T) {
	req := &core.InternalRequest{ID: 9, Date: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Department: "Compras", Requester: "Ana", Cedula: "1-234", Responsible: "Luis"}
	items := []core.RequestItem{{Code: "P-1", Name: "Lápiz", Quantity: 3}}
	html := renderString(t, RequestDetailPage(Page{Title: "Solicitud #9"}, req, items))
	for _, want := range []string{"Ana (1-234)", "Lápiz", "<td>3</td>"} {
		if !strings.Contains(html, want) {
			t.Errorf("detail page missing %q", want)
		}
	}
}

func TestAuditLogPager(t *testing.T) {
	tests := []struct {
		name    string
		filter  core.AuditLogFilter
		entries int
		want    []string
		notWant []string
	}{
		{
			name:    "both directions",
			filter:  core.AuditLogFilter{TableKey: "marcas", Limit: 2, Offset: 2},
			entries: 2,
			want:    []string{"offset=0", "offset=4", "table=marcas"},
		},
		{
			name:    "first page",
			filter:  core.AuditLogFilter{Limit: 2},
			entries: 2,
			want:    []string{"offset=2", "Siguiente"},
			notWant: []string{"Anterior"},
		},
		{
			name:    "last page",
			filter:  core.AuditLogFilter{Limit: 2, Offset: 1},
			entries: 1,
			want:    []string{"offset=0", "Anterior"},
			notWant: []string{"Siguiente"},
		},
		{
			name:    "filter values are encoded",
			filter:  core.AuditLogFilter{TableKey: "x&offset=999", Action: "a b", Limit: 2, Offset: 2},
			entries: 2,
			want:    []string{"table=x%26offset%3D999", "action=a+b"},
			notWant: []string{"offset=999&", "table=x&"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := renderString(t, AuditLogPage(Page{}, make([]core.AuditEntry, tt.entries), tt.filter, core.All()))
			for _, w := range tt.want {
				if !strings.Contains(html, w) {
					t.Errorf("pager missing %q: %s", w, html)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(html, w) {
					t.Errorf("pager contains %q: %s", w, html)
				}
			}
		})
	}
}

func TestAuditPageURL(t *testing.T) {
	got := auditPageURL(core.AuditLogFilter{TableKey: "marcas", Action: core.ActionDelete}, 40)
	u, err := url.Parse(got)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	if u.Path != "/audit-log" || q.Get("table") != "marcas" || q.Get("action") != string(core.ActionDelete) || q.Get("offset") != "40" {
		t.Errorf("auditPageURL = %q", got)
	}
}

func TestLoginPage(t *testing.T) {
	html := renderString(t, LoginPage(`<b>bad</b>`, `ana"`, "/purchases?x=1"))
	for _, want := range []string{
		`action="/login?next=%2Fpurchases%3Fx%3D1"`,
		`&lt;b&gt;bad&lt;/b&gt;`,
		`value="ana&#34;"`,
		`type="password" name="password" value="" required`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("login page missing %q: %s", want, html)
		}
	}
}

func TestErrorPage(t *testing.T) {
	html := renderString(t, ErrorPage(Page{Title: "Error"}, core.UserMessage{
		Message: "No encontrado", Action: "Revise el enlace", Code: "NF001",
	}))
	for _, want := range []string{`role="alert"`, "<strong>No encontrado</strong> <span>Revise el enlace</span>", "Código: NF001", "<main><h1>Error</h1>"} {
		if !strings.Contains(html, want) {
			t.Errorf("error page missing %q: %s", want, html)
		}
	}
}
