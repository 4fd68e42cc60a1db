package web

import (
	"net/http"
	"strings"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/logging"
	"github.com/JonMunkholm/stockroom/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Dashboard(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, stats)
		return
	}

	var low []core.Product
	if r.URL.Query().Get("low") != "" {
		if low, err = s.service.LowStock(r.Context()); err != nil {
			s.fail(w, r, err)
			return
		}
		if low == nil {
			low = []core.Product{}
		}
	}
	s.render(w, r, templates.DashboardPage(s.page(r, "Inicio", "dashboard"), stats, low))
}

// handleNotifications returns the low-stock feed.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	low, err := s.service.LowStock(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, low)
		return
	}
	http.Redirect(w, r, "/?low=1", http.StatusSeeOther)
}

func (s *Server) handleRefreshStock(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.RefreshStockStatus(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("stock status refreshed on demand", "changed", n)
	writeJSON(w, map[string]int64{"changed": n})
}

// productFilter reads the inventory filters from the query string.
func productFilter(r *http.Request) core.ProductFilter {
	q := r.URL.Query()
	return core.ProductFilter{
		Search:     strings.TrimSpace(q.Get("search")),
		CategoryID: queryInt(r, "category"),
		BrandID:    queryInt(r, "brand"),
		LocationID: queryInt(r, "location"),
		Status:     q.Get("status"),
	}
}

func (s *Server) productsData(r *http.Request, f core.ProductFilter) (templates.ProductsData, error) {
	d := templates.ProductsData{Filter: f}
	var err error
	if d.Products, err = s.service.ListProducts(r.Context(), f); err != nil {
		return d, err
	}
	if d.Categories, err = s.service.ComboOptions(r.Context(), "categorias"); err != nil {
		return d, err
	}
	if d.Brands, err = s.service.ComboOptions(r.Context(), "marcas"); err != nil {
		return d, err
	}
	d.Locations, err = s.service.ComboOptions(r.Context(), "ubicaciones")
	return d, err
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	f := productFilter(r)
	if wantsJSON(r) {
		products, err := s.service.ListProducts(r.Context(), f)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, products)
		return
	}
	d, err := s.productsData(r, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, templates.ProductsPage(s.page(r, "Inventario", "products"), d))
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	product, err := s.service.GetProduct(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, product)
		return
	}
	d, err := s.productsData(r, productFilter(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	d.Edit = product
	s.render(w, r, templates.ProductsPage(s.page(r, "Inventario", "products"), d))
}

// handleSaveProduct creates a product (no id in the path) or updates one.
func (s *Server) handleSaveProduct(w http.ResponseWriter, r *http.Request) {
	id := 0
	if chi.URLParam(r, "id") != "" {
		var err error
		if id, err = pathID(r, "id"); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	var in core.ProductInput
	if err := bind(r, &in, func(f *formReader) {
		in.Code = f.text("code")
		in.Name = f.text("name")
		in.BrandID = positive(f.optNumber("brandId"))
		in.CategoryID = positive(f.optNumber("categoryId"))
		in.LocationID = positive(f.optNumber("locationId"))
		in.Stock = f.optNumber("stock")
		in.MinStock = f.optNumber("minStock")
	}); err != nil {
		s.fail(w, r, err)
		return
	}

	savedID, err := s.service.SaveProduct(r.Context(), id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status, flash := http.StatusOK, "saved"
	if id == 0 {
		status, flash = http.StatusCreated, "created"
	}
	done(w, r, status, map[string]int{"id": savedID}, withFlash("/products", flash))
}

// positive drops the "none" option of a selection list.
func positive(p *int) *int {
	if p == nil || *p <= 0 {
		return nil
	}
	return p
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.DeleteProduct(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusNoContent, nil, withFlash("/products", "deleted"))
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) handleAddStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in quantityRequest
	if err := bind(r, &in, func(f *formReader) { in.Quantity = f.number("quantity") }); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.AddStock(r.Context(), id, in.Quantity); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusNoContent, nil, withFlash("/products", "stock"))
}

type nameRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddLookup(w http.ResponseWriter, r *http.Request) {
	var in nameRequest
	if err := bind(r, &in, func(f *formReader) { in.Name = f.text("name") }); err != nil {
		s.fail(w, r, err)
		return
	}
	opt, err := s.service.AddLookupValue(r.Context(), chi.URLParam(r, "table"), in.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusCreated, opt, withFlash("/products", "created"))
}

func (s *Server) handleComboOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.service.ComboOptions(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, opts)
}

func (s *Server) handleIDByName(w http.ResponseWriter, r *http.Request) {
	id, err := s.service.IDByName(r.Context(), chi.URLParam(r, "table"), r.URL.Query().Get("name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]int{"id": id})
}

func (s *Server) handleProductName(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	name, err := s.service.ProductName(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"name": name})
}

func (s *Server) handleMovements(w http.ResponseWriter, r *http.Request) {
	from, fromRaw := queryDate(r, "from", false)
	to, toRaw := queryDate(r, "to", true)
	f := core.MovementFilter{Type: r.URL.Query().Get("type"), From: from, To: to, Limit: queryInt(r, "limit")}

	movements, err := s.service.ListMovements(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, movements)
		return
	}

	d := templates.MovementsData{Movements: movements, Type: f.Type, From: fromRaw, To: toRaw}
	if d.Products, err = s.service.ActiveProducts(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Users, err = s.service.ActiveUsers(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, templates.MovementsPage(s.page(r, "Movimientos", "movements"), d))
}

func (s *Server) handleRegisterMovement(w http.ResponseWriter, r *http.Request) {
	var in core.MovementInput
	if err := bind(r, &in, func(f *formReader) {
		in.ProductID = f.number("productId")
		in.Type = f.text("type")
		in.Quantity = f.number("quantity")
		in.ResponsibleID = positive(f.optNumber("responsibleId"))
		in.Reference = f.text("reference")
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.RegisterMovement(r.Context(), in); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusCreated, map[string]string{"status": "ok"}, withFlash("/movements", "created"))
}
