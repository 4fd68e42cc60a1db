package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := core.SupplierFilter{Category: q.Get("category"), Rating: q.Get("rating"), Pricing: q.Get("pricing")}

	suppliers, err := s.service.ListSuppliers(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, suppliers)
		return
	}

	d := templates.SuppliersData{Suppliers: suppliers, Filter: f}
	if d.Categories, err = s.service.CategoryNames(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, templates.SuppliersPage(s.page(r, "Proveedores", "suppliers"), d))
}

func (s *Server) handleSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sp, err := s.service.SupplierByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, sp)
		return
	}

	d := templates.SupplierDetailData{Supplier: sp}
	if d.Categories, err = s.service.SupplierCategories(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.AllCats, err = s.service.CategoryNames(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Products, err = s.service.SupplierProducts(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Available, err = s.service.AvailableProducts(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, templates.SupplierDetailPage(s.page(r, sp.Name, "suppliers"), d))
}

func (s *Server) handleSupplierByName(w http.ResponseWriter, r *http.Request) {
	sp, err := s.service.SupplierByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, sp)
}

// supplierRating reads the rating select: "1".."5" or a label such as
// "Sin valoración" meaning none.
func supplierRating(raw string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil
	}
	return &n
}

// handleSaveSupplier creates a supplier (no id in the path) or updates one.
func (s *Server) handleSaveSupplier(w http.ResponseWriter, r *http.Request) {
	id := 0
	if chi.URLParam(r, "id") != "" {
		var err error
		if id, err = pathID(r, "id"); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	var sp core.Supplier
	if err := bind(r, &sp, func(f *formReader) {
		sp.Name = f.text("name")
		sp.Contact = f.text("contact")
		sp.Phone = f.text("phone")
		sp.Email = f.text("email")
		sp.Address = f.text("address")
		sp.Social = f.text("social")
		sp.Rating = supplierRating(f.text("rating"))
		sp.Pricing = f.text("pricing")
		sp.Comments = f.text("comments")
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	if sp.Pricing == "N/A" {
		sp.Pricing = ""
	}

	if id == 0 {
		newID, err := s.service.CreateSupplier(r.Context(), sp)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		done(w, r, http.StatusCreated, map[string]int{"id": newID}, withFlash("/suppliers/"+strconv.Itoa(newID), "created"))
		return
	}
	if err := s.service.UpdateSupplier(r.Context(), id, sp); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusOK, map[string]int{"id": id}, withFlash("/suppliers/"+strconv.Itoa(id), "saved"))
}

func (s *Server) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	outcome, err := s.service.DeleteSupplier(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusOK, map[string]core.DeleteOutcome{"outcome": outcome}, withFlash("/suppliers", string(outcome)))
}

type categoryRequest struct {
	Category string `json:"category"`
}

func (s *Server) handleSetSupplierCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in categoryRequest
	if err := bind(r, &in, func(f *formReader) { in.Category = f.text("category") }); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.SetCategory(r.Context(), id, in.Category); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusNoContent, nil, withFlash("/suppliers/"+strconv.Itoa(id), "saved"))
}

func (s *Server) handleSupplierCategories(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	names, err := s.service.SupplierCategories(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, names)
}

func (s *Server) handleSupplierProducts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	products, err := s.service.SupplierProducts(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, products)
}

func (s *Server) handleAvailableProducts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	products, err := s.service.AvailableProducts(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, products)
}

type productLinkRequest struct {
	ProductID int    `json:"productId"`
	Product   string `json:"product"`
}

// handleAddSupplierProduct links a product given by id or, for API
// clients, by exact name.
func (s *Server) handleAddSupplierProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in productLinkRequest
	if err := bind(r, &in, func(f *formReader) { in.ProductID = f.number("productId") }); err != nil {
		s.fail(w, r, err)
		return
	}
	if in.ProductID == 0 && in.Product != "" {
		if in.ProductID, err = s.service.ProductIDByName(r.Context(), in.Product); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if in.ProductID <= 0 {
		s.fail(w, r, core.ValidationError{Field: "productId", Message: "required field is empty"})
		return
	}
	if err := s.service.AddSupplierProduct(r.Context(), id, in.ProductID); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusNoContent, nil, withFlash("/suppliers/"+strconv.Itoa(id), "saved"))
}

func (s *Server) handleRemoveSupplierProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	productID, err := pathID(r, "productID")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.RemoveSupplierProduct(r.Context(), id, productID); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusNoContent, nil, withFlash("/suppliers/"+strconv.Itoa(id), "deleted"))
}
