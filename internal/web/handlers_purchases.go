package web

import (
	"net/http"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/web/templates"
)

func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, priority := q.Get("status"), q.Get("priority")

	requests, err := s.service.ListPurchaseRequests(r.Context(), status, priority)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, requests)
		return
	}

	d := templates.PurchasesData{Requests: requests, Status: status, Priority: priority, Category: q.Get("category")}
	if d.Categories, err = s.service.CategoryNames(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Products, err = s.service.ProductsByCategory(r.Context(), d.Category); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Suppliers, err = s.service.SupplierNames(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, templates.PurchasesPage(s.page(r, "Solicitudes de compra", "purchases"), d))
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var in core.PurchaseInput
	if err := bind(r, &in, func(f *formReader) {
		in.Product = f.text("product")
		in.Quantity = f.number("quantity")
		in.Reason = f.text("reason")
		in.Priority = f.text("priority")
		in.Supplier = f.text("supplier")
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	id, err := s.service.CreatePurchaseRequest(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusCreated, map[string]int{"id": id}, withFlash("/purchases", "created"))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handlePurchaseStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in statusRequest
	if err := bind(r, &in, func(f *formReader) { in.Status = f.text("status") }); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.UpdatePurchaseStatus(r.Context(), id, in.Status); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusNoContent, nil, withFlash("/purchases", "saved"))
}

func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.service.DeletePurchaseRequest(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusNoContent, nil, withFlash("/purchases", "deleted"))
}

func (s *Server) handleCategoryNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.service.CategoryNames(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, names)
}

func (s *Server) handleProductsByCategory(w http.ResponseWriter, r *http.Request) {
	opts, err := s.service.ProductsByCategory(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, opts)
}

func (s *Server) handleSupplierNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.service.SupplierNames(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, names)
}

func (s *Server) handleActiveUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.service.ActiveUsers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, users)
}
