package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/web/templates"
)

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	from, fromRaw := queryDate(r, "from", false)
	to, toRaw := queryDate(r, "to", true)
	f := core.RequestFilter{
		Search:     strings.TrimSpace(r.URL.Query().Get("search")),
		Department: r.URL.Query().Get("department"),
		From:       from,
		To:         to,
	}

	requests, err := s.service.ListRequests(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, requests)
		return
	}

	d := templates.RequestsData{Requests: requests, Filter: f, From: fromRaw, To: toRaw, CategoryID: queryInt(r, "category")}
	if d.Departments, err = s.service.Departments(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Requesters, err = s.service.Requesters(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Users, err = s.service.ActiveUsers(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.Categories, err = s.service.InventoryCategories(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	if d.CategoryID > 0 {
		d.Products, err = s.service.InventoryProducts(r.Context(), d.CategoryID)
	} else {
		d.Products, err = s.service.ActiveProducts(r.Context())
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, r, templates.RequestsPage(s.page(r, "Solicitudes internas", "requests"), d))
}

// requestLines pairs the repeated productId/quantity form fields. Lines
// without a product are skipped.
func requestLines(f *formReader) []core.RequestItem {
	products, quantities := f.all("productId"), f.all("quantity")
	var items []core.RequestItem
	for i, raw := range products {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		item := core.RequestItem{}
		id, err := strconv.Atoi(raw)
		if err != nil {
			f.errs = append(f.errs, core.ValidationError{Field: "productId", Value: raw, Message: "invalid number"})
			continue
		}
		item.ProductID = id
		if i < len(quantities) {
			q := strings.TrimSpace(quantities[i])
			if item.Quantity, err = strconv.Atoi(q); err != nil {
				f.errs = append(f.errs, core.ValidationError{Field: "quantity", Value: q, Message: "invalid number"})
				continue
			}
		}
		items = append(items, item)
	}
	return items
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var in core.RequestInput
	if err := bind(r, &in, func(f *formReader) {
		in.DepartmentID = f.number("departmentId")
		in.RequesterID = f.number("requesterId")
		in.ResponsibleID = f.number("responsibleId")
		in.Comment = f.text("comment")
		in.Items = requestLines(f)
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	if in.ResponsibleID == 0 {
		in.ResponsibleID = actor(r).ID
	}

	id, err := s.service.CreateRequest(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusCreated, map[string]int{"id": id}, withFlash("/requests/"+strconv.Itoa(id), "created"))
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	req, err := s.service.GetRequest(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := s.service.RequestItems(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, map[string]interface{}{"request": req, "items": items})
		return
	}
	title := "Solicitud #" + strconv.Itoa(id)
	s.render(w, r, templates.RequestDetailPage(s.page(r, title, "requests"), req, items))
}

func (s *Server) handleRequestItems(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	items, err := s.service.RequestItems(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, items)
}

func (s *Server) handleAddDepartment(w http.ResponseWriter, r *http.Request) {
	var in nameRequest
	if err := bind(r, &in, func(f *formReader) { in.Name = f.text("name") }); err != nil {
		s.fail(w, r, err)
		return
	}
	opt, err := s.service.AddDepartment(r.Context(), in.Name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusCreated, opt, withFlash("/requests", "created"))
}

type requesterRequest struct {
	Cedula       string `json:"cedula"`
	Name         string `json:"name"`
	DepartmentID int    `json:"departmentId"`
}

func (s *Server) handleAddRequester(w http.ResponseWriter, r *http.Request) {
	var in requesterRequest
	if err := bind(r, &in, func(f *formReader) {
		in.Cedula = f.text("cedula")
		in.Name = f.text("name")
		in.DepartmentID = f.number("departmentId")
	}); err != nil {
		s.fail(w, r, err)
		return
	}
	opt, err := s.service.AddRequester(r.Context(), in.Cedula, in.Name, in.DepartmentID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	done(w, r, http.StatusCreated, opt, withFlash("/requests", "created"))
}

func (s *Server) handleDepartments(w http.ResponseWriter, r *http.Request) {
	opts, err := s.service.Departments(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, opts)
}

func (s *Server) handleRequesters(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.Requesters(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, list)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	opts, err := s.service.Categories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, opts)
}

func (s *Server) handleInventoryCategories(w http.ResponseWriter, r *http.Request) {
	opts, err := s.service.InventoryCategories(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, opts)
}

func (s *Server) handleInventoryProducts(w http.ResponseWriter, r *http.Request) {
	opts, err := s.service.InventoryProducts(r.Context(), queryInt(r, "category"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, opts)
}

// handleProductDetails resolves ?q= as an id, an embedded id or a name.
func (s *Server) handleProductDetails(w http.ResponseWriter, r *http.Request) {
	p, err := s.service.ProductDetails(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, p)
}
