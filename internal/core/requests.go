package core

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Requester is an active or inactive person who can receive goods.
type Requester struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Cedula string `json:"cedula"`
}

// ProductStock is the inventory view of a single product.
type ProductStock struct {
	ID       int    `json:"id"`
	Stock    int    `json:"stock"`
	Location string `json:"location"`
	Status   string `json:"status"`
}

// InternalRequest is a row of the internal request list.
type InternalRequest struct {
	Number      int       `json:"number"`
	ID          int       `json:"id"`
	Date        time.Time `json:"date"`
	Department  string    `json:"department"`
	Requester   string    `json:"requester"`
	Cedula      string    `json:"cedula,omitempty"`
	Comment     string    `json:"comment"`
	Responsible string    `json:"responsible"`
}

// RequestItem is one product line of an internal request.
type RequestItem struct {
	ProductID int    `json:"productId"`
	Name      string `json:"name,omitempty"`
	Code      string `json:"code,omitempty"`
	Quantity  int    `json:"quantity"`
}

// RequestFilter narrows ListRequests.
type RequestFilter struct {
	Search     string
	Department string
	From       time.Time
	To         time.Time
}

// RequestInput is the payload for CreateRequest.
type RequestInput struct {
	DepartmentID  int           `json:"departmentId"`
	RequesterID   int           `json:"requesterId"`
	ResponsibleID int           `json:"responsibleId"`
	Comment       string        `json:"comment"`
	Items         []RequestItem `json:"items"`
}

// Validate checks the header and every line.
func (in RequestInput) Validate() error {
	var errs ValidationErrors
	if in.DepartmentID <= 0 {
		errs = append(errs, ValidationError{Field: "id_departamento", Message: "required field is empty"})
	}
	if in.RequesterID <= 0 {
		errs = append(errs, ValidationError{Field: "id_solicitante", Message: "required field is empty"})
	}
	if in.ResponsibleID <= 0 {
		errs = append(errs, ValidationError{Field: "id_responsable_entrega", Message: "required field is empty"})
	}
	if len(in.Items) == 0 {
		errs = append(errs, ValidationError{Field: "productos", Message: "at least one product is required"})
	}
	for i, item := range in.Items {
		if item.ProductID <= 0 {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("productos[%d]", i), Message: "required field is empty"})
		}
		if item.Quantity <= 0 {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("productos[%d].cantidad", i),
				Value: fmt.Sprint(item.Quantity), Message: ErrInvalidQuantity.Error()})
		}
	}
	return errs.errOrNil()
}

// InsufficientStockError reports the line that could not be served.
type InsufficientStockError struct {
	ProductID int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d (requested %d)", e.ProductID, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Departments returns every department.
func (s *Service) Departments(ctx context.Context) ([]Option, error) {
	rows, err := s.pool.Query(ctx, `SELECT id_departamento, nombre FROM departamentos ORDER BY nombre`)
	if err != nil {
		return nil, fmt.Errorf("departments: %w", err)
	}
	return collectOptions(rows)
}

// Requesters returns every requester.
func (s *Service) Requesters(ctx context.Context) ([]Requester, error) {
	rows, err := s.pool.Query(ctx, `SELECT id_solicitante, nombre, cedula FROM solicitantes ORDER BY nombre`)
	if err != nil {
		return nil, fmt.Errorf("requesters: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Requester, error) {
		var r Requester
		err := row.Scan(&r.ID, &r.Name, &r.Cedula)
		return r, err
	})
}

// Categories returns every category.
func (s *Service) Categories(ctx context.Context) ([]Option, error) {
	rows, err := s.pool.Query(ctx, `SELECT id_categoria, nombre FROM categorias ORDER BY nombre`)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	return collectOptions(rows)
}

// InventoryCategories returns categories that have active products with
// an inventory row.
func (s *Service) InventoryCategories(ctx context.Context) ([]Option, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT c.id_categoria, c.nombre
		FROM categorias c
		JOIN productos p ON p.id_categoria = c.id_categoria
		JOIN inventario i ON i.id_producto = p.id_producto
		WHERE p.activo = TRUE
		ORDER BY c.nombre`)
	if err != nil {
		return nil, fmt.Errorf("inventory categories: %w", err)
	}
	return collectOptions(rows)
}

// InventoryProducts returns active products of a category that have an
// inventory row.
func (s *Service) InventoryProducts(ctx context.Context, categoryID int) ([]Option, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id_producto, p.nombre
		FROM productos p
		JOIN inventario i ON i.id_producto = p.id_producto
		WHERE p.id_categoria = $1 AND p.activo = TRUE
		ORDER BY p.nombre`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("inventory products: %w", err)
	}
	return collectOptions(rows)
}

var embeddedID = regexp.MustCompile(`\b(\d+)\b`)

// parseProductIdentifier extracts a product id from "12", "12 - Lápiz" or
// "(12, 'Lápiz')". ok is false when no id is present.
func parseProductIdentifier(ident string) (id int, ok bool) {
	ident = strings.TrimSpace(ident)
	if n, err := strconv.Atoi(ident); err == nil {
		return n, true
	}
	m := embeddedID.FindStringSubmatch(ident)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

const productStockSelect = `
	SELECT p.id_producto, COALESCE(i.stock, 0),
		COALESCE(u.nombre, '` + notAvailable + `'),
		COALESCE(i.estado_stock, '` + StockAvailable + `')
	FROM productos p
	LEFT JOIN inventario i ON p.id_producto = i.id_producto
	LEFT JOIN ubicaciones u ON i.id_ubicacion = u.id_ubicacion`

// ProductDetails resolves a product by id, by an id embedded in the
// identifier, or by case-insensitive name.
// Lookups are tried in that order. Returns ErrNotFound when none match.
func (s *Service) ProductDetails(ctx context.Context, identifier string) (*ProductStock, error) {
	scan := func(row pgx.Row) (*ProductStock, error) {
		var p ProductStock
		if err := row.Scan(&p.ID, &p.Stock, &p.Location, &p.Status); err != nil {
			return nil, notFound(err)
		}
		return &p, nil
	}

	if id, ok := parseProductIdentifier(identifier); ok {
		p, err := scan(s.pool.QueryRow(ctx, productStockSelect+` WHERE p.id_producto = $1`, id))
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("product details: %w", err)
		}
	}

	name := strings.TrimSpace(identifier)
	if name == "" {
		return nil, fmt.Errorf("product details: %w", ErrNotFound)
	}
	p, err := scan(s.pool.QueryRow(ctx, productStockSelect+` WHERE p.nombre ILIKE $1 LIMIT 1`, name))
	if err != nil {
		return nil, fmt.Errorf("product details %q: %w", name, err)
	}
	return p, nil
}

const requestSelect = `
	SELECT ROW_NUMBER() OVER (ORDER BY s.fecha_solicitud DESC), s.id_solicitud, s.fecha_solicitud,
		d.nombre, sol.nombre, sol.cedula, COALESCE(s.comentario, ''), u.nombre_completo
	FROM solicitudes s
	JOIN departamentos d ON s.id_departamento = d.id_departamento
	JOIN solicitantes sol ON s.id_solicitante = sol.id_solicitante
	JOIN usuarios u ON s.id_responsable_entrega = u.id`

func buildRequestQuery(f RequestFilter) (string, []interface{}) {
	wb := NewWhereBuilder()
	if f.Search != "" {
		wb.AddExpr("s.comentario ILIKE ?", likePattern(f.Search))
	}
	if !allFilter(f.Department) {
		wb.Add("d.nombre", f.Department)
	}
	if !f.From.IsZero() {
		wb.AddExpr("s.fecha_solicitud >= ?", f.From)
	}
	if !f.To.IsZero() {
		wb.AddExpr("s.fecha_solicitud <= ?", f.To)
	}
	where, args := wb.Build()
	return requestSelect + where + ` ORDER BY s.fecha_solicitud DESC LIMIT 100`, args
}

func scanRequest(row pgx.CollectableRow) (InternalRequest, error) {
	var r InternalRequest
	err := row.Scan(&r.Number, &r.ID, &r.Date, &r.Department, &r.Requester,
		&r.Cedula, &r.Comment, &r.Responsible)
	return r, err
}

// ListRequests returns the latest 100 internal requests.
func (s *Service) ListRequests(ctx context.Context, f RequestFilter) ([]InternalRequest, error) {
	query, args := buildRequestQuery(f)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return pgx.CollectRows(rows, scanRequest)
}

// GetRequest returns the header of one internal request.
func (s *Service) GetRequest(ctx context.Context, id int) (*InternalRequest, error) {
	rows, err := s.pool.Query(ctx, requestSelect+` WHERE s.id_solicitud = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get request %d: %w", id, err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, scanRequest)
	if err != nil {
		return nil, fmt.Errorf("get request %d: %w", id, notFound(err))
	}
	return &r, nil
}

// RequestItems returns the product lines of an internal request.
func (s *Service) RequestItems(ctx context.Context, id int) ([]RequestItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ds.id_producto, p.nombre, p.codigo, ds.cantidad
		FROM detalle_solicitud ds
		JOIN productos p ON ds.id_producto = p.id_producto
		WHERE ds.id_solicitud = $1
		ORDER BY ds.id_detalle`, id)
	if err != nil {
		return nil, fmt.Errorf("request items %d: %w", id, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (RequestItem, error) {
		var it RequestItem
		err := row.Scan(&it.ProductID, &it.Name, &it.Code, &it.Quantity)
		return it, err
	})
}

// CreateRequest stores the header and its lines, takes each line out of
// inventory and records a Salida movement per line.
//
// Everything runs in one transaction. The stock decrement is guarded by
// stock >= quantity, so a line that exceeds the available stock returns an
// *InsufficientStockError (matching ErrInsufficientStock) and nothing is
// written. Stock status is recomputed for every touched product before
// commit. Returns the new request id.
func (s *Service) CreateRequest(ctx context.Context, in RequestInput) (int, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}

	var id int
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO solicitudes (id_departamento, id_solicitante, id_responsable_entrega, comentario, fecha_solicitud)
			VALUES ($1, $2, $3, $4, $5) RETURNING id_solicitud`,
			in.DepartmentID, in.RequesterID, in.ResponsibleID, nullIfEmpty(in.Comment), s.now()).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert request: %w", err)
		}

		for _, item := range in.Items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO detalle_solicitud (id_solicitud, id_producto, cantidad)
				VALUES ($1, $2, $3)`, id, item.ProductID, item.Quantity); err != nil {
				return fmt.Errorf("insert request line: %w", err)
			}

			n, err := s.exec(ctx, tx, `
				UPDATE inventario SET stock = stock - $1
				WHERE id_producto = $2 AND stock >= $1`, item.Quantity, item.ProductID)
			if err != nil {
				return fmt.Errorf("update inventory: %w", err)
			}
			if n == 0 {
				return &InsufficientStockError{ProductID: item.ProductID, Requested: item.Quantity}
			}
			if err := refreshOne(ctx, tx, item.ProductID); err != nil {
				return err
			}

			ref := fmt.Sprintf("Solicitud #%d", id)
			if err := s.insertMovement(ctx, tx, item.ProductID, MovementOut, item.Quantity, &in.ResponsibleID, ref); err != nil {
				return fmt.Errorf("record movement: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	s.LogAudit(ctx, AuditLogParams{Action: ActionCreate, TableKey: "solicitudes", RowKey: id,
		Details: map[string]interface{}{"lineas": len(in.Items), "id_departamento": in.DepartmentID}})
	return id, nil
}

// AddDepartment inserts a department and returns it as an option.
func (s *Service) AddDepartment(ctx context.Context, name string) (Option, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Option{}, ValidationError{Field: "nombre", Message: "required field is empty"}
	}
	var o Option
	err := s.pool.QueryRow(ctx, `
		INSERT INTO departamentos (nombre) VALUES ($1) RETURNING id_departamento, nombre`, name).
		Scan(&o.ID, &o.Name)
	if err != nil {
		return Option{}, fmt.Errorf("add department: %w", err)
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionCreate, TableKey: "departamentos", RowKey: o.ID,
		Details: map[string]interface{}{"nombre": o.Name}})
	return o, nil
}

// AddRequester inserts a requester and returns it as an option.
func (s *Service) AddRequester(ctx context.Context, cedula, name string, departmentID int) (Option, error) {
	var errs ValidationErrors
	cedula, name = strings.TrimSpace(cedula), strings.TrimSpace(name)
	if cedula == "" {
		errs = append(errs, ValidationError{Field: "cedula", Message: "required field is empty"})
	}
	if name == "" {
		errs = append(errs, ValidationError{Field: "nombre", Message: "required field is empty"})
	}
	if departmentID <= 0 {
		errs = append(errs, ValidationError{Field: "id_departamento", Message: "required field is empty"})
	}
	if err := errs.errOrNil(); err != nil {
		return Option{}, err
	}

	var o Option
	err := s.pool.QueryRow(ctx, `
		INSERT INTO solicitantes (cedula, nombre, id_departamento)
		VALUES ($1, $2, $3) RETURNING id_solicitante, nombre`, cedula, name, departmentID).
		Scan(&o.ID, &o.Name)
	if err != nil {
		return Option{}, fmt.Errorf("add requester: %w", err)
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionCreate, TableKey: "solicitantes", RowKey: o.ID,
		Details: map[string]interface{}{"cedula": cedula, "nombre": name}})
	return o, nil
}
