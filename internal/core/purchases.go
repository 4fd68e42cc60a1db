package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// PurchaseRequest is a row of solicitudes_compra.
type PurchaseRequest struct {
	Number   int       `json:"number"`
	ID       int       `json:"id"`
	Product  string    `json:"product"`
	Quantity int       `json:"quantity"`
	Reason   string    `json:"reason"`
	Priority string    `json:"priority"`
	Supplier string    `json:"supplier"`
	Date     time.Time `json:"date"`
	Status   string    `json:"status"`
}

// PurchaseInput is the payload for CreatePurchaseRequest.
type PurchaseInput struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
	Priority string `json:"priority"`
	Supplier string `json:"supplier"`
}

// Validate checks required fields and the fixed value sets.
func (in PurchaseInput) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(in.Product) == "" {
		errs = append(errs, ValidationError{Field: "producto", Message: "required field is empty"})
	}
	if in.Quantity <= 0 {
		errs = append(errs, ValidationError{Field: "cantidad", Value: fmt.Sprint(in.Quantity), Message: ErrInvalidQuantity.Error()})
	}
	if !contains(Priorities, in.Priority) {
		errs = append(errs, ValidationError{Field: "prioridad", Value: in.Priority,
			Message: "must be one of " + strings.Join(Priorities, ", ")})
	}
	return errs.errOrNil()
}

func buildPurchaseQuery(status, priority string) (string, []interface{}) {
	wb := NewWhereBuilder()
	if !allFilter(status) {
		wb.Add("estado", status)
	}
	if !allFilter(priority) {
		wb.Add("prioridad", priority)
	}
	where, args := wb.Build()
	return `
		SELECT ROW_NUMBER() OVER (ORDER BY fecha DESC), id, producto, cantidad,
			COALESCE(motivo, ''), prioridad, COALESCE(proveedor, '` + notAvailable + `'), fecha, estado
		FROM solicitudes_compra` + where + `
		ORDER BY
			CASE prioridad
				WHEN '` + PriorityHigh + `' THEN 1
				WHEN '` + PriorityMedium + `' THEN 2
				WHEN '` + PriorityLow + `' THEN 3
			END,
			fecha DESC`, args
}

// ListPurchaseRequests returns purchase requests ordered by priority then
// newest first.
func (s *Service) ListPurchaseRequests(ctx context.Context, status, priority string) ([]PurchaseRequest, error) {
	query, args := buildPurchaseQuery(status, priority)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchase requests: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PurchaseRequest, error) {
		var p PurchaseRequest
		err := row.Scan(&p.Number, &p.ID, &p.Product, &p.Quantity, &p.Reason,
			&p.Priority, &p.Supplier, &p.Date, &p.Status)
		return p, err
	})
}

// CreatePurchaseRequest stores a new request in the Pendiente state.
func (s *Service) CreatePurchaseRequest(ctx context.Context, in PurchaseInput) (int, error) {
	if err := in.Validate(); err != nil {
		return 0, err
	}
	supplier := strings.TrimSpace(in.Supplier)
	if supplier == notAvailable {
		supplier = ""
	}

	var id int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO solicitudes_compra (producto, cantidad, motivo, prioridad, proveedor, fecha, estado)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		strings.TrimSpace(in.Product), in.Quantity, nullIfEmpty(in.Reason), in.Priority,
		nullIfEmpty(supplier), s.now(), PurchasePending).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create purchase request: %w", err)
	}

	s.LogAudit(ctx, AuditLogParams{Action: ActionCreate, TableKey: "solicitudes_compra", RowKey: id,
		Details: map[string]interface{}{"producto": in.Product, "cantidad": in.Quantity, "prioridad": in.Priority}})
	return id, nil
}

// UpdatePurchaseStatus moves a request to another status.
// The status must be one of PurchaseStatuses. Any transition is allowed.
func (s *Service) UpdatePurchaseStatus(ctx context.Context, id int, status string) error {
	if !contains(PurchaseStatuses, status) {
		return ValidationError{Field: "estado", Value: status,
			Message: "must be one of " + strings.Join(PurchaseStatuses, ", ")}
	}
	n, err := s.exec(ctx, s.pool, `UPDATE solicitudes_compra SET estado = $1 WHERE id = $2`, status, id)
	if err := requireAffected(n, err, fmt.Sprintf("purchase request %d", id)); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionStatusChange, TableKey: "solicitudes_compra", RowKey: id,
		Details: map[string]interface{}{"estado": status}})
	return nil
}

// DeletePurchaseRequest removes a request.
func (s *Service) DeletePurchaseRequest(ctx context.Context, id int) error {
	n, err := s.exec(ctx, s.pool, `DELETE FROM solicitudes_compra WHERE id = $1`, id)
	if err := requireAffected(n, err, fmt.Sprintf("purchase request %d", id)); err != nil {
		return err
	}
	s.LogAudit(ctx, AuditLogParams{Action: ActionDelete, TableKey: "solicitudes_compra", RowKey: id})
	return nil
}

// CategoryNames returns every category name.
func (s *Service) CategoryNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT nombre FROM categorias ORDER BY nombre`)
	if err != nil {
		return nil, fmt.Errorf("category names: %w", err)
	}
	return collectStrings(rows)
}

// ProductsByCategory returns products of a category by name; every product
// when the name is empty or "Todas".
func (s *Service) ProductsByCategory(ctx context.Context, category string) ([]Option, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if allFilter(category) {
		rows, err = s.pool.Query(ctx, `SELECT id_producto, nombre FROM productos ORDER BY nombre`)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT p.id_producto, p.nombre
			FROM productos p
			JOIN categorias c ON p.id_categoria = c.id_categoria
			WHERE c.nombre = $1
			ORDER BY p.nombre`, category)
	}
	if err != nil {
		return nil, fmt.Errorf("products by category: %w", err)
	}
	return collectOptions(rows)
}

// SupplierNames returns every supplier name.
func (s *Service) SupplierNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT nombre FROM proveedores WHERE nombre IS NOT NULL ORDER BY nombre`)
	if err != nil {
		return nil, fmt.Errorf("supplier names: %w", err)
	}
	return collectStrings(rows)
}

// ActiveProducts returns active products as options.
func (s *Service) ActiveProducts(ctx context.Context) ([]Option, error) {
	rows, err := s.pool.Query(ctx, `SELECT id_producto, nombre FROM productos WHERE activo = TRUE ORDER BY nombre`)
	if err != nil {
		return nil, fmt.Errorf("active products: %w", err)
	}
	return collectOptions(rows)
}
