package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// Movement is a row of the stock movement history.
type Movement struct {
	Number      int       `json:"number"`
	ID          int       `json:"id"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Product     string    `json:"product"`
	Quantity    int       `json:"quantity"`
	Responsible string    `json:"responsible"`
	Reference   string    `json:"reference"`
}

// MovementFilter narrows ListMovements. From and To are inclusive; a zero
// Limit returns every match.
type MovementFilter struct {
	Type  string
	From  time.Time
	To    time.Time
	Limit int
}

// MovementInput is the payload for RegisterMovement.
type MovementInput struct {
	ProductID     int    `json:"productId"`
	Type          string `json:"type"`
	Quantity      int    `json:"quantity"`
	ResponsibleID *int   `json:"responsibleId"`
	Reference     string `json:"reference"`
}

// Validate checks the movement type and quantity.
func (in MovementInput) Validate() error {
	var errs ValidationErrors
	if in.ProductID <= 0 {
		errs = append(errs, ValidationError{Field: "id_producto", Message: "required field is empty"})
	}
	if !contains(MovementTypes, in.Type) {
		errs = append(errs, ValidationError{Field: "tipo", Value: in.Type,
			Message: "must be one of " + strings.Join(MovementTypes, ", ")})
	}
	if in.Quantity <= 0 {
		errs = append(errs, ValidationError{Field: "cantidad", Value: fmt.Sprint(in.Quantity), Message: ErrInvalidQuantity.Error()})
	}
	return errs.errOrNil()
}

// MovementReference is the reference written when none is given.
func MovementReference(movementType, productName string) string {
	switch movementType {
	case MovementIn:
		return "Entrada de stock - " + productName
	case MovementOut:
		return "Salida de stock - " + productName
	case MovementNew:
		return "Producto nuevo - " + productName
	}
	return ""
}

func buildMovementQuery(f MovementFilter) (string, []interface{}) {
	wb := NewWhereBuilder()
	if !allFilter(f.Type) {
		wb.Add("m.tipo", f.Type)
	}
	if !f.From.IsZero() {
		wb.AddExpr("m.fecha >= ?", f.From)
	}
	if !f.To.IsZero() {
		wb.AddExpr("m.fecha <= ?", f.To)
	}
	where, _ := wb.Build()
	limit := ""
	if f.Limit > 0 {
		limit = " LIMIT " + wb.Arg(f.Limit)
	}
	return `
		SELECT ROW_NUMBER() OVER (ORDER BY m.fecha DESC), m.id_movimiento, m.fecha, m.tipo,
			p.nombre, m.cantidad,
			COALESCE(usr.nombre_completo, '` + notAvailable + `'),
			COALESCE(m.referencia, '` + notAvailable + `')
		FROM movimientos m
		JOIN productos p ON m.id_producto = p.id_producto
		LEFT JOIN usuarios usr ON m.id_responsable = usr.id` + where + `
		ORDER BY m.fecha DESC` + limit, wb.Args()
}

// ListMovements returns the movement history, newest first.
func (s *Service) ListMovements(ctx context.Context, f MovementFilter) ([]Movement, error) {
	query, args := buildMovementQuery(f)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Movement, error) {
		var m Movement
		err := row.Scan(&m.Number, &m.ID, &m.Date, &m.Type, &m.Product,
			&m.Quantity, &m.Responsible, &m.Reference)
		return m, err
	})
}

// RegisterMovement records a movement. Inventory is not touched.
func (s *Service) RegisterMovement(ctx context.Context, in MovementInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	responsible := in.ResponsibleID
	if responsible == nil {
		responsible = actorID(ctx)
	}
	if err := s.insertMovement(ctx, s.pool, in.ProductID, in.Type, in.Quantity, responsible, in.Reference); err != nil {
		return fmt.Errorf("register movement: %w", err)
	}
	return nil
}

// insertMovement writes a movimientos row on db. An empty reference is
// generated from the type and product name; an unknown responsible user
// is stored as NULL.
func (s *Service) insertMovement(ctx context.Context, db DBTX, productID int, movementType string, quantity int, responsible *int, reference string) error {
	if strings.TrimSpace(reference) == "" {
		name, err := productName(ctx, db, productID)
		if err != nil {
			return err
		}
		reference = MovementReference(movementType, name)
	}

	if responsible != nil {
		var exists bool
		err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM usuarios WHERE id = $1)`, *responsible).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check responsible user: %w", err)
		}
		if !exists {
			responsible = nil
		}
	}

	_, err := db.Exec(ctx, `
		INSERT INTO movimientos (id_producto, tipo, cantidad, id_responsable, referencia, fecha)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		productID, movementType, quantity, responsible, nullIfEmpty(reference), s.now())
	return err
}

// ProductName returns the name of a product.
func (s *Service) ProductName(ctx context.Context, id int) (string, error) {
	return productName(ctx, s.pool, id)
}

func productName(ctx context.Context, db DBTX, id int) (string, error) {
	var name string
	if err := db.QueryRow(ctx, `SELECT nombre FROM productos WHERE id_producto = $1`, id).Scan(&name); err != nil {
		return "", fmt.Errorf("product %d: %w", id, notFound(err))
	}
	return name, nil
}
