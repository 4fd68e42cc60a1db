package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Option is an (id, name) pair used to populate selection lists.
type Option struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Label renders the option the way selection lists show it: "3 - Papelería".
func (o Option) Label() string {
	return fmt.Sprintf("%d - %s", o.ID, o.Name)
}

// Stock status values stored in inventario.estado_stock.
const (
	StockAvailable = "disponible"
	StockLow       = "stock bajo"
	StockOut       = "agotado"
)

// Movement types stored in movimientos.tipo.
const (
	MovementIn  = "Entrada"
	MovementOut = "Salida"
	MovementNew = "Nuevo"
)

// MovementTypes lists the accepted movement types.
var MovementTypes = []string{MovementIn, MovementOut, MovementNew}

// Purchase request priorities, highest first.
const (
	PriorityHigh   = "Alta"
	PriorityMedium = "Media"
	PriorityLow    = "Baja"
)

// Priorities lists purchase priorities in sort order.
var Priorities = []string{PriorityHigh, PriorityMedium, PriorityLow}

// Purchase request statuses.
const (
	PurchasePending  = "Pendiente"
	PurchaseApproved = "Aprobada"
	PurchaseRejected = "Rechazada"
	PurchaseReceived = "Recibida"
)

// PurchaseStatuses lists the accepted purchase request statuses.
var PurchaseStatuses = []string{PurchasePending, PurchaseApproved, PurchaseRejected, PurchaseReceived}

// User roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "usuario"
)

// Display fallbacks used by list projections.
const (
	notAvailable = "N/A"
	noBrand      = "Sin marca"
	noCategory   = "Sin categoría"
)

// allFilter reports whether a filter value means "no filter". The
// selection lists offer "Todos"/"Todas" as their first entry.
func allFilter(v string) bool {
	switch v {
	case "", "Todos", "Todas":
		return true
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
