package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ActivityTables are the transactional tables cleared by ResetActivity,
// children before parents. Catalog tables are never touched.
var ActivityTables = []string{
	"detalle_solicitud",
	"solicitudes",
	"movimientos",
	"solicitudes_compra",
}

// ResetActivity empties the request, movement and purchase history in one
// transaction and recomputes stock status. Inventory quantities are kept.
func (s *Service) ResetActivity(ctx context.Context) error {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for _, table := range ActivityTables {
			if _, err := tx.Exec(ctx, "DELETE FROM "+quoteIdentifier(table)); err != nil {
				return fmt.Errorf("reset %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.LogAudit(ctx, AuditLogParams{Action: ActionDelete, TableKey: "activity",
		Details: map[string]interface{}{"tables": ActivityTables}})
	return nil
}
