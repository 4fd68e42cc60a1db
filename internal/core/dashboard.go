package core

import (
	"context"
	"fmt"
	"time"
)

// DashboardStats summarizes the inventory for the landing page.
type DashboardStats struct {
	Products         int        `json:"products"`
	LowStock         int        `json:"lowStock"`
	OutOfStock       int        `json:"outOfStock"`
	PendingPurchases int        `json:"pendingPurchases"`
	MovementsToday   int        `json:"movementsLast24h"`
	RecentMovements  []Movement `json:"recentMovements"`
}

// recentMovementLimit is how many movements the dashboard shows.
const recentMovementLimit = 10

// Dashboard returns inventory counters and the latest movements.
func (s *Service) Dashboard(ctx context.Context) (*DashboardStats, error) {
	var d DashboardStats
	since := s.now().Add(-24 * time.Hour)
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM productos WHERE activo = TRUE),
			(SELECT COUNT(*) FROM inventario i JOIN productos p ON p.id_producto = i.id_producto
				WHERE p.activo = TRUE AND i.estado_stock = $1),
			(SELECT COUNT(*) FROM inventario i JOIN productos p ON p.id_producto = i.id_producto
				WHERE p.activo = TRUE AND i.estado_stock = $2),
			(SELECT COUNT(*) FROM solicitudes_compra WHERE estado = $3),
			(SELECT COUNT(*) FROM movimientos WHERE fecha >= $4)`,
		StockLow, StockOut, PurchasePending, since).
		Scan(&d.Products, &d.LowStock, &d.OutOfStock, &d.PendingPurchases, &d.MovementsToday)
	if err != nil {
		return nil, fmt.Errorf("dashboard counters: %w", err)
	}

	d.RecentMovements, err = s.ListMovements(ctx, MovementFilter{Limit: recentMovementLimit})
	if err != nil {
		return nil, err
	}
	return &d, nil
}
