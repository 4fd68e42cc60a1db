// Package admin provides the administrative operations behind stockctl.
package admin

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Timeout is the maximum duration for a single administrative operation.
const Timeout = 30 * time.Second

// Admin runs maintenance commands against an open pool.
type Admin struct {
	Pool    *pgxpool.Pool
	Service *core.Service
	Audit   config.AuditConfig
	Out     io.Writer
}

type step struct {
	name string
	fn   func(ctx context.Context) error
}

// Migrate applies the schema and then refreshes stock status so existing
// inventory rows pick up the derived column.
func (a *Admin) Migrate(ctx context.Context) error {
	return a.run(ctx, []step{
		{"apply schema", func(ctx context.Context) error { return database.Migrate(ctx, a.Pool) }},
		{"refresh stock status", func(ctx context.Context) error {
			_, err := a.Service.RefreshStockStatus(ctx)
			return err
		}},
	})
}

// ResetActivity clears request, movement and purchase history.
// This is a destructive operation - use with caution.
func (a *Admin) ResetActivity(ctx context.Context) error {
	return a.run(ctx, []step{
		{"clear activity", a.Service.ResetActivity},
		{"refresh stock status", func(ctx context.Context) error {
			_, err := a.Service.RefreshStockStatus(ctx)
			return err
		}},
	})
}

// PurgeAudit deletes audit entries older than the configured retention.
func (a *Admin) PurgeAudit(ctx context.Context) error {
	if a.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention must be positive, got %d days", a.Audit.RetentionDays)
	}
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	n, err := a.Service.PurgeAudit(ctx, a.Audit.RetentionDays, a.Audit.PurgeBatch)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "purged %d audit entr(ies) older than %d days\n", n, a.Audit.RetentionDays)
	return nil
}

// CreateUser creates an account and prints its id.
func (a *Admin) CreateUser(ctx context.Context, in core.UserInput) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	id, err := a.Service.CreateUser(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "created user %s (id %d, rol %s)\n", in.Username, id, roleOrDefault(in.Role))
	return nil
}

// SetPassword replaces the password of the account with this email.
func (a *Admin) SetPassword(ctx context.Context, email, password string) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	if err := a.Service.UpdatePassword(ctx, email, password); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "password updated for %s\n", email)
	return nil
}

// RefreshStock recomputes stock status and prints how many rows changed.
func (a *Admin) RefreshStock(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	n, err := a.Service.RefreshStockStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "stock status updated on %d row(s)\n", n)
	return nil
}

// LowStock prints the low-stock report.
func (a *Admin) LowStock(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	products, err := a.Service.LowStock(ctx)
	if err != nil {
		return err
	}
	return WriteLowStock(a.Out, products)
}

// ListSettings prints a settings table, optionally active rows only.
func (a *Admin) ListSettings(ctx context.Context, table string, activeOnly bool) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	var (
		data *core.TableData
		err  error
	)
	if activeOnly {
		data, err = a.Service.ListActive(ctx, table)
	} else {
		data, err = a.Service.ListAll(ctx, table)
	}
	if err != nil {
		return err
	}
	return WriteTable(a.Out, data)
}

func (a *Admin) run(ctx context.Context, steps []step) error {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		fmt.Fprintf(a.Out, "ok: %s\n", s.name)
	}
	return nil
}

// WriteTable renders a settings table as aligned columns under its
// display headers.
func WriteTable(w io.Writer, data *core.TableData) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(data.Columns, "\t"))
	for _, row := range data.Rows {
		fmt.Fprintln(tw, strings.Join(row.Values, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d row(s)\n", len(data.Rows))
	return err
}

// WriteLowStock renders products at or below their minimum.
func WriteLowStock(w io.Writer, products []core.Product) error {
	if len(products) == 0 {
		_, err := fmt.Fprintln(w, "no products below minimum stock")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tSTOCK\tMIN\tSTATUS\tLOCATION")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n", p.Code, p.Name, p.Stock, p.MinStock, p.Status, p.Location)
	}
	return tw.Flush()
}

func roleOrDefault(role string) string {
	if role == "" {
		return core.RoleUser
	}
	return role
}
