package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/stockroom/internal/admin"
	"github.com/JonMunkholm/stockroom/internal/config"
	"github.com/JonMunkholm/stockroom/internal/core"
	"github.com/JonMunkholm/stockroom/internal/database"
	"github.com/JonMunkholm/stockroom/internal/logging"
	"github.com/spf13/cobra"
)

// withAdmin loads configuration, connects, and hands fn a ready Admin.
// The pool is closed when fn returns.
func withAdmin(cmd *cobra.Command, fn func(ctx context.Context, a *admin.Admin) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Reports go to stdout; keep logs out of them.
	slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))

	ctx := core.ContextWithActor(cmd.Context(), core.Actor{Name: "stockctl", Username: "stockctl", Role: core.RoleAdmin})
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, &admin.Admin{
		Pool:    pool,
		Service: core.NewService(pool, cfg),
		Audit:   cfg.Audit,
		Out:     cmd.OutOrStdout(),
	})
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stockctl",
		Short:         "Administer the stockroom database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newResetCmd(),
		newAuditCmd(),
		newUserCmd(),
		newStockCmd(),
		newSettingsCmd(),
	)
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAdmin(cmd, func(ctx context.Context, a *admin.Admin) error {
				return a.Migrate(ctx)
			})
		},
	}
}

func newResetCmd() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete request, movement and purchase history",
		Long: `Delete every internal request, stock movement and purchase request.

Catalog tables and inventory quantities are kept. Pass --yes to confirm.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return errors.New("refusing to reset without --yes")
			}
			return withAdmin(cmd, func(ctx context.Context, a *admin.Admin) error {
				return a.ResetActivity(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "yes", false, "confirm the reset")
	return cmd
}

func newAuditCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Maintain the audit log",
	}
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete audit entries older than the retention window",
		Long: `Delete audit entries older than AUDIT_RETENTION_DAYS, in batches of
AUDIT_PURGE_BATCH rows. --days overrides the configured retention.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("days") && days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", days)
			}
			return withAdmin(cmd, func(ctx context.Context, a *admin.Admin) error {
				if cmd.Flags().Changed("days") {
					a.Audit.RetentionDays = days
				}
				return a.PurgeAudit(ctx)
			})
		},
	}
	purge.Flags().IntVar(&days, "days", 0, "retention in days (default from AUDIT_RETENTION_DAYS)")
	cmd.AddCommand(purge)
	return cmd
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCmd(), newUserPasswdCmd())
	return cmd
}

func newUserCreateCmd() *cobra.Command {
	var in core.UserInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Example: `  stockctl user create --name "Ana Pérez" --email ana@example.com \
    --username ana --password s3cret --role admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := in.Validate(); err != nil {
				return err
			}
			return withAdmin(cmd, func(ctx context.Context, a *admin.Admin) error {
				return a.CreateUser(ctx, in)
			})
		},
	}
	cmd.Flags().StringVar(&in.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Username, "username", "", "login name")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.Role, "role", core.RoleUser, "role: admin or usuario")
	return cmd
}

func newUserPasswdCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "passwd <email>",
		Short: "Set a new password for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			return withAdmin(cmd, func(ctx context.Context, a *admin.Admin) error {
				return a.SetPassword(ctx, args[0], password)
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password")
	return cmd
}

func newStockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stock",
		Short: "Inspect and maintain stock levels",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "refresh",
			Short: "Recompute stock status for every inventory row",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withAdmin(cmd, func(ctx context.Context, a *admin.Admin) error {
					return a.RefreshStock(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "low",
			Short: "List products at or below their minimum stock",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withAdmin(cmd, func(ctx context.Context, a *admin.Admin) error {
					return a.LowStock(ctx)
				})
			},
		},
	)
	return cmd
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read settings tables",
	}

	var activeOnly bool
	list := &cobra.Command{
		Use:       "list <table>",
		Short:     "Print every row of a settings table",
		ValidArgs: tableKeys(),
		Args:      cobra.MatchAll(cobra.ExactArgs(1), registeredTable),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAdmin(cmd, func(ctx context.Context, a *admin.Admin) error {
				return a.ListSettings(ctx, args[0], activeOnly)
			})
		},
	}
	list.Flags().BoolVar(&activeOnly, "active", false, "only active rows")
	cmd.AddCommand(list)
	return cmd
}

func tableKeys() []string {
	defs := core.All()
	keys := make([]string, len(defs))
	for i, d := range defs {
		keys[i] = d.Key
	}
	return keys
}

func registeredTable(_ *cobra.Command, args []string) error {
	if _, ok := core.Get(args[0]); !ok {
		return fmt.Errorf("unknown table %q (one of %v)", args[0], tableKeys())
	}
	return nil
}
