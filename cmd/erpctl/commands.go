package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"schoolerp/internal/app/server"
	"schoolerp/internal/domain/auth"
	"schoolerp/internal/platform/config"
	"schoolerp/internal/platform/db"
)

const cliActor = "erpctl"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "erpctl",
		Short:        "School ERP maintenance commands",
		SilenceUsage: true,
	}
	root.AddCommand(
		migrateCommand(),
		seedCommand(),
		accrueLeaveCommand(),
		processPayrollCommand(),
		relayOutboxCommand(),
	)
	return root
}

func loadConfig(adjust ...func(*config.Config)) (config.Config, error) {
	cfg := config.Load()
	for _, fn := range adjust {
		fn(&cfg)
	}
	server.ConfigureLogging(cfg)
	return cfg, cfg.Validate()
}

// withApp builds the service graph without touching schema or seed data.
func withApp(ctx context.Context, fn func(app *server.App) error) error {
	cfg, err := loadConfig(func(c *config.Config) {
		c.RunMigrations = false
		c.RunSeed = false
	})
	if err != nil {
		return err
	}
	app, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(func(c *config.Config) { c.RunSeed = false })
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			pool, err := db.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool, dir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (defaults to MIGRATIONS_DIR)")
	return cmd
}

func seedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create default roles, permissions, admin user and catalogs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pool, err := db.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Seed(cmd.Context(), pool, cfg); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
			return nil
		},
	}
}

func accrueLeaveCommand() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "accrue-leave",
		Short: "Credit monthly leave accrual",
		RunE: func(cmd *cobra.Command, _ []string) error {
			when := time.Now()
			if asOf != "" {
				parsed, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
				}
				when = parsed
			}
			return withApp(cmd.Context(), func(app *server.App) error {
				runID, result, err := app.Jobs.RunNow(cmd.Context(), server.JobLeaveAccrual, cliActor, func(ctx context.Context) (any, error) {
					return app.Leave.AccrueMonthly(ctx, when)
				})
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"jobRunId": runID, "summary": result})
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "accrual date (YYYY-MM-DD, defaults to today)")
	return cmd
}

func processPayrollCommand() *cobra.Command {
	var periodID string
	cmd := &cobra.Command{
		Use:   "process-payroll",
		Short: "Calculate a payroll period and wait for the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(app *server.App) error {
				actor := auth.UserContext{RoleName: auth.RoleSystemAdmin}
				result, err := app.Payroll.Process(cmd.Context(), actor, periodID, true)
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
	cmd.Flags().StringVar(&periodID, "period", "", "payroll period id")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}

func relayOutboxCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "relay-outbox",
		Short: "Publish pending outbox events once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), func(app *server.App) error {
				result, err := app.Relay.Poll(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, result)
			})
		},
	}
}
