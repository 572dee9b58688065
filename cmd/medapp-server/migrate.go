package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medapp/medapp/internal/platform/db"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations to one tenant or to every tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			all, _ := cmd.Flags().GetBool("all")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, logger, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			migrator := db.NewMigrator(pool, dir)
			schemas := []string{db.SchemaName(tenant)}
			if tenant == "" {
				schemas = []string{db.SchemaName(cfg.DefaultTenant)}
			}
			if all {
				if schemas, err = migrator.TenantSchemas(ctx); err != nil {
					return err
				}
			}

			for _, schema := range schemas {
				count, err := migrator.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migrate %s: %w", schema, err)
				}
				logger.Info().Str("schema", schema).Int("applied", count).Msg("migrations applied")
			}
			return nil
		},
	}
	upCmd.Flags().String("tenant", "", "Tenant to migrate (default DEFAULT_TENANT)")
	upCmd.Flags().Bool("all", false, "Migrate every existing tenant schema")
	upCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			cfg, pool, _, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}

			schema := db.SchemaName(tenant)
			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Migration status for schema: %s\n", schema)
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("tenant", "", "Tenant to inspect (default DEFAULT_TENANT)")
	statusCmd.Flags().String("dir", "", "Path to migrations directory (default MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenants",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a tenant schema and apply migrations to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			if !db.ValidTenantID(name) {
				return fmt.Errorf("--name must be alphanumeric or underscore, got %q", name)
			}

			ctx := context.Background()
			cfg, pool, logger, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.CreateTenantSchema(ctx, pool, name, cfg.MigrationsDir); err != nil {
				return err
			}
			logger.Info().Str("tenant", name).Str("schema", db.SchemaName(name)).Msg("tenant created")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Tenant identifier (alphanumeric)")
	_ = createCmd.MarkFlagRequired("name")

	cmd.AddCommand(createCmd)
	return cmd
}
