package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/medapp/medapp/internal/config"
	"github.com/medapp/medapp/internal/domain/appointment"
	"github.com/medapp/medapp/internal/domain/encounter"
	"github.com/medapp/medapp/internal/domain/license"
	"github.com/medapp/medapp/internal/domain/patient"
	"github.com/medapp/medapp/internal/domain/study"
	"github.com/medapp/medapp/internal/domain/user"
	"github.com/medapp/medapp/internal/platform/auth"
	"github.com/medapp/medapp/internal/platform/db"
	"github.com/medapp/medapp/internal/platform/phi"
	"github.com/medapp/medapp/internal/seeds"
)

func seedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seeds",
		Short: "Convert a legacy dump into seed files and import them",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Build seed files from a legacy dump directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, _ := cmd.Flags().GetString("in")
			out, _ := cmd.Flags().GetString("out")
			noSynth, _ := cmd.Flags().GetBool("no-synthesize")

			// The pipeline needs no database; config only picks the log format.
			cfg, _ := config.Load()
			logger := newLogger(cfg)

			dump, err := seeds.LoadDump(cmd.Context(), in)
			if err != nil {
				return err
			}
			for _, name := range dump.Missing {
				logger.Warn().Str("collection", name).Msg("collection file not found, treated as empty")
			}

			opts := seeds.DefaultOptions()
			opts.Synthesize = !noSynth
			opts.Logger = logger
			set, rep := seeds.Build(dump, opts)
			if err := seeds.WriteSeedSet(out, set, rep); err != nil {
				return err
			}

			logger.Info().
				Interface("read", rep.Read).
				Interface("written", rep.Written).
				Int("skipped", len(rep.Skipped)).
				Int("changed", len(rep.Changes)).
				Str("out", out).
				Msg("seeds created")
			printReasons(cmd, rep.Reasons)
			return nil
		},
	}
	createCmd.Flags().String("in", "", "Directory holding the legacy collection files")
	createCmd.Flags().String("out", "./seeds", "Directory to write the seed files to")
	createCmd.Flags().Bool("no-synthesize", false, "Skip records whose patient cannot be resolved instead of synthesizing one")
	_ = createCmd.MarkFlagRequired("in")
	cmd.AddCommand(createCmd)

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import seed files into a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			tenant, _ := cmd.Flags().GetString("tenant")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			ctx := cmd.Context()
			cfg, pool, logger, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}

			phiSvc, err := phi.NewService(cfg.PHIEncryptionKey, logger)
			if err != nil {
				return err
			}
			repos := seeds.Repos{
				Users:        user.NewRepo(pool, phiSvc.Encryptor()),
				Licenses:     license.NewRepo(pool),
				Patients:     patient.NewRepo(pool, phiSvc),
				Encounters:   encounter.NewRepo(pool),
				Appointments: appointment.NewRepo(pool),
				Studies:      study.NewRepo(pool),
			}
			res, err := seeds.NewImporter(pool, repos, logger).Import(ctx, dir, tenant, dryRun)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	importCmd.Flags().String("dir", "./seeds", "Directory holding the seed files")
	importCmd.Flags().String("tenant", "", "Target tenant (default DEFAULT_TENANT)")
	importCmd.Flags().Bool("dry-run", false, "Report what would be imported and roll back")
	cmd.AddCommand(importCmd)

	return cmd
}

func printReasons(cmd *cobra.Command, reasons map[string]int) {
	names := make([]string, 0, len(reasons))
	for r := range reasons {
		names = append(names, r)
	}
	sort.Strings(names)
	out := cmd.OutOrStdout()
	for _, r := range names {
		fmt.Fprintf(out, "%-32s %d\n", r, reasons[r])
	}
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user in a tenant, e.g. the first admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in user.CreateInput
			in.Username, _ = cmd.Flags().GetString("username")
			in.Password, _ = cmd.Flags().GetString("password")
			in.Roles, _ = cmd.Flags().GetStringSlice("role")
			in.FirstName, _ = cmd.Flags().GetString("first-name")
			in.LastName, _ = cmd.Flags().GetString("last-name")
			tenant, _ := cmd.Flags().GetString("tenant")
			if email, _ := cmd.Flags().GetString("email"); email != "" {
				in.Email = &email
			}

			ctx := cmd.Context()
			cfg, pool, logger, err := setup(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if tenant == "" {
				tenant = cfg.DefaultTenant
			}

			phiSvc, err := phi.NewService(cfg.PHIEncryptionKey, logger)
			if err != nil {
				return err
			}
			svc := newServices(cfg, pool, phiSvc).users

			var created *user.User
			err = db.RunInTx(ctx, pool, tenant, func(ctx context.Context) error {
				ctx = auth.WithUser(ctx, "cli", []string{auth.RoleAdmin})
				created, err = svc.Create(ctx, in)
				return err
			})
			if err != nil {
				return err
			}
			logger.Info().Str("tenant", tenant).Str("user_id", created.ID.String()).
				Str("username", created.Username).Strs("roles", created.Roles).Msg("user created")
			return nil
		},
	}
	createCmd.Flags().String("tenant", "", "Tenant (default DEFAULT_TENANT)")
	createCmd.Flags().String("username", "", "Login name")
	createCmd.Flags().String("password", "", "Password, at least 8 characters")
	createCmd.Flags().StringSlice("role", []string{auth.RoleAdmin}, "Role: admin, medic or receptionist (repeatable)")
	createCmd.Flags().String("first-name", "", "First name")
	createCmd.Flags().String("last-name", "", "Last name")
	createCmd.Flags().String("email", "", "Email address")
	for _, f := range []string{"username", "password", "first-name", "last-name"} {
		_ = createCmd.MarkFlagRequired(f)
	}

	cmd.AddCommand(createCmd)
	return cmd
}
