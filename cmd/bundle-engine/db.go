package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/wolfty27/Connected-Capacity-sub005/internal/domain/servicecatalog"
	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/db"
	"github.com/wolfty27/Connected-Capacity-sub005/migrations"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run service catalog migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, migrator, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			fmt.Printf("Running migrations on schema: %s\n", a.cfg.DBSchema)
			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, migrator, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", a.cfg.DBSchema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	cmd.PersistentFlags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	cmd.PersistentFlags().String("dir", "", "Migrations directory (defaults to MIGRATIONS_DIR, then the embedded set)")
	return cmd
}

func openMigrator(cmd *cobra.Command) (*app, *db.Migrator, error) {
	schema, _ := cmd.Flags().GetString("schema")
	dir, _ := cmd.Flags().GetString("dir")

	a, err := setup()
	if err != nil {
		return nil, nil, err
	}
	if schema != "" {
		a.cfg.DBSchema = schema
	}
	if dir == "" {
		dir = a.cfg.MigrationsDir
	}
	var fsys fs.FS = migrations.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	}

	pool, err := a.connect(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	return a, db.NewMigrator(pool, fsys, a.cfg.DBSchema), nil
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the service catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Copy services.yaml into the database catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			mem, err := servicecatalog.LoadMemory(a.src)
			if err != nil {
				return err
			}
			pool, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			ctx, release, err := db.WithConn(cmd.Context(), pool, a.cfg.DBSchema)
			if err != nil {
				return err
			}
			defer release()

			var n int
			err = db.InTx(ctx, func(ctx context.Context) error {
				var err error
				n, err = servicecatalog.Seed(ctx, mem, servicecatalog.NewPGStore(pool))
				return err
			})
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}
			fmt.Printf("Seeded %d service type(s) into schema %s.\n", n, a.cfg.DBSchema)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Check the database and list catalog services",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			pool, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			health, err := db.Check(cmd.Context(), pool, a.cfg.DBSchema)
			if err != nil {
				return err
			}
			fmt.Println(health.Summary())
			if !health.SchemaExists {
				return fmt.Errorf("schema %s does not exist; run migrate up", a.cfg.DBSchema)
			}
			types, err := servicecatalog.NewPGStore(pool).List(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%d service type(s) in the catalog.\n", len(types))
			return nil
		},
	})
	return cmd
}
