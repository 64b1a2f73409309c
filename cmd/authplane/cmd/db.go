package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/authplane/authplane/internal/db/bunx"
	"github.com/authplane/authplane/internal/migrations"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the policy-store schema",
	Long:  `Migration commands for the rule, model-config, user, token, and outbox tables.`,
}

// openMigrator connects using the configured DSN and binds the registered
// migrations to it. Callers own closing the returned DB.
func openMigrator() (*migrate.Migrator, *bun.DB, error) {
	db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return migrate.NewMigrator(db, migrations.Migrations), db, nil
}

// withMigrationLock runs fn while holding the migration lock, so two
// concurrently deployed replicas cannot race the schema.
func withMigrationLock(ctx context.Context, migrator *migrate.Migrator, fn func() error) error {
	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			log.Printf("Warning: failed to release migration lock: %v", err)
		}
	}()
	return fn()
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize migration tables",
	Long:  `Creates the migration tracking tables. Run once before the first 'db migrate'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, db, err := openMigrator()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		if err := migrator.Init(cmd.Context()); err != nil {
			return fmt.Errorf("failed to initialize migrator: %w", err)
		}

		log.Printf("Migration tables initialized successfully")
		return nil
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	Long:  `Applies all pending migrations under the migration lock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, db, err := openMigrator()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		ctx := cmd.Context()
		return withMigrationLock(ctx, migrator, func() error {
			group, err := migrator.Migrate(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			if group.ID == 0 {
				log.Printf("No new migrations to apply")
			} else {
				log.Printf("Applied migration group %d", group.ID)
			}
			return nil
		})
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long:  `Lists every registered migration with its applied/pending state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, db, err := openMigrator()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		ms, err := migrator.MigrationsWithStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}

		log.Printf("Migrations:")
		for _, m := range ms {
			status := "pending"
			if m.GroupID > 0 {
				status = fmt.Sprintf("applied (group %d)", m.GroupID)
			}
			log.Printf("  %s: %s", m.Name, status)
		}
		return nil
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the last migration group",
	Long:  `Rolls back the most recently applied migration group under the migration lock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, db, err := openMigrator()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		ctx := cmd.Context()
		return withMigrationLock(ctx, migrator, func() error {
			group, err := migrator.Rollback(ctx)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			if group.ID == 0 {
				log.Printf("No migrations to rollback")
			} else {
				log.Printf("Rolled back migration group %d", group.ID)
			}
			return nil
		})
	},
}

var dbLockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Manually acquire the migration lock",
	Long:  `Holds the migration lock open, keeping other replicas from migrating during maintenance.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, db, err := openMigrator()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		if err := migrator.Lock(cmd.Context()); err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}

		log.Printf("Migration lock acquired successfully")
		log.Printf("Remember to run 'db unlock' when finished")
		return nil
	},
}

var dbUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Force-release the migration lock",
	Long:  `Releases a migration lock left behind by a crashed migration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		migrator, db, err := openMigrator()
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		if err := migrator.Unlock(cmd.Context()); err != nil {
			return fmt.Errorf("failed to release migration lock: %w", err)
		}

		log.Printf("Migration lock released successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbRollbackCmd)
	dbCmd.AddCommand(dbLockCmd)
	dbCmd.AddCommand(dbUnlockCmd)
}
