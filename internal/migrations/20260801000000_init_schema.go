package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/authplane/authplane/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260801000000, down_20260801000000)
}

// up_20260801000000 initializes the full database schema
func up_20260801000000(ctx context.Context, db *bun.DB) error {
	// 1. Casbin rule store
	fmt.Print(" [up] creating casbin_rules table...")
	_, err := db.NewCreateTable().
		Model((*models.Rule)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create casbin_rules table: %w", err)
	}

	// Lookup indexes for the paged list endpoints and the relation scans.
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_casbin_rules_ptype ON casbin_rules(ptype)`)
	if err != nil {
		return fmt.Errorf("failed to create index on ptype: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_casbin_rules_ptype_v0 ON casbin_rules(ptype, v0)`)
	if err != nil {
		return fmt.Errorf("failed to create index on (ptype, v0): %w", err)
	}
	fmt.Println(" OK")

	// 2. Model-config versions
	fmt.Print(" [up] creating model_configs table...")
	_, err = db.NewCreateTable().
		Model((*models.ModelConfig)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create model_configs table: %w", err)
	}

	// At most one version may hold the active status. Partial unique indexes
	// work on both SQLite and PostgreSQL.
	_, err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_model_configs_single_active
		ON model_configs (status) WHERE status = 'active'
	`)
	if err != nil {
		return fmt.Errorf("failed to create single-active index: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_model_configs_status ON model_configs(status)`)
	if err != nil {
		return fmt.Errorf("failed to create index on status: %w", err)
	}
	fmt.Println(" OK")

	// 3. Principals
	fmt.Print(" [up] creating users table...")
	_, err = db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_users_domain ON users(domain)`)
	if err != nil {
		return fmt.Errorf("failed to create index on domain: %w", err)
	}
	fmt.Println(" OK")

	// 4. Issued token pairs
	fmt.Print(" [up] creating auth_tokens table...")
	_, err = db.NewCreateTable().
		Model((*models.AuthToken)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create auth_tokens table: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_auth_tokens_user_id ON auth_tokens(user_id)`)
	if err != nil {
		return fmt.Errorf("failed to create index on user_id: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_auth_tokens_status ON auth_tokens(status)`)
	if err != nil {
		return fmt.Errorf("failed to create index on status: %w", err)
	}
	fmt.Println(" OK")

	// 5. Event outbox
	fmt.Print(" [up] creating outbox_events table...")
	_, err = db.NewCreateTable().
		Model((*models.OutboxEvent)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create outbox_events table: %w", err)
	}

	// The relay drains undelivered rows in id order.
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_outbox_events_undelivered ON outbox_events(id) WHERE delivered = false`)
	if err != nil {
		return fmt.Errorf("failed to create undelivered index: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_outbox_events_aggregate ON outbox_events(aggregate_type, aggregate_id)`)
	if err != nil {
		return fmt.Errorf("failed to create aggregate index: %w", err)
	}
	fmt.Println(" OK")

	return nil
}

// down_20260801000000 drops all tables
func down_20260801000000(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping all tables...")

	tables := []string{
		"outbox_events",
		"auth_tokens",
		"users",
		"model_configs",
		"casbin_rules",
	}

	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
		if err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}

	fmt.Println(" OK")
	return nil
}
