package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/authplane/authplane/internal/db/bunx"
	"github.com/authplane/authplane/internal/db/models"
)

// setupTestDB opens an in-memory SQLite database and creates the schema the
// repositories expect. Each test gets its own database.
func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := bunx.NewDB(":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	ctx := context.Background()
	for _, model := range []any{
		(*models.Rule)(nil),
		(*models.ModelConfig)(nil),
		(*models.User)(nil),
		(*models.AuthToken)(nil),
		(*models.OutboxEvent)(nil),
	} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}

	// Same partial unique index the init migration creates: at most one
	// active model version.
	_, err = db.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_model_configs_single_active
		ON model_configs (status) WHERE status = 'active'`)
	require.NoError(t, err)

	return db
}
