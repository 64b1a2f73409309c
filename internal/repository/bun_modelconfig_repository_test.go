package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/db/models"
)

func modelVersion(version int, status string) *models.ModelConfig {
	return &models.ModelConfig{
		Version:   version,
		Content:   "[request_definition]\nr = sub, obj, act",
		Status:    status,
		CreatedBy: "u1",
	}
}

func TestBunModelConfigRepository_CreateAssignsVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunModelConfigRepository(db)
	ctx := context.Background()

	first := modelVersion(0, models.ModelStatusDraft)
	require.NoError(t, repo.Create(ctx, first))
	assert.Equal(t, 1, first.Version, "empty table starts at 1")

	second := modelVersion(0, models.ModelStatusDraft)
	require.NoError(t, repo.Create(ctx, second))
	assert.Equal(t, 2, second.Version)

	// An explicit version is kept as given.
	pinned := modelVersion(7, models.ModelStatusDraft)
	require.NoError(t, repo.Create(ctx, pinned))
	assert.Equal(t, 7, pinned.Version)

	next := modelVersion(0, models.ModelStatusDraft)
	require.NoError(t, repo.Create(ctx, next))
	assert.Equal(t, 8, next.Version, "assignment follows the highest version")
}

func TestBunModelConfigRepository_SetActiveVersion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunModelConfigRepository(db)
	ctx := context.Background()

	v1 := modelVersion(1, models.ModelStatusDraft)
	v2 := modelVersion(2, models.ModelStatusDraft)
	require.NoError(t, repo.Create(ctx, v1))
	require.NoError(t, repo.Create(ctx, v2))

	require.NoError(t, repo.SetActiveVersion(ctx, v1.ID))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, v1.ID, active.ID)

	// Promoting v2 demotes v1 in the same transaction.
	require.NoError(t, repo.SetActiveVersion(ctx, v2.ID))

	active, err = repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, v2.ID, active.ID)

	got1, err := repo.GetByID(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ModelStatusArchived, got1.Status)

	// Rollback path: an archived version becomes active again.
	require.NoError(t, repo.SetActiveVersion(ctx, v1.ID))
	active, err = repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, active.ID)

	// Invariant: never more than one active row.
	count, err := db.NewSelect().Model((*models.ModelConfig)(nil)).
		Where("status = ?", models.ModelStatusActive).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBunModelConfigRepository_SetActiveVersionIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunModelConfigRepository(db)
	ctx := context.Background()

	v1 := modelVersion(1, models.ModelStatusDraft)
	require.NoError(t, repo.Create(ctx, v1))
	require.NoError(t, repo.SetActiveVersion(ctx, v1.ID))

	// Re-activating the active version is a no-op, not a constraint trip.
	require.NoError(t, repo.SetActiveVersion(ctx, v1.ID))

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, active.ID)
}

func TestBunModelConfigRepository_SetActiveVersionNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunModelConfigRepository(db)
	ctx := context.Background()

	err := repo.SetActiveVersion(ctx, 42)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestBunModelConfigRepository_GetActiveEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunModelConfigRepository(db)

	active, err := repo.GetActive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestBunModelConfigRepository_UpdatePatchesColumns(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunModelConfigRepository(db)
	ctx := context.Background()

	v1 := modelVersion(1, models.ModelStatusDraft)
	require.NoError(t, repo.Create(ctx, v1))

	remark := "second pass"
	v1.Content = "[request_definition]\nr = sub, obj, act, dom"
	v1.Remark = &remark
	require.NoError(t, repo.Update(ctx, v1, "content", "remark"))

	got, err := repo.GetByID(ctx, v1.ID)
	require.NoError(t, err)
	assert.Contains(t, got.Content, "dom")
	require.NotNil(t, got.Remark)
	assert.Equal(t, "second pass", *got.Remark)
	assert.Equal(t, models.ModelStatusDraft, got.Status, "unnamed columns untouched")
}

func TestBunModelConfigRepository_PageVersions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunModelConfigRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, modelVersion(1, models.ModelStatusArchived)))
	require.NoError(t, repo.Create(ctx, modelVersion(2, models.ModelStatusActive)))
	require.NoError(t, repo.Create(ctx, modelVersion(3, models.ModelStatusDraft)))

	versions, total, err := repo.PageVersions(ctx, ModelVersionFilter{Current: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, versions, 3)
	assert.Equal(t, 3, versions[0].Version, "newest first")

	versions, total, err = repo.PageVersions(ctx, ModelVersionFilter{Current: 1, Size: 10, Status: models.ModelStatusDraft})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, versions, 1)
	assert.Equal(t, 3, versions[0].Version)
}
