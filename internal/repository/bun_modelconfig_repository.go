package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/db/models"
)

// BunModelConfigRepository persists model-config versions using Bun.
type BunModelConfigRepository struct {
	db *bun.DB
}

// NewBunModelConfigRepository constructs the model-config store backed by Bun.
func NewBunModelConfigRepository(db *bun.DB) *BunModelConfigRepository {
	return &BunModelConfigRepository{db: db}
}

// PageVersions returns one page of versions ordered by version descending
// (newest first), with the unpaged total.
func (r *BunModelConfigRepository) PageVersions(ctx context.Context, f ModelVersionFilter) ([]models.ModelConfig, int, error) {
	current, size := f.Current, f.Size
	if current < 1 {
		current = 1
	}
	if size < 1 {
		size = 10
	}

	q := r.db.NewSelect().Model((*models.ModelConfig)(nil))
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var versions []models.ModelConfig
	total, err := q.Order("version DESC").
		Limit(size).
		Offset((current - 1) * size).
		ScanAndCount(ctx, &versions)
	if err != nil {
		return nil, 0, fmt.Errorf("page model versions: %w", err)
	}
	return versions, total, nil
}

// GetByID fetches a version row.
func (r *BunModelConfigRepository) GetByID(ctx context.Context, id int64) (*models.ModelConfig, error) {
	mc := new(models.ModelConfig)
	err := r.db.NewSelect().Model(mc).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("model version not found: id %d", id)
		}
		return nil, fmt.Errorf("query model version: %w", err)
	}
	return mc, nil
}

// GetActive returns the single active version, or nil when no version has
// been published yet.
func (r *BunModelConfigRepository) GetActive(ctx context.Context) (*models.ModelConfig, error) {
	mc := new(models.ModelConfig)
	err := r.db.NewSelect().Model(mc).Where("status = ?", models.ModelStatusActive).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query active model version: %w", err)
	}
	return mc, nil
}

// Create inserts a new version row. A zero Version is assigned
// max(version)+1 inside the insert transaction, so two drafts created at
// once cannot claim the same number.
func (r *BunModelConfigRepository) Create(ctx context.Context, mc *models.ModelConfig) error {
	if mc.CreatedAt.IsZero() {
		mc.CreatedAt = time.Now()
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if mc.Version == 0 {
			var max sql.NullInt64
			err := tx.NewSelect().Model((*models.ModelConfig)(nil)).
				ColumnExpr("MAX(version)").
				Scan(ctx, &max)
			if err != nil {
				return fmt.Errorf("query max version: %w", err)
			}
			mc.Version = int(max.Int64) + 1
		}
		if _, err := tx.NewInsert().Model(mc).Exec(ctx); err != nil {
			return fmt.Errorf("insert model version: %w", err)
		}
		return nil
	})
}

// Update patches the named columns of an existing row.
func (r *BunModelConfigRepository) Update(ctx context.Context, mc *models.ModelConfig, columns ...string) error {
	result, err := r.db.NewUpdate().Model(mc).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update model version: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound("model version not found: id %d", mc.ID)
	}
	return nil
}

// SetActiveVersion promotes the target row to active and demotes the current
// active row (if any) to archived, both inside one transaction so snapshots
// never show two active versions.
func (r *BunModelConfigRepository) SetActiveVersion(ctx context.Context, id int64) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*models.ModelConfig)(nil)).
			Where("id = ?", id).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check model version: %w", err)
		}
		if !exists {
			return apperr.NotFound("model version not found: id %d", id)
		}

		// Demote first so the single-active unique index never trips.
		_, err = tx.NewUpdate().Model((*models.ModelConfig)(nil)).
			Set("status = ?", models.ModelStatusArchived).
			Where("status = ?", models.ModelStatusActive).
			Where("id != ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("archive active model version: %w", err)
		}

		_, err = tx.NewUpdate().Model((*models.ModelConfig)(nil)).
			Set("status = ?", models.ModelStatusActive).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("activate model version: %w", err)
		}
		return nil
	})
}
