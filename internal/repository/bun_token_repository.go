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

// BunTokenRepository persists issued token pairs using Bun.
type BunTokenRepository struct {
	db *bun.DB
}

// NewBunTokenRepository constructs the token store backed by Bun.
func NewBunTokenRepository(db *bun.DB) *BunTokenRepository {
	return &BunTokenRepository{db: db}
}

// Create inserts a token row with status unused.
func (r *BunTokenRepository) Create(ctx context.Context, token *models.AuthToken) error {
	if token.Status == "" {
		token.Status = models.TokenStatusUnused
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	if _, err := r.db.NewInsert().Model(token).Exec(ctx); err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByRefreshToken fetches the row carrying the given refresh token.
func (r *BunTokenRepository) GetByRefreshToken(ctx context.Context, refreshToken string) (*models.AuthToken, error) {
	token := new(models.AuthToken)
	err := r.db.NewSelect().Model(token).Where("refresh_token = ?", refreshToken).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("refresh token not found")
		}
		return nil, fmt.Errorf("query token: %w", err)
	}
	return token, nil
}

// MarkUsed flips the row's status unused -> used with a compare-and-set on
// the status column. Returns false when no unused row matched.
func (r *BunTokenRepository) MarkUsed(ctx context.Context, refreshToken string) (bool, error) {
	result, err := r.db.NewUpdate().Model((*models.AuthToken)(nil)).
		Set("status = ?", models.TokenStatusUsed).
		Where("refresh_token = ?", refreshToken).
		Where("status = ?", models.TokenStatusUnused).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mark token used: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows > 0, nil
}

// Exchange marks the old refresh token used and inserts the replacement pair
// in one transaction. The CAS on status guarantees that of N concurrent
// exchanges of the same token exactly one commits; the rest fail Conflict.
func (r *BunTokenRepository) Exchange(ctx context.Context, refreshToken string, replacement *models.AuthToken) error {
	if replacement.Status == "" {
		replacement.Status = models.TokenStatusUnused
	}
	if replacement.CreatedAt.IsZero() {
		replacement.CreatedAt = time.Now()
	}

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().Model((*models.AuthToken)(nil)).
			Set("status = ?", models.TokenStatusUsed).
			Where("refresh_token = ?", refreshToken).
			Where("status = ?", models.TokenStatusUnused).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("mark token used: %w", err)
		}

		rows, _ := result.RowsAffected()
		if rows == 0 {
			return apperr.Conflict("refresh token already used")
		}

		if _, err := tx.NewInsert().Model(replacement).Exec(ctx); err != nil {
			return fmt.Errorf("insert replacement token: %w", err)
		}
		return nil
	})
}
