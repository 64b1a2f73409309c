package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/db/models"
)

// BunUserRepository persists login principals using Bun.
type BunUserRepository struct {
	db *bun.DB
}

// NewBunUserRepository constructs the user store backed by Bun.
func NewBunUserRepository(db *bun.DB) *BunUserRepository {
	return &BunUserRepository{db: db}
}

// GetByIdentifier looks a user up by username, email, or phone number.
func (r *BunUserRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().Model(user).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("username = ?", identifier).
				WhereOr("email = ?", identifier).
				WhereOr("phone_number = ?", identifier)
		}).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found: %s", identifier)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetByID fetches a user row.
func (r *BunUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().Model(user).Where("id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user not found: id %d", id)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// Create inserts a user row.
func (r *BunUserRepository) Create(ctx context.Context, user *models.User) error {
	if _, err := r.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// MarkEmailVerified flips the email_verified flag.
func (r *BunUserRepository) MarkEmailVerified(ctx context.Context, id int64) error {
	result, err := r.db.NewUpdate().Model((*models.User)(nil)).
		Set("email_verified = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound("user not found: id %d", id)
	}
	return nil
}
