package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/authplane/authplane/internal/db/models"
)

// BunOutboxRepository persists domain events using Bun. Insertion order of
// the autoincrement id is the delivery order, which gives per-aggregate
// ordering for free.
type BunOutboxRepository struct {
	db *bun.DB
}

// NewBunOutboxRepository constructs the outbox store backed by Bun.
func NewBunOutboxRepository(db *bun.DB) *BunOutboxRepository {
	return &BunOutboxRepository{db: db}
}

// Append inserts an event row.
func (r *BunOutboxRepository) Append(ctx context.Context, event *models.OutboxEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if _, err := r.db.NewInsert().Model(event).Exec(ctx); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// ListUndelivered returns undelivered events in id order.
func (r *BunOutboxRepository) ListUndelivered(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	if limit < 1 {
		limit = 100
	}
	var events []models.OutboxEvent
	err := r.db.NewSelect().Model(&events).
		Where("delivered = ?", false).
		Order("id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list undelivered events: %w", err)
	}
	return events, nil
}

// MarkDelivered flips the delivered flag for the given ids.
func (r *BunOutboxRepository) MarkDelivered(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.NewUpdate().Model((*models.OutboxEvent)(nil)).
		Set("delivered = ?", true).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark events delivered: %w", err)
	}
	return nil
}
