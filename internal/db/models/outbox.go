package models

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// OutboxEvent is one persisted domain event awaiting delivery.
// Insertion-ordered ids give per-aggregate ordering: for a fixed
// (aggregate_type, aggregate_id), events appear in the order their
// producing commands committed. Delivery is at-least-once; Delivered
// flips only after every subscriber has confirmed.
type OutboxEvent struct {
	bun.BaseModel `bun:"table:outbox_events,alias:oe"`

	ID            int64           `bun:"id,pk,autoincrement"`
	AggregateType string          `bun:"aggregate_type,notnull"`
	AggregateID   string          `bun:"aggregate_id,notnull"`
	EventType     string          `bun:"event_type,notnull"`
	Payload       json.RawMessage `bun:"payload,type:jsonb"`
	OccurredAt    time.Time       `bun:"occurred_at,notnull,default:current_timestamp"`
	Delivered     bool            `bun:"delivered,notnull,default:false"`
}
