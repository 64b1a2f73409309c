package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Model configuration lifecycle states.
// Transitions: draft → active (publish); active → archived (implicit when
// another version activates); archived → active (rollback).
const (
	ModelStatusDraft    = "draft"
	ModelStatusActive   = "active"
	ModelStatusArchived = "archived"
)

// ModelConfig is one version of the enforcer model DSL text.
// At most one row is active at any time; version numbers are unique and
// strictly monotonic in insertion order.
type ModelConfig struct {
	bun.BaseModel `bun:"table:model_configs,alias:mc"`

	ID         int64      `bun:"id,pk,autoincrement"`
	Version    int        `bun:"version,notnull,unique"`
	Content    string     `bun:"content,notnull"`
	Status     string     `bun:"status,notnull,default:'draft'"`
	Remark     *string    `bun:"remark"`
	CreatedBy  string     `bun:"created_by,notnull"`
	CreatedAt  time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	ApprovedBy *string    `bun:"approved_by"`
	ApprovedAt *time.Time `bun:"approved_at"`
}

// IsDraft reports whether the row can still be edited.
func (m *ModelConfig) IsDraft() bool {
	return m.Status == ModelStatusDraft
}
