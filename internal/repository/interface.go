package repository

import (
	"context"

	"github.com/authplane/authplane/internal/db/models"
)

// PolicyFilter narrows policy ("p") pages. Ptype is an exact match and
// defaults to "p"; the remaining fields are substring matches and empty
// fields match everything.
type PolicyFilter struct {
	Current int
	Size    int
	Ptype   string
	Subject string
	Object  string
	Action  string
	Domain  string
}

// RelationFilter narrows relation ("g") pages.
type RelationFilter struct {
	Current      int
	Size         int
	ChildSubject string
	ParentRole   string
	Domain       string
}

// ModelVersionFilter narrows model-config pages. Status is an exact match.
type ModelVersionFilter struct {
	Current int
	Size    int
	Status  string
}

// RuleReader is the read contract of the rule store. Pages are ordered by
// id ascending and return the total matching row count alongside the page.
type RuleReader interface {
	PagePolicies(ctx context.Context, f PolicyFilter) ([]models.Rule, int, error)
	PageRelations(ctx context.Context, f RelationFilter) ([]models.Rule, int, error)
	GetPolicyByID(ctx context.Context, id int64) (*models.Rule, error)
	GetRelationByID(ctx context.Context, id int64) (*models.Rule, error)
	// ListRelations returns every "g" row whose domain is the given one or
	// empty. Feeds role-closure computation.
	ListRelations(ctx context.Context, domain string) ([]models.Rule, error)
}

// RuleRef identifies one stored tuple: its ptype plus row id.
type RuleRef struct {
	Ptype string
	ID    int64
}

// RuleWriter is the write contract of the rule store. Deletes fail with
// NotFound when a referenced id is absent; content duplicates never fail.
// Batch operations are transactional: all rows commit or none do, even when
// the batch mixes "p" and "g" tuples.
type RuleWriter interface {
	Create(ctx context.Context, rule *models.Rule) error
	CreateBatch(ctx context.Context, rules []*models.Rule) error
	Delete(ctx context.Context, ptype string, id int64) error
	DeleteBatch(ctx context.Context, refs []RuleRef) error
}

// RuleRepository combines both rule store contracts.
type RuleRepository interface {
	RuleReader
	RuleWriter
}

// ModelConfigRepository is the versioned store of model-config text.
type ModelConfigRepository interface {
	PageVersions(ctx context.Context, f ModelVersionFilter) ([]models.ModelConfig, int, error)
	GetByID(ctx context.Context, id int64) (*models.ModelConfig, error)
	// GetActive returns the single active version, or nil when none exists.
	GetActive(ctx context.Context) (*models.ModelConfig, error)
	// Create inserts a row; a zero Version is assigned max(version)+1 inside
	// the insert transaction.
	Create(ctx context.Context, mc *models.ModelConfig) error
	// Update patches the named columns of an existing row.
	Update(ctx context.Context, mc *models.ModelConfig, columns ...string) error
	// SetActiveVersion promotes id to active and demotes the previous active
	// row to archived in a single transaction. It does not validate content.
	SetActiveVersion(ctx context.Context, id int64) error
}

// UserRepository is the minimal user store the token service needs.
type UserRepository interface {
	// GetByIdentifier looks a user up by username, email, or phone number.
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	MarkEmailVerified(ctx context.Context, id int64) error
}

// TokenRepository owns issued token rows and the single-use refresh CAS.
type TokenRepository interface {
	Create(ctx context.Context, token *models.AuthToken) error
	GetByRefreshToken(ctx context.Context, refreshToken string) (*models.AuthToken, error)
	// MarkUsed flips status unused -> used. Returns false when the row was
	// already used or missing; a lost race is not an error here.
	MarkUsed(ctx context.Context, refreshToken string) (bool, error)
	// Exchange atomically marks the old refresh token used and inserts the
	// replacement row. Fails with Conflict when the CAS loses.
	Exchange(ctx context.Context, refreshToken string, replacement *models.AuthToken) error
}

// OutboxRepository is the append-only event sink plus the relay's view of it.
type OutboxRepository interface {
	Append(ctx context.Context, event *models.OutboxEvent) error
	// ListUndelivered returns undelivered events in id order, capped at limit.
	ListUndelivered(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkDelivered(ctx context.Context, ids []int64) error
}
