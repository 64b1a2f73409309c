// Package outbox persists domain events alongside the state they describe
// and relays them to subscribers after the fact. Producers never talk to
// subscribers directly; the outbox table is the only coupling, which keeps
// event emission cheap and delivery retryable.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/authplane/authplane/internal/db/models"
	"github.com/authplane/authplane/internal/repository"
)

// Aggregate types.
const (
	AggregatePolicy    = "policy"
	AggregateRelation  = "relation"
	AggregateModel     = "model"
	AggregatePrincipal = "principal"
)

// Event types.
const (
	EventPolicyCreated      = "policy.created"
	EventPolicyDeleted      = "policy.deleted"
	EventPolicyBatchApplied = "policy.batch-applied"
	EventRelationCreated    = "relation.created"
	EventRelationDeleted    = "relation.deleted"
	EventModelDraftCreated  = "model.draft-created"
	EventModelDraftUpdated  = "model.draft-updated"
	EventModelPublished     = "model.published"
	EventModelRolledBack    = "model.rolled-back"
	EventUserLoggedIn       = "principal.logged-in"
	EventTokenGenerated     = "principal.token-generated"
	EventRefreshTokenUsed   = "principal.refresh-token-used"
	EventUserEmailVerified  = "principal.email-verified"
	EventUserSignedOut      = "principal.signed-out"
)

// Event is an un-persisted domain event. Services return these from
// mutations; the command layer emits them once the state change has
// committed and the enforcer has been nudged.
type Event struct {
	AggregateType string
	AggregateID   string
	Type          string
	Payload       any
}

// Outbox appends events to the persistent queue.
type Outbox struct {
	repo repository.OutboxRepository
}

func New(repo repository.OutboxRepository) *Outbox {
	return &Outbox{repo: repo}
}

// Emit marshals and appends the given events in order. A nil payload is
// stored as JSON null.
func (o *Outbox) Emit(ctx context.Context, events ...Event) error {
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", ev.Type, err)
		}
		row := &models.OutboxEvent{
			AggregateType: ev.AggregateType,
			AggregateID:   ev.AggregateID,
			EventType:     ev.Type,
			Payload:       payload,
		}
		if err := o.repo.Append(ctx, row); err != nil {
			return fmt.Errorf("append %s: %w", ev.Type, err)
		}
	}
	return nil
}
