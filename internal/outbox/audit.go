package outbox

import (
	"context"
	"log"

	"github.com/authplane/authplane/internal/db/models"
)

// LoginAuditLog records authentication lifecycle events. It keeps the login
// trail even when no external sink is wired.
type LoginAuditLog struct{}

func (LoginAuditLog) Name() string { return "login-audit-log" }

func (LoginAuditLog) Handle(_ context.Context, event models.OutboxEvent) error {
	switch event.EventType {
	case EventUserLoggedIn, EventTokenGenerated, EventRefreshTokenUsed, EventUserSignedOut:
		log.Printf("INFO: audit login: %s principal %s %s", event.EventType, event.AggregateID, event.Payload)
	}
	return nil
}

// OperationAuditLog records administrative mutations: policy, relation, and
// model changes.
type OperationAuditLog struct{}

func (OperationAuditLog) Name() string { return "operation-audit-log" }

func (OperationAuditLog) Handle(_ context.Context, event models.OutboxEvent) error {
	switch event.AggregateType {
	case AggregatePolicy, AggregateRelation, AggregateModel:
		log.Printf("INFO: audit operation: %s %s %s %s", event.EventType, event.AggregateType, event.AggregateID, event.Payload)
	}
	return nil
}
