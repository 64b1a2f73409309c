package app

import (
	"context"
	"log"

	"github.com/authplane/authplane/internal/cqrs"
	"github.com/authplane/authplane/internal/outbox"
	"github.com/authplane/authplane/internal/repository"
	"github.com/authplane/authplane/internal/rolegraph"
)

// registerHandlers binds every command and query to the bus. Mutation
// handlers share one contract: the store write commits first, then the
// enforcer is asked to reload, then the events are appended to the outbox.
// A failed write aborts the handler; a failed reload only logs, because the
// store is the authoritative state and the reload is retryable.
func (a *App) registerHandlers() error {
	type binding struct {
		name      string
		prototype func() any
		handle    cqrs.HandlerFunc
	}

	commands := []binding{
		{cqrs.CmdPolicyCreate, func() any { return &cqrs.PolicyCreate{} }, func(ctx context.Context, msg any) (any, error) {
			cmd := msg.(*cqrs.PolicyCreate)
			created, event, err := a.PolicySvc.CreatePolicy(ctx, cmd.Policy, cmd.UID)
			if err != nil {
				return nil, err
			}
			return created, a.finishMutation(ctx, event)
		}},
		{cqrs.CmdPolicyDelete, func() any { return &cqrs.PolicyDelete{} }, func(ctx context.Context, msg any) (any, error) {
			cmd := msg.(*cqrs.PolicyDelete)
			event, err := a.PolicySvc.DeletePolicy(ctx, cmd.ID, cmd.UID)
			if err != nil {
				return nil, err
			}
			return nil, a.finishMutation(ctx, event)
		}},
		{cqrs.CmdPolicyBatch, func() any { return &cqrs.PolicyBatch{} }, func(ctx context.Context, msg any) (any, error) {
			cmd := msg.(*cqrs.PolicyBatch)
			event, err := a.PolicySvc.Batch(ctx, cmd.Policies, cmd.Operation, cmd.UID)
			if err != nil {
				return nil, err
			}
			return nil, a.finishMutation(ctx, event)
		}},
		{cqrs.CmdRelationCreate, func() any { return &cqrs.RelationCreate{} }, func(ctx context.Context, msg any) (any, error) {
			cmd := msg.(*cqrs.RelationCreate)
			created, event, err := a.PolicySvc.CreateRelation(ctx, cmd.Relation, cmd.UID)
			if err != nil {
				return nil, err
			}
			return created, a.finishMutation(ctx, event)
		}},
		{cqrs.CmdRelationDelete, func() any { return &cqrs.RelationDelete{} }, func(ctx context.Context, msg any) (any, error) {
			cmd := msg.(*cqrs.RelationDelete)
			event, err := a.PolicySvc.DeleteRelation(ctx, cmd.ID, cmd.UID)
			if err != nil {
				return nil, err
			}
			return nil, a.finishMutation(ctx, event)
		}},
		{cqrs.CmdModelDraft, func() any { return &cqrs.ModelDraftCreate{} }, func(ctx context.Context, msg any) (any, error) {
			cmd := msg.(*cqrs.ModelDraftCreate)
			// Drafts never touch the enforcer; no reload here.
			created, event, err := a.ModelSvc.CreateDraft(ctx, cmd.Content, cmd.Remark, cmd.UID)
			if err != nil {
				return nil, err
			}
			return created, a.Outbox.Emit(ctx, event)
		}},
		{cqrs.CmdModelDraftEdit, func() any { return &cqrs.ModelDraftUpdate{} }, func(ctx context.Context, msg any) (any, error) {
			cmd := msg.(*cqrs.ModelDraftUpdate)
			updated, event, err := a.ModelSvc.UpdateDraft(ctx, cmd.ID, cmd.Content, cmd.Remark, cmd.UID)
			if err != nil {
				return nil, err
			}
			return updated, a.Outbox.Emit(ctx, event)
		}},
		{cqrs.CmdModelPublish, func() any { return &cqrs.ModelPublish{} }, func(ctx context.Context, msg any) (any, error) {
			cmd := msg.(*cqrs.ModelPublish)
			event, err := a.ModelSvc.Publish(ctx, cmd.ID, cmd.UID)
			if err != nil {
				return nil, err
			}
			return nil, a.finishMutation(ctx, event)
		}},
		{cqrs.CmdModelRollback, func() any { return &cqrs.ModelRollback{} }, func(ctx context.Context, msg any) (any, error) {
			cmd := msg.(*cqrs.ModelRollback)
			event, err := a.ModelSvc.Rollback(ctx, cmd.ID, cmd.UID)
			if err != nil {
				return nil, err
			}
			return nil, a.finishMutation(ctx, event)
		}},
		{cqrs.CmdUserVerifyEmail, func() any { return &cqrs.UserVerifyEmail{} }, func(ctx context.Context, msg any) (any, error) {
			cmd := msg.(*cqrs.UserVerifyEmail)
			event, err := a.TokenSvc.VerifyEmail(ctx, cmd.UserID, cmd.UID)
			if err != nil {
				return nil, err
			}
			return nil, a.Outbox.Emit(ctx, event)
		}},
	}

	queries := []binding{
		{cqrs.QryPagePolicies, func() any { return &cqrs.PagePolicies{} }, func(ctx context.Context, msg any) (any, error) {
			q := msg.(*cqrs.PagePolicies)
			return a.PolicySvc.PagePolicies(ctx, repository.PolicyFilter{
				Current: q.Current, Size: q.Size, Ptype: q.Ptype,
				Subject: q.Subject, Object: q.Object, Action: q.Action, Domain: q.Domain,
			})
		}},
		{cqrs.QryPageRelations, func() any { return &cqrs.PageRelations{} }, func(ctx context.Context, msg any) (any, error) {
			q := msg.(*cqrs.PageRelations)
			return a.PolicySvc.PageRelations(ctx, repository.RelationFilter{
				Current: q.Current, Size: q.Size,
				ChildSubject: q.ChildSubject, ParentRole: q.ParentRole, Domain: q.Domain,
			})
		}},
		{cqrs.QryPageModelVersions, func() any { return &cqrs.PageModelVersions{} }, func(ctx context.Context, msg any) (any, error) {
			q := msg.(*cqrs.PageModelVersions)
			return a.ModelSvc.Page(ctx, repository.ModelVersionFilter{Current: q.Current, Size: q.Size, Status: q.Status})
		}},
		{cqrs.QryModelVersion, func() any { return &cqrs.ModelVersionDetail{} }, func(ctx context.Context, msg any) (any, error) {
			q := msg.(*cqrs.ModelVersionDetail)
			return a.ModelSvc.Get(ctx, q.ID)
		}},
		{cqrs.QryModelVersionDiff, func() any { return &cqrs.ModelVersionDiff{} }, func(ctx context.Context, msg any) (any, error) {
			q := msg.(*cqrs.ModelVersionDiff)
			return a.ModelSvc.Diff(ctx, q.SourceID, q.TargetID)
		}},
		{cqrs.QryActiveModel, func() any { return &cqrs.ActiveModel{} }, func(ctx context.Context, _ any) (any, error) {
			return a.ModelSvc.Active(ctx)
		}},
		{cqrs.QryRoleTopology, func() any { return &cqrs.RoleTopology{} }, func(ctx context.Context, msg any) (any, error) {
			q := msg.(*cqrs.RoleTopology)
			relations, err := a.Rules.ListRelations(ctx, q.Domain)
			if err != nil {
				return nil, err
			}
			return rolegraph.BuildTopology(relations, q.Domain), nil
		}},
	}

	for _, b := range commands {
		if err := a.Bus.RegisterCommand(b.name, b.prototype, b.handle); err != nil {
			return err
		}
	}
	for _, b := range queries {
		if err := a.Bus.RegisterQuery(b.name, b.prototype, b.handle); err != nil {
			return err
		}
	}
	return nil
}

// finishMutation runs the post-write half of the mutation contract. The
// event is emitted even when the reload reports failure: the store already
// holds the new state, and the reload will be retried by the next mutation
// or an operator nudge.
func (a *App) finishMutation(ctx context.Context, events ...outbox.Event) error {
	ok := a.Coordinator.Reload(ctx)
	a.Metrics.RecordReload(ctx, ok)
	if !ok {
		log.Printf("WARNING: enforcer reload failed after mutation; store state is committed")
	}
	return a.Outbox.Emit(ctx, events...)
}
