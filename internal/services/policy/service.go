// Package policy mutates and queries the rule store through the typed
// administrative forms. Mutations return the domain event describing them;
// the command layer requests the enforcer reload and emits the event.
package policy

import (
	"context"
	"strconv"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/db/models"
	"github.com/authplane/authplane/internal/dto"
	"github.com/authplane/authplane/internal/outbox"
	"github.com/authplane/authplane/internal/repository"
)

// Batch operations.
const (
	OpAdd    = "add"
	OpDelete = "delete"
)

type Service struct {
	repo repository.RuleRepository
}

func NewService(repo repository.RuleRepository) *Service {
	return &Service{repo: repo}
}

// CreatePolicy inserts one tuple. The DTO's ptype decides whether a policy
// or a relation row is written; content duplicates are allowed.
func (s *Service) CreatePolicy(ctx context.Context, d dto.PolicyRuleDTO, uid string) (*dto.PolicyRuleDTO, outbox.Event, error) {
	tuple, err := dto.FromDTO(d)
	if err != nil {
		return nil, outbox.Event{}, err
	}

	rule := tuple.ToRule()
	rule.ID = 0
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, outbox.Event{}, err
	}

	stored, err := dto.FromRule(rule)
	if err != nil {
		return nil, outbox.Event{}, err
	}
	result := stored.ToDTO()
	event := outbox.Event{
		AggregateType: outbox.AggregatePolicy,
		AggregateID:   strconv.FormatInt(rule.ID, 10),
		Type:          outbox.EventPolicyCreated,
		Payload:       map[string]any{"rule": result, "uid": uid},
	}
	return &result, event, nil
}

// DeletePolicy removes one policy ("p") tuple by id.
func (s *Service) DeletePolicy(ctx context.Context, id int64, uid string) (outbox.Event, error) {
	if err := s.repo.Delete(ctx, models.PtypePolicy, id); err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: outbox.AggregatePolicy,
		AggregateID:   strconv.FormatInt(id, 10),
		Type:          outbox.EventPolicyDeleted,
		Payload:       map[string]any{"id": id, "uid": uid},
	}, nil
}

// Batch applies one operation to a set of tuples atomically: every row
// commits or none do.
func (s *Service) Batch(ctx context.Context, policies []dto.PolicyRuleDTO, operation, uid string) (outbox.Event, error) {
	if len(policies) == 0 {
		return outbox.Event{}, apperr.BadRequest("batch requires at least one policy")
	}

	switch operation {
	case OpAdd:
		rules := make([]*models.Rule, len(policies))
		for i, d := range policies {
			tuple, err := dto.FromDTO(d)
			if err != nil {
				return outbox.Event{}, err
			}
			rules[i] = tuple.ToRule()
			rules[i].ID = 0
		}
		if err := s.repo.CreateBatch(ctx, rules); err != nil {
			return outbox.Event{}, err
		}
	case OpDelete:
		refs := make([]repository.RuleRef, 0, len(policies))
		for _, d := range policies {
			if d.Ptype != models.PtypePolicy && d.Ptype != models.PtypeRelation {
				return outbox.Event{}, apperr.BadRequest("ptype must be %q or %q, got %q",
					models.PtypePolicy, models.PtypeRelation, d.Ptype)
			}
			if d.ID == 0 {
				return outbox.Event{}, apperr.BadRequest("batch delete requires an id on every policy")
			}
			refs = append(refs, repository.RuleRef{Ptype: d.Ptype, ID: d.ID})
		}
		// One repository call so a mixed "p"/"g" batch shares one transaction.
		if err := s.repo.DeleteBatch(ctx, refs); err != nil {
			return outbox.Event{}, err
		}
	default:
		return outbox.Event{}, apperr.BadRequest("operation must be %q or %q, got %q", OpAdd, OpDelete, operation)
	}

	return outbox.Event{
		AggregateType: outbox.AggregatePolicy,
		AggregateID:   "batch",
		Type:          outbox.EventPolicyBatchApplied,
		Payload:       map[string]any{"operation": operation, "count": len(policies), "uid": uid},
	}, nil
}

// CreateRelation inserts one role-inheritance tuple.
func (s *Service) CreateRelation(ctx context.Context, d dto.RoleRelationDTO, uid string) (*dto.RoleRelationDTO, outbox.Event, error) {
	if d.ChildSubject == "" || d.ParentRole == "" {
		return nil, outbox.Event{}, apperr.BadRequest("relation requires childSubject and parentRole")
	}

	relation := dto.FromRelationDTO(d)
	rule := relation.ToRule()
	rule.ID = 0
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, outbox.Event{}, err
	}

	relation.ID = rule.ID
	result := relation.ToRelationDTO()
	event := outbox.Event{
		AggregateType: outbox.AggregateRelation,
		AggregateID:   strconv.FormatInt(rule.ID, 10),
		Type:          outbox.EventRelationCreated,
		Payload:       map[string]any{"relation": result, "uid": uid},
	}
	return &result, event, nil
}

// DeleteRelation removes one role-inheritance tuple by id.
func (s *Service) DeleteRelation(ctx context.Context, id int64, uid string) (outbox.Event, error) {
	if err := s.repo.Delete(ctx, models.PtypeRelation, id); err != nil {
		return outbox.Event{}, err
	}
	return outbox.Event{
		AggregateType: outbox.AggregateRelation,
		AggregateID:   strconv.FormatInt(id, 10),
		Type:          outbox.EventRelationDeleted,
		Payload:       map[string]any{"id": id, "uid": uid},
	}, nil
}

// PagePolicies lists policy tuples in their typed form.
func (s *Service) PagePolicies(ctx context.Context, f repository.PolicyFilter) (*dto.Page[dto.PolicyRuleDTO], error) {
	rows, total, err := s.repo.PagePolicies(ctx, f)
	if err != nil {
		return nil, err
	}
	records := make([]dto.PolicyRuleDTO, 0, len(rows))
	for i := range rows {
		tuple, err := dto.FromRule(&rows[i])
		if err != nil {
			return nil, err
		}
		records = append(records, tuple.ToDTO())
	}
	return dto.NewPage(f.Current, f.Size, total, records), nil
}

// PageRelations lists role-inheritance tuples in their typed form.
func (s *Service) PageRelations(ctx context.Context, f repository.RelationFilter) (*dto.Page[dto.RoleRelationDTO], error) {
	rows, total, err := s.repo.PageRelations(ctx, f)
	if err != nil {
		return nil, err
	}
	records := make([]dto.RoleRelationDTO, 0, len(rows))
	for i := range rows {
		tuple, err := dto.FromRule(&rows[i])
		if err != nil {
			return nil, err
		}
		relation, ok := tuple.(dto.Relation)
		if !ok {
			return nil, apperr.Internal("rule %d is not a relation", rows[i].ID)
		}
		records = append(records, relation.ToRelationDTO())
	}
	return dto.NewPage(f.Current, f.Size, total, records), nil
}

// GetPolicy fetches one policy tuple by id.
func (s *Service) GetPolicy(ctx context.Context, id int64) (*dto.PolicyRuleDTO, error) {
	rule, err := s.repo.GetPolicyByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tuple, err := dto.FromRule(rule)
	if err != nil {
		return nil, err
	}
	result := tuple.ToDTO()
	return &result, nil
}

// GetRelation fetches one role-inheritance tuple by id.
func (s *Service) GetRelation(ctx context.Context, id int64) (*dto.RoleRelationDTO, error) {
	rule, err := s.repo.GetRelationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	tuple, err := dto.FromRule(rule)
	if err != nil {
		return nil, err
	}
	relation, ok := tuple.(dto.Relation)
	if !ok {
		return nil, apperr.Internal("rule %d is not a relation", id)
	}
	result := relation.ToRelationDTO()
	return &result, nil
}
