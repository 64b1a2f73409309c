// Package modelcfg manages the versioned model-config lifecycle:
// draft, publish, rollback, diff. Content is validated with the same parser
// the enforcer uses, so a version that publishes is a version that loads.
package modelcfg

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/casbin/casbin/v2/model"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/db/models"
	"github.com/authplane/authplane/internal/dto"
	"github.com/authplane/authplane/internal/outbox"
	"github.com/authplane/authplane/internal/repository"
)

// requiredSections must all appear in model text before the parser even runs,
// so the error can name the missing section instead of echoing parser noise.
var requiredSections = []string{
	"[request_definition]",
	"[policy_definition]",
	"[matchers]",
}

// Service owns the model-config lifecycle. Mutations return the domain event
// describing them; the command layer emits it after the enforcer reload.
type Service struct {
	repo repository.ModelConfigRepository
}

func NewService(repo repository.ModelConfigRepository) *Service {
	return &Service{repo: repo}
}

// Validate checks model text structurally and then parses it.
func (s *Service) Validate(content string) error {
	for _, section := range requiredSections {
		if !strings.Contains(content, section) {
			return apperr.BadRequest("missing section %s", section)
		}
	}
	if _, err := model.NewModelFromString(content); err != nil {
		return apperr.BadRequest("invalid content: %v", err)
	}
	return nil
}

// CreateDraft validates and stores new model text as the next version; the
// store assigns the version number. Drafts never touch the enforcer.
func (s *Service) CreateDraft(ctx context.Context, content string, remark *string, createdBy string) (*dto.ModelConfigDTO, outbox.Event, error) {
	if err := s.Validate(content); err != nil {
		return nil, outbox.Event{}, err
	}

	mc := &models.ModelConfig{
		Content:   content,
		Status:    models.ModelStatusDraft,
		Remark:    remark,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, mc); err != nil {
		return nil, outbox.Event{}, err
	}

	record := toDTO(mc)
	event := outbox.Event{
		AggregateType: outbox.AggregateModel,
		AggregateID:   strconv.FormatInt(mc.ID, 10),
		Type:          outbox.EventModelDraftCreated,
		Payload: map[string]any{
			"id":          mc.ID,
			"version":     mc.Version,
			"fingerprint": Fingerprint(content),
			"createdBy":   createdBy,
		},
	}
	return record, event, nil
}

// UpdateDraft rewrites the content and remark of a draft version.
func (s *Service) UpdateDraft(ctx context.Context, id int64, content string, remark *string, uid string) (*dto.ModelConfigDTO, outbox.Event, error) {
	mc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, outbox.Event{}, err
	}
	if !mc.IsDraft() {
		return nil, outbox.Event{}, apperr.BadRequest("model version %d is %s, only drafts can be edited", mc.Version, mc.Status)
	}
	if err := s.Validate(content); err != nil {
		return nil, outbox.Event{}, err
	}

	mc.Content = content
	mc.Remark = remark
	if err := s.repo.Update(ctx, mc, "content", "remark"); err != nil {
		return nil, outbox.Event{}, err
	}

	event := outbox.Event{
		AggregateType: outbox.AggregateModel,
		AggregateID:   strconv.FormatInt(mc.ID, 10),
		Type:          outbox.EventModelDraftUpdated,
		Payload: map[string]any{
			"id":          mc.ID,
			"version":     mc.Version,
			"fingerprint": Fingerprint(content),
			"updatedBy":   uid,
		},
	}
	return toDTO(mc), event, nil
}

// Publish activates a version. A draft is re-validated first so stored text
// that has since become unparseable can never go live. Publishing the
// already-active version succeeds without touching the store.
func (s *Service) Publish(ctx context.Context, id int64, approvedBy string) (outbox.Event, error) {
	return s.activate(ctx, id, approvedBy, outbox.EventModelPublished, true)
}

// Rollback re-activates an earlier version. The target may hold any status;
// callers normally pick an archived one.
func (s *Service) Rollback(ctx context.Context, id int64, operator string) (outbox.Event, error) {
	return s.activate(ctx, id, operator, outbox.EventModelRolledBack, false)
}

func (s *Service) activate(ctx context.Context, id int64, operator, eventType string, revalidateDrafts bool) (outbox.Event, error) {
	mc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return outbox.Event{}, err
	}

	event := outbox.Event{
		AggregateType: outbox.AggregateModel,
		AggregateID:   strconv.FormatInt(mc.ID, 10),
		Type:          eventType,
		Payload: map[string]any{
			"id":          mc.ID,
			"version":     mc.Version,
			"fingerprint": Fingerprint(mc.Content),
			"operator":    operator,
		},
	}

	if mc.Status == models.ModelStatusActive {
		return event, nil
	}
	if revalidateDrafts && mc.IsDraft() {
		if err := s.Validate(mc.Content); err != nil {
			return outbox.Event{}, err
		}
	}

	if err := s.repo.SetActiveVersion(ctx, id); err != nil {
		return outbox.Event{}, err
	}

	now := time.Now()
	mc.ApprovedBy = &operator
	mc.ApprovedAt = &now
	if err := s.repo.Update(ctx, mc, "approved_by", "approved_at"); err != nil {
		return outbox.Event{}, err
	}
	return event, nil
}

// Active returns the active version, or nil when nothing is published.
func (s *Service) Active(ctx context.Context) (*dto.ModelConfigDTO, error) {
	mc, err := s.repo.GetActive(ctx)
	if err != nil || mc == nil {
		return nil, err
	}
	return toDTO(mc), nil
}

// Get returns one version by id.
func (s *Service) Get(ctx context.Context, id int64) (*dto.ModelConfigDTO, error) {
	mc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDTO(mc), nil
}

// Page lists versions, newest first.
func (s *Service) Page(ctx context.Context, f repository.ModelVersionFilter) (*dto.Page[dto.ModelConfigDTO], error) {
	rows, total, err := s.repo.PageVersions(ctx, f)
	if err != nil {
		return nil, err
	}
	records := make([]dto.ModelConfigDTO, len(rows))
	for i := range rows {
		records[i] = *toDTO(&rows[i])
	}
	return dto.NewPage(f.Current, f.Size, total, records), nil
}

// Diff compares two versions line by line.
func (s *Service) Diff(ctx context.Context, sourceID, targetID int64) (*dto.ModelVersionDiffDTO, error) {
	source, err := s.repo.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &dto.ModelVersionDiffDTO{
		SourceVersionID: sourceID,
		TargetVersionID: targetID,
		Diff:            DiffLines(source.Content, target.Content),
	}, nil
}

func toDTO(mc *models.ModelConfig) *dto.ModelConfigDTO {
	return &dto.ModelConfigDTO{
		ID:         mc.ID,
		Content:    mc.Content,
		Version:    mc.Version,
		Status:     mc.Status,
		Remark:     mc.Remark,
		CreatedBy:  mc.CreatedBy,
		CreatedAt:  mc.CreatedAt,
		ApprovedBy: mc.ApprovedBy,
		ApprovedAt: mc.ApprovedAt,
	}
}
