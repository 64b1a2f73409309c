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

// BunRuleRepository persists policy tuples using Bun against PostgreSQL or SQLite.
type BunRuleRepository struct {
	db *bun.DB
}

// NewBunRuleRepository constructs the rule store backed by Bun.
func NewBunRuleRepository(db *bun.DB) *BunRuleRepository {
	return &BunRuleRepository{db: db}
}

// PagePolicies returns one page of rows ordered by id ascending. An empty
// filter ptype pages "p" rows.
func (r *BunRuleRepository) PagePolicies(ctx context.Context, f PolicyFilter) ([]models.Rule, int, error) {
	ptype := f.Ptype
	if ptype == "" {
		ptype = models.PtypePolicy
	}
	q := r.db.NewSelect().Model((*models.Rule)(nil)).Where("ptype = ?", ptype)
	q = likeFilter(q, "v0", f.Subject)
	q = likeFilter(q, "v1", f.Object)
	q = likeFilter(q, "v2", f.Action)
	q = likeFilter(q, "v3", f.Domain)

	return scanPage(ctx, q, f.Current, f.Size)
}

// PageRelations returns one page of "g" rows ordered by id ascending.
func (r *BunRuleRepository) PageRelations(ctx context.Context, f RelationFilter) ([]models.Rule, int, error) {
	q := r.db.NewSelect().Model((*models.Rule)(nil)).Where("ptype = ?", models.PtypeRelation)
	q = likeFilter(q, "v0", f.ChildSubject)
	q = likeFilter(q, "v1", f.ParentRole)
	q = likeFilter(q, "v2", f.Domain)

	return scanPage(ctx, q, f.Current, f.Size)
}

// GetPolicyByID fetches a "p" row by id.
func (r *BunRuleRepository) GetPolicyByID(ctx context.Context, id int64) (*models.Rule, error) {
	return r.getByID(ctx, models.PtypePolicy, id)
}

// GetRelationByID fetches a "g" row by id.
func (r *BunRuleRepository) GetRelationByID(ctx context.Context, id int64) (*models.Rule, error) {
	return r.getByID(ctx, models.PtypeRelation, id)
}

func (r *BunRuleRepository) getByID(ctx context.Context, ptype string, id int64) (*models.Rule, error) {
	rule := new(models.Rule)
	err := r.db.NewSelect().Model(rule).
		Where("ptype = ?", ptype).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("%s not found: id %d", ruleKind(ptype), id)
		}
		return nil, fmt.Errorf("query rule: %w", err)
	}
	return rule, nil
}

// ListRelations returns all "g" rows for a domain (or domainless rows),
// ordered by id ascending.
func (r *BunRuleRepository) ListRelations(ctx context.Context, domain string) ([]models.Rule, error) {
	var rules []models.Rule
	q := r.db.NewSelect().Model(&rules).Where("ptype = ?", models.PtypeRelation)
	if domain != "" {
		q = q.Where("(v2 = ? OR v2 = '')", domain)
	}
	if err := q.Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	return rules, nil
}

// Create inserts a tuple. Content duplicates are allowed; callers control
// duplication.
func (r *BunRuleRepository) Create(ctx context.Context, rule *models.Rule) error {
	if _, err := r.db.NewInsert().Model(rule).Exec(ctx); err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// CreateBatch inserts all tuples in one transaction.
func (r *BunRuleRepository) CreateBatch(ctx context.Context, rules []*models.Rule) error {
	if len(rules) == 0 {
		return nil
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, rule := range rules {
			if _, err := tx.NewInsert().Model(rule).Exec(ctx); err != nil {
				return fmt.Errorf("insert rule: %w", err)
			}
		}
		return nil
	})
}

// Delete removes a tuple by id, scoped to its ptype.
func (r *BunRuleRepository) Delete(ctx context.Context, ptype string, id int64) error {
	result, err := r.db.NewDelete().Model((*models.Rule)(nil)).
		Where("ptype = ?", ptype).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return apperr.NotFound("%s not found: id %d", ruleKind(ptype), id)
	}
	return nil
}

// DeleteBatch removes all referenced tuples in one transaction, whatever mix
// of ptypes the refs carry; a single missing ref rolls the batch back.
func (r *BunRuleRepository) DeleteBatch(ctx context.Context, refs []RuleRef) error {
	if len(refs) == 0 {
		return nil
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, ref := range refs {
			result, err := tx.NewDelete().Model((*models.Rule)(nil)).
				Where("ptype = ?", ref.Ptype).
				Where("id = ?", ref.ID).
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("delete rule: %w", err)
			}
			rows, _ := result.RowsAffected()
			if rows == 0 {
				return apperr.NotFound("%s not found: id %d", ruleKind(ref.Ptype), ref.ID)
			}
		}
		return nil
	})
}

func ruleKind(ptype string) string {
	if ptype == models.PtypeRelation {
		return "role relation"
	}
	return "policy rule"
}

func likeFilter(q *bun.SelectQuery, column, value string) *bun.SelectQuery {
	if value == "" {
		return q
	}
	return q.Where(column+" LIKE ?", "%"+value+"%")
}

// scanPage applies (current, size) pagination and returns the page together
// with the unpaged total. Page numbers start at 1.
func scanPage(ctx context.Context, q *bun.SelectQuery, current, size int) ([]models.Rule, int, error) {
	if current < 1 {
		current = 1
	}
	if size < 1 {
		size = 10
	}

	var rules []models.Rule
	total, err := q.Order("id ASC").
		Limit(size).
		Offset((current - 1) * size).
		ScanAndCount(ctx, &rules)
	if err != nil {
		return nil, 0, fmt.Errorf("page rules: %w", err)
	}
	return rules, total, nil
}
