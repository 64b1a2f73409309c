package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/db/models"
)

func policyRule(subject, object, action, domain string) *models.Rule {
	return &models.Rule{Ptype: models.PtypePolicy, V0: subject, V1: object, V2: action, V3: domain}
}

func TestBunRuleRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunRuleRepository(db)
	ctx := context.Background()

	rule := policyRule("admin", "/api/users", "GET", "")
	require.NoError(t, repo.Create(ctx, rule))
	assert.Equal(t, int64(1), rule.ID, "first insert takes id 1")

	got, err := repo.GetPolicyByID(ctx, rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", got.V0)
	assert.Equal(t, "/api/users", got.V1)

	// A "g" lookup for a "p" row is NotFound: the read contracts are
	// ptype-scoped.
	_, err = repo.GetRelationByID(ctx, rule.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestBunRuleRepository_DuplicatesAllowed(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunRuleRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, policyRule("r1", "/a", "GET", "")))
	require.NoError(t, repo.Create(ctx, policyRule("r1", "/a", "GET", "")))

	rules, total, err := repo.PagePolicies(ctx, PolicyFilter{Current: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, rules, 2)
	assert.NotEqual(t, rules[0].ID, rules[1].ID)
}

func TestBunRuleRepository_PageFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunRuleRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, policyRule("admin", "/api/users", "GET", "acme")))
	require.NoError(t, repo.Create(ctx, policyRule("editor", "/api/posts", "POST", "acme")))
	require.NoError(t, repo.Create(ctx, policyRule("admin", "/api/posts", "DELETE", "other")))
	require.NoError(t, repo.Create(ctx, &models.Rule{Ptype: models.PtypeRelation, V0: "u1", V1: "admin", V2: "acme"}))

	// Substring match on subject.
	rules, total, err := repo.PagePolicies(ctx, PolicyFilter{Current: 1, Size: 10, Subject: "adm"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rules, 2)
	assert.Less(t, rules[0].ID, rules[1].ID, "ordered by id ascending")

	// Combined filters narrow further.
	rules, total, err = repo.PagePolicies(ctx, PolicyFilter{Current: 1, Size: 10, Subject: "admin", Domain: "other"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rules, 1)
	assert.Equal(t, "DELETE", rules[0].V2)

	// "g" rows never leak into the default policy page.
	_, total, err = repo.PagePolicies(ctx, PolicyFilter{Current: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	// An explicit ptype pages that kind exactly.
	rules, total, err = repo.PagePolicies(ctx, PolicyFilter{Current: 1, Size: 10, Ptype: models.PtypeRelation})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, rules, 1)
	assert.Equal(t, "u1", rules[0].V0)

	relations, total, err := repo.PageRelations(ctx, RelationFilter{Current: 1, Size: 10, ParentRole: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, relations, 1)
	assert.Equal(t, "u1", relations[0].V0)
}

func TestBunRuleRepository_Pagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunRuleRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, policyRule("r1", "/a", "GET", "")))
	}

	page, total, err := repo.PagePolicies(ctx, PolicyFilter{Current: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].ID)
	assert.Equal(t, int64(4), page[1].ID)
}

func TestBunRuleRepository_DeleteNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunRuleRepository(db)
	ctx := context.Background()

	err := repo.Delete(ctx, models.PtypePolicy, 999)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestBunRuleRepository_BatchDeleteRollsBack(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunRuleRepository(db)
	ctx := context.Background()

	r1 := policyRule("r1", "/a", "GET", "")
	r2 := policyRule("r1", "/b", "GET", "")
	require.NoError(t, repo.CreateBatch(ctx, []*models.Rule{r1, r2}))

	// One missing id fails the whole batch; the existing row survives.
	err := repo.DeleteBatch(ctx, []RuleRef{
		{Ptype: models.PtypePolicy, ID: r1.ID},
		{Ptype: models.PtypePolicy, ID: 999},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, total, err := repo.PagePolicies(ctx, PolicyFilter{Current: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	require.NoError(t, repo.DeleteBatch(ctx, []RuleRef{
		{Ptype: models.PtypePolicy, ID: r1.ID},
		{Ptype: models.PtypePolicy, ID: r2.ID},
	}))
	_, total, err = repo.PagePolicies(ctx, PolicyFilter{Current: 1, Size: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestBunRuleRepository_BatchDeleteMixedPtypesRollsBack(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunRuleRepository(db)
	ctx := context.Background()

	p := policyRule("r1", "/a", "GET", "")
	g := &models.Rule{Ptype: models.PtypeRelation, V0: "u1", V1: "admin", V2: "acme"}
	require.NoError(t, repo.CreateBatch(ctx, []*models.Rule{p, g}))

	// A missing "g" id rolls back the "p" delete too: the batch shares one
	// transaction across ptypes.
	err := repo.DeleteBatch(ctx, []RuleRef{
		{Ptype: models.PtypePolicy, ID: p.ID},
		{Ptype: models.PtypeRelation, ID: 999},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	got, err := repo.GetPolicyByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "r1", got.V0)

	// The valid mix deletes both rows.
	require.NoError(t, repo.DeleteBatch(ctx, []RuleRef{
		{Ptype: models.PtypePolicy, ID: p.ID},
		{Ptype: models.PtypeRelation, ID: g.ID},
	}))
	_, err = repo.GetRelationByID(ctx, g.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestBunRuleRepository_ListRelations(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunRuleRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Rule{Ptype: models.PtypeRelation, V0: "u1", V1: "admin", V2: "acme"}))
	require.NoError(t, repo.Create(ctx, &models.Rule{Ptype: models.PtypeRelation, V0: "u2", V1: "editor", V2: "other"}))
	require.NoError(t, repo.Create(ctx, &models.Rule{Ptype: models.PtypeRelation, V0: "u3", V1: "viewer"}))

	// Domain filter keeps domainless rows visible.
	rules, err := repo.ListRelations(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "u1", rules[0].V0)
	assert.Equal(t, "u3", rules[1].V0)

	all, err := repo.ListRelations(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
