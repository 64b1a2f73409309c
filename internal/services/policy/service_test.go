package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/db/bunx"
	"github.com/authplane/authplane/internal/db/models"
	"github.com/authplane/authplane/internal/dto"
	"github.com/authplane/authplane/internal/outbox"
	"github.com/authplane/authplane/internal/repository"
)

func setupService(t *testing.T) *Service {
	t.Helper()
	db, err := bunx.NewDB(":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.NewCreateTable().Model((*models.Rule)(nil)).Exec(context.Background())
	require.NoError(t, err)

	return NewService(repository.NewBunRuleRepository(db))
}

func TestCreatePolicy(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, event, err := svc.CreatePolicy(ctx, dto.PolicyRuleDTO{
		Ptype:   "p",
		Subject: "admin",
		Object:  "/api/v1/policies",
		Action:  "GET",
		Domain:  "acme",
		Effect:  "allow",
	}, "u:1")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, outbox.EventPolicyCreated, event.Type)
	assert.Equal(t, outbox.AggregatePolicy, event.AggregateType)

	fetched, err := svc.GetPolicy(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", fetched.Subject)
	assert.Equal(t, "acme", fetched.Domain)
}

func TestCreatePolicyUnknownPtype(t *testing.T) {
	svc := setupService(t)

	_, _, err := svc.CreatePolicy(context.Background(), dto.PolicyRuleDTO{Ptype: "x"}, "u:1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestDeletePolicy(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, _, err := svc.CreatePolicy(ctx, dto.PolicyRuleDTO{Ptype: "p", Subject: "a", Object: "/x", Action: "GET"}, "u:1")
	require.NoError(t, err)

	event, err := svc.DeletePolicy(ctx, created.ID, "u:1")
	require.NoError(t, err)
	assert.Equal(t, outbox.EventPolicyDeleted, event.Type)

	_, err = svc.GetPolicy(ctx, created.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeletePolicyMissing(t *testing.T) {
	svc := setupService(t)

	_, err := svc.DeletePolicy(context.Background(), 999, "u:1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestBatchAddThenDelete(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	event, err := svc.Batch(ctx, []dto.PolicyRuleDTO{
		{Ptype: "p", Subject: "r1", Object: "/a", Action: "GET"},
		{Ptype: "p", Subject: "r1", Object: "/b", Action: "GET"},
	}, OpAdd, "u1")
	require.NoError(t, err)
	assert.Equal(t, outbox.EventPolicyBatchApplied, event.Type)

	page, err := svc.PagePolicies(ctx, repository.PolicyFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)

	deletes := make([]dto.PolicyRuleDTO, 0, 2)
	for _, rec := range page.Records {
		deletes = append(deletes, dto.PolicyRuleDTO{ID: rec.ID, Ptype: "p"})
	}
	_, err = svc.Batch(ctx, deletes, OpDelete, "u1")
	require.NoError(t, err)

	page, err = svc.PagePolicies(ctx, repository.PolicyFilter{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestBatchRejectsUnknownOperation(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Batch(context.Background(), []dto.PolicyRuleDTO{{Ptype: "p"}}, "upsert", "u:1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestBatchRejectsEmpty(t *testing.T) {
	svc := setupService(t)

	_, err := svc.Batch(context.Background(), nil, OpAdd, "u:1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestBatchDeleteMissingIDRollsBack(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, _, err := svc.CreatePolicy(ctx, dto.PolicyRuleDTO{Ptype: "p", Subject: "a", Object: "/x", Action: "GET"}, "u:1")
	require.NoError(t, err)

	_, err = svc.Batch(ctx, []dto.PolicyRuleDTO{
		{ID: created.ID, Ptype: "p"},
		{ID: 999, Ptype: "p"},
	}, OpDelete, "u:1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	// The existing row survives the failed batch.
	_, err = svc.GetPolicy(ctx, created.ID)
	require.NoError(t, err)
}

func TestBatchDeleteMixedPtypesAtomic(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, _, err := svc.CreatePolicy(ctx, dto.PolicyRuleDTO{Ptype: "p", Subject: "a", Object: "/x", Action: "GET"}, "u:1")
	require.NoError(t, err)

	// A missing "g" id fails the batch and the "p" row is untouched: both
	// kinds delete inside the same transaction.
	_, err = svc.Batch(ctx, []dto.PolicyRuleDTO{
		{ID: created.ID, Ptype: "p"},
		{ID: 9999, Ptype: "g"},
	}, OpDelete, "u:1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.GetPolicy(ctx, created.ID)
	require.NoError(t, err)

	// With both refs valid the mixed batch deletes both kinds.
	relation, _, err := svc.CreateRelation(ctx, dto.RoleRelationDTO{ChildSubject: "u1", ParentRole: "admin"}, "u:1")
	require.NoError(t, err)

	_, err = svc.Batch(ctx, []dto.PolicyRuleDTO{
		{ID: created.ID, Ptype: "p"},
		{ID: relation.ID, Ptype: "g"},
	}, OpDelete, "u:1")
	require.NoError(t, err)

	_, err = svc.GetPolicy(ctx, created.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = svc.GetRelation(ctx, relation.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCreateRelation(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, event, err := svc.CreateRelation(ctx, dto.RoleRelationDTO{
		ChildSubject: "u42",
		ParentRole:   "admin",
		Domain:       "acme",
	}, "u1")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, outbox.EventRelationCreated, event.Type)

	fetched, err := svc.GetRelation(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "u42", fetched.ChildSubject)
	assert.Equal(t, "admin", fetched.ParentRole)
	assert.Equal(t, "acme", fetched.Domain)
}

func TestCreateRelationRequiresEndpoints(t *testing.T) {
	svc := setupService(t)

	_, _, err := svc.CreateRelation(context.Background(), dto.RoleRelationDTO{ChildSubject: "u42"}, "u1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindBadRequest, apperr.KindOf(err))
}

func TestDeleteRelationScopedByPtype(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	created, _, err := svc.CreatePolicy(ctx, dto.PolicyRuleDTO{Ptype: "p", Subject: "a", Object: "/x", Action: "GET"}, "u:1")
	require.NoError(t, err)

	// A policy id is invisible to the relation delete path.
	_, err = svc.DeleteRelation(ctx, created.ID, "u:1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestPagePoliciesFilters(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	for _, d := range []dto.PolicyRuleDTO{
		{Ptype: "p", Subject: "admin", Object: "/a", Action: "GET", Domain: "acme"},
		{Ptype: "p", Subject: "viewer", Object: "/a", Action: "GET", Domain: "acme"},
		{Ptype: "p", Subject: "admin", Object: "/b", Action: "POST", Domain: "globex"},
	} {
		_, _, err := svc.CreatePolicy(ctx, d, "u:1")
		require.NoError(t, err)
	}

	page, err := svc.PagePolicies(ctx, repository.PolicyFilter{Subject: "admin"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = svc.PagePolicies(ctx, repository.PolicyFilter{Subject: "admin", Domain: "acme"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, "/a", page.Records[0].Object)
}

func TestPagePoliciesPtypeFilter(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, _, err := svc.CreatePolicy(ctx, dto.PolicyRuleDTO{Ptype: "p", Subject: "admin", Object: "/a", Action: "GET"}, "u:1")
	require.NoError(t, err)
	_, _, err = svc.CreateRelation(ctx, dto.RoleRelationDTO{ChildSubject: "u1", ParentRole: "admin", Domain: "acme"}, "u:1")
	require.NoError(t, err)

	// Default pages "p" rows only.
	page, err := svc.PagePolicies(ctx, repository.PolicyFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "p", page.Records[0].Ptype)

	// An explicit "g" pages the relation rows in tuple form.
	page, err = svc.PagePolicies(ctx, repository.PolicyFilter{Ptype: "g"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "g", page.Records[0].Ptype)
	assert.Equal(t, "u1", page.Records[0].Subject)
	assert.Equal(t, "admin", page.Records[0].Object)
}

func TestPageRelationsTypedShape(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	_, _, err := svc.CreateRelation(ctx, dto.RoleRelationDTO{ChildSubject: "u1", ParentRole: "editor", Domain: "acme"}, "u:1")
	require.NoError(t, err)
	_, _, err = svc.CreatePolicy(ctx, dto.PolicyRuleDTO{Ptype: "p", Subject: "editor", Object: "/a", Action: "GET"}, "u:1")
	require.NoError(t, err)

	page, err := svc.PageRelations(ctx, repository.RelationFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "u1", page.Records[0].ChildSubject)
	assert.Equal(t, "editor", page.Records[0].ParentRole)
}
