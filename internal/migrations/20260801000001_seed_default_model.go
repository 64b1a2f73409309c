package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/authplane/authplane/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260801000001, down_20260801000001)
}

// defaultModelContent is a domain-aware RBAC model. It ships as a draft so
// operators review and publish it explicitly; nothing is enforced until then.
const defaultModelContent = `[request_definition]
r = sub, obj, act, dom

[policy_definition]
p = sub, obj, act, dom

[role_definition]
g = _, _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub, r.dom) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act) && r.dom == p.dom
`

// up_20260801000001 seeds the starter enforcement model as version 1
func up_20260801000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] seeding default model config...")

	remark := "domain RBAC starter model"
	seed := models.ModelConfig{
		Version:   1,
		Content:   defaultModelContent,
		Status:    models.ModelStatusDraft,
		Remark:    &remark,
		CreatedBy: "system",
	}
	if _, err := db.NewInsert().
		Model(&seed).
		On("CONFLICT (version) DO NOTHING").
		Exec(ctx); err != nil {
		return fmt.Errorf("seed default model config: %w", err)
	}

	fmt.Println(" OK")
	return nil
}

// down_20260801000001 removes the seeded model if it was never touched
func down_20260801000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] removing seeded model config...")

	_, err := db.NewDelete().
		Model((*models.ModelConfig)(nil)).
		Where("version = 1 AND status = ?", models.ModelStatusDraft).
		Where("created_by = 'system'").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("remove seeded model config: %w", err)
	}

	fmt.Println(" OK")
	return nil
}
