package bunadapter

import (
	"context"
	"fmt"

	"github.com/casbin/casbin/v2/model"
	"github.com/uptrace/bun"

	"github.com/authplane/authplane/internal/db/models"
)

// Adapter loads the casbin policy set from the rule store. Derived from
// github.com/msales/casbin-bun-adapter, reduced to a read-only adapter: all
// policy mutations in this system go through the rule repository, and the
// enforcer is rebuilt from the store afterwards, so the casbin-side write
// hooks would only invite a second, unversioned mutation path.
type Adapter struct {
	db *bun.DB
}

// NewAdapter creates an adapter over an existing bun connection. Expects the
// casbin_rules table to exist.
func NewAdapter(db *bun.DB) *Adapter {
	return &Adapter{db: db}
}

// LoadPolicy loads every stored rule into the model, ordered by id so
// repeated loads produce an identical in-memory policy sequence.
func (a *Adapter) LoadPolicy(m model.Model) error {
	var rules []models.Rule
	if err := a.db.NewSelect().Model(&rules).Order("id ASC").Scan(context.Background()); err != nil {
		return fmt.Errorf("load policy rules: %w", err)
	}

	for i := range rules {
		values, lastNonEmpty := valueSlice(&rules[i])
		if lastNonEmpty == -1 {
			continue // skip empty rule
		}
		_ = m.AddPolicy(rules[i].Ptype, rules[i].Ptype, values[:lastNonEmpty+1])
	}
	return nil
}

// SavePolicy is intentionally unsupported: the rule repository is the only
// writer of policy state.
func (a *Adapter) SavePolicy(model.Model) error {
	return fmt.Errorf("adapter is read-only: mutate rules through the rule store")
}

// AddPolicy is intentionally unsupported; see SavePolicy.
func (a *Adapter) AddPolicy(string, string, []string) error {
	return fmt.Errorf("adapter is read-only: mutate rules through the rule store")
}

// RemovePolicy is intentionally unsupported; see SavePolicy.
func (a *Adapter) RemovePolicy(string, string, []string) error {
	return fmt.Errorf("adapter is read-only: mutate rules through the rule store")
}

// RemoveFilteredPolicy is intentionally unsupported; see SavePolicy.
func (a *Adapter) RemoveFilteredPolicy(string, string, int, ...string) error {
	return fmt.Errorf("adapter is read-only: mutate rules through the rule store")
}

// valueSlice returns v0..v5 together with the index of the last non-empty
// field; empty fields in the middle are preserved.
func valueSlice(r *models.Rule) ([]string, int) {
	values := []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
	lastNonEmpty := -1
	for i := len(values) - 1; i >= 0; i-- {
		if values[i] != "" {
			lastNonEmpty = i
			break
		}
	}
	return values, lastNonEmpty
}
