package models

import "github.com/uptrace/bun"

// Rule ptypes. "p" rows are permission policies, "g" rows are role inheritance.
const (
	PtypePolicy   = "p"
	PtypeRelation = "g"
)

// Rule is a positional policy tuple with a stable integer identity.
// The semantic interpretation of v0..v5 depends on Ptype:
//
//	p: v0=subject, v1=object, v2=action, v3=domain, v4=effect, v5=extension
//	g: v0=child subject, v1=parent role, v2=domain
//
// Content duplicates are allowed; callers control duplication.
type Rule struct {
	bun.BaseModel `bun:"table:casbin_rules,alias:cr"`

	ID    int64  `bun:"id,pk,autoincrement"`
	Ptype string `bun:"ptype,notnull"`
	V0    string `bun:"v0"`
	V1    string `bun:"v1"`
	V2    string `bun:"v2"`
	V3    string `bun:"v3"`
	V4    string `bun:"v4"`
	V5    string `bun:"v5"`
}

// Values returns v0..v5 truncated after the last non-empty field,
// the shape the enforcer expects when loading policy lines.
func (r *Rule) Values() []string {
	all := []string{r.V0, r.V1, r.V2, r.V3, r.V4, r.V5}
	last := -1
	for i, v := range all {
		if v != "" {
			last = i
		}
	}
	return all[:last+1]
}

// SetValues assigns v0..v5 from a slice, zeroing trailing fields.
func (r *Rule) SetValues(values []string) {
	fields := []*string{&r.V0, &r.V1, &r.V2, &r.V3, &r.V4, &r.V5}
	for i, f := range fields {
		if i < len(values) {
			*f = values[i]
		} else {
			*f = ""
		}
	}
}
