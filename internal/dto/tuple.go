package dto

import (
	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/db/models"
)

// Tuple is the sum type over the two rule kinds. The positional v0..v5
// layout is a storage concern: it appears only in ToRule/FromRule, never at
// the administrative boundary.
type Tuple interface {
	Ptype() string
	ToRule() *models.Rule
	ToDTO() PolicyRuleDTO
}

// Policy is a permission tuple ("p"): subject may/may-not perform action on
// object within domain.
type Policy struct {
	ID        int64
	Subject   string
	Object    string
	Action    string
	Domain    string
	Effect    string
	Extension string
}

func (Policy) Ptype() string { return models.PtypePolicy }

// ToRule lays the policy out positionally:
// v0=subject v1=object v2=action v3=domain v4=effect v5=extension.
func (p Policy) ToRule() *models.Rule {
	return &models.Rule{
		ID:    p.ID,
		Ptype: models.PtypePolicy,
		V0:    p.Subject,
		V1:    p.Object,
		V2:    p.Action,
		V3:    p.Domain,
		V4:    p.Effect,
		V5:    p.Extension,
	}
}

func (p Policy) ToDTO() PolicyRuleDTO {
	return PolicyRuleDTO{
		ID:      p.ID,
		Ptype:   models.PtypePolicy,
		Subject: p.Subject,
		Object:  p.Object,
		Action:  p.Action,
		Domain:  p.Domain,
		Effect:  p.Effect,
		V5:      p.Extension,
	}
}

// Relation is a role-inheritance tuple ("g"): ChildSubject inherits
// ParentRole within Domain.
type Relation struct {
	ID           int64
	ChildSubject string
	ParentRole   string
	Domain       string
	V4           string
	V5           string
}

func (Relation) Ptype() string { return models.PtypeRelation }

// ToRule folds the relation positionally: v0=child v1=parent v2=domain.
// The DTO's v4/v5 shift down to v3/v4 so typed information survives the
// round trip.
func (r Relation) ToRule() *models.Rule {
	return &models.Rule{
		ID:    r.ID,
		Ptype: models.PtypeRelation,
		V0:    r.ChildSubject,
		V1:    r.ParentRole,
		V2:    r.Domain,
		V3:    r.V4,
		V4:    r.V5,
	}
}

func (r Relation) ToDTO() PolicyRuleDTO {
	return PolicyRuleDTO{
		ID:      r.ID,
		Ptype:   models.PtypeRelation,
		Subject: r.ChildSubject,
		Object:  r.ParentRole,
		Domain:  r.Domain,
		V4:      r.V4,
		V5:      r.V5,
	}
}

// ToRelationDTO renders the relation in its dedicated boundary shape.
func (r Relation) ToRelationDTO() RoleRelationDTO {
	return RoleRelationDTO{
		ID:           r.ID,
		ChildSubject: r.ChildSubject,
		ParentRole:   r.ParentRole,
		Domain:       r.Domain,
	}
}

// FromDTO translates the typed administrative form into a Tuple.
// Unknown ptypes are a caller error.
func FromDTO(d PolicyRuleDTO) (Tuple, error) {
	switch d.Ptype {
	case models.PtypePolicy:
		return Policy{
			ID:        d.ID,
			Subject:   d.Subject,
			Object:    d.Object,
			Action:    d.Action,
			Domain:    d.Domain,
			Effect:    d.Effect,
			Extension: d.V5,
		}, nil
	case models.PtypeRelation:
		return Relation{
			ID:           d.ID,
			ChildSubject: d.Subject,
			ParentRole:   d.Object,
			Domain:       d.Domain,
			V4:           d.V4,
			V5:           d.V5,
		}, nil
	default:
		return nil, apperr.BadRequest("ptype must be %q or %q, got %q",
			models.PtypePolicy, models.PtypeRelation, d.Ptype)
	}
}

// FromRelationDTO translates the dedicated relation boundary shape.
func FromRelationDTO(d RoleRelationDTO) Relation {
	return Relation{
		ID:           d.ID,
		ChildSubject: d.ChildSubject,
		ParentRole:   d.ParentRole,
		Domain:       d.Domain,
	}
}

// FromRule recovers the typed form from a stored positional row.
func FromRule(r *models.Rule) (Tuple, error) {
	switch r.Ptype {
	case models.PtypePolicy:
		return Policy{
			ID:        r.ID,
			Subject:   r.V0,
			Object:    r.V1,
			Action:    r.V2,
			Domain:    r.V3,
			Effect:    r.V4,
			Extension: r.V5,
		}, nil
	case models.PtypeRelation:
		return Relation{
			ID:           r.ID,
			ChildSubject: r.V0,
			ParentRole:   r.V1,
			Domain:       r.V2,
			V4:           r.V3,
			V5:           r.V4,
		}, nil
	default:
		return nil, apperr.Internal("rule %d has unknown ptype %q", r.ID, r.Ptype)
	}
}
