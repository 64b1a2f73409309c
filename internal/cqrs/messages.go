package cqrs

import "github.com/authplane/authplane/internal/dto"

// Command names. Transports dispatch by these; handlers are wired in app.
const (
	CmdPolicyCreate    = "policy.create"
	CmdPolicyDelete    = "policy.delete"
	CmdPolicyBatch     = "policy.batch"
	CmdRelationCreate  = "relation.create"
	CmdRelationDelete  = "relation.delete"
	CmdModelDraft      = "model.draft.create"
	CmdModelDraftEdit  = "model.draft.update"
	CmdModelPublish    = "model.publish"
	CmdModelRollback   = "model.rollback"
	CmdUserVerifyEmail = "user.verify-email"
)

// Query names.
const (
	QryPagePolicies      = "policy.page"
	QryPageRelations     = "relation.page"
	QryPageModelVersions = "model.page"
	QryModelVersion      = "model.get"
	QryModelVersionDiff  = "model.diff"
	QryActiveModel       = "model.active"
	QryRoleTopology      = "role.topology"
)

// PolicyCreate inserts one policy tuple. UID is the acting principal,
// recorded on the audit event.
type PolicyCreate struct {
	Policy dto.PolicyRuleDTO `mapstructure:"policy"`
	UID    string            `mapstructure:"uid"`
}

// PolicyDelete removes one policy tuple by id.
type PolicyDelete struct {
	ID  int64  `mapstructure:"id"`
	UID string `mapstructure:"uid"`
}

// PolicyBatch applies one operation ("add" or "delete") to a set of policy
// tuples atomically.
type PolicyBatch struct {
	Operation string              `mapstructure:"operation"`
	Policies  []dto.PolicyRuleDTO `mapstructure:"policies"`
	UID       string              `mapstructure:"uid"`
}

// RelationCreate inserts one role-inheritance tuple.
type RelationCreate struct {
	Relation dto.RoleRelationDTO `mapstructure:"relation"`
	UID      string              `mapstructure:"uid"`
}

// RelationDelete removes one role-inheritance tuple by id.
type RelationDelete struct {
	ID  int64  `mapstructure:"id"`
	UID string `mapstructure:"uid"`
}

// ModelDraftCreate stores new model text as a draft version.
type ModelDraftCreate struct {
	Content string  `mapstructure:"content"`
	Remark  *string `mapstructure:"remark"`
	UID     string  `mapstructure:"uid"`
}

// ModelDraftUpdate rewrites the content or remark of an existing draft.
type ModelDraftUpdate struct {
	ID      int64   `mapstructure:"id"`
	Content string  `mapstructure:"content"`
	Remark  *string `mapstructure:"remark"`
	UID     string  `mapstructure:"uid"`
}

// ModelPublish activates a version, demoting the previous active one.
type ModelPublish struct {
	ID  int64  `mapstructure:"id"`
	UID string `mapstructure:"uid"`
}

// ModelRollback re-activates an earlier version.
type ModelRollback struct {
	ID  int64  `mapstructure:"id"`
	UID string `mapstructure:"uid"`
}

// UserVerifyEmail flags a user's email address as verified.
type UserVerifyEmail struct {
	UserID int64  `mapstructure:"userId"`
	UID    string `mapstructure:"uid"`
}

// PagePolicies lists policy tuples. Ptype is an exact match defaulting to
// "p"; the remaining string fields are substring filters.
type PagePolicies struct {
	Current int    `mapstructure:"current"`
	Size    int    `mapstructure:"size"`
	Ptype   string `mapstructure:"ptype"`
	Subject string `mapstructure:"subject"`
	Object  string `mapstructure:"object"`
	Action  string `mapstructure:"action"`
	Domain  string `mapstructure:"domain"`
}

// PageRelations lists role-inheritance tuples.
type PageRelations struct {
	Current      int    `mapstructure:"current"`
	Size         int    `mapstructure:"size"`
	ChildSubject string `mapstructure:"childSubject"`
	ParentRole   string `mapstructure:"parentRole"`
	Domain       string `mapstructure:"domain"`
}

// PageModelVersions lists model versions, newest first.
type PageModelVersions struct {
	Current int    `mapstructure:"current"`
	Size    int    `mapstructure:"size"`
	Status  string `mapstructure:"status"`
}

// ModelVersionDetail fetches one model version.
type ModelVersionDetail struct {
	ID int64 `mapstructure:"id"`
}

// ModelVersionDiff compares two model versions line by line.
type ModelVersionDiff struct {
	SourceID int64 `mapstructure:"sourceId"`
	TargetID int64 `mapstructure:"targetId"`
}

// ActiveModel fetches the currently active model version.
type ActiveModel struct{}

// RoleTopology layers the role-inheritance graph of one domain.
type RoleTopology struct {
	Domain string `mapstructure:"domain"`
}
