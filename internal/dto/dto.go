package dto

import "time"

// PolicyRuleDTO is the typed administrative form of a policy tuple.
// Administrative operations never surface the positional v0..v5 layout;
// the mapping between the two lives in tuple.go.
type PolicyRuleDTO struct {
	ID      int64  `json:"id,omitempty" mapstructure:"id"`
	Ptype   string `json:"ptype" mapstructure:"ptype"`
	Subject string `json:"subject,omitempty" mapstructure:"subject"`
	Object  string `json:"object,omitempty" mapstructure:"object"`
	Action  string `json:"action,omitempty" mapstructure:"action"`
	Domain  string `json:"domain,omitempty" mapstructure:"domain"`
	Effect  string `json:"effect,omitempty" mapstructure:"effect"`
	V4      string `json:"v4,omitempty" mapstructure:"v4"`
	V5      string `json:"v5,omitempty" mapstructure:"v5"`
}

// RoleRelationDTO is the typed form of a role-inheritance tuple: childSubject
// inherits the permissions of parentRole within domain.
type RoleRelationDTO struct {
	ID           int64  `json:"id,omitempty" mapstructure:"id"`
	ChildSubject string `json:"childSubject" mapstructure:"childSubject"`
	ParentRole   string `json:"parentRole" mapstructure:"parentRole"`
	Domain       string `json:"domain,omitempty" mapstructure:"domain"`
}

// ModelConfigDTO is one version of the enforcer model text.
type ModelConfigDTO struct {
	ID         int64      `json:"id"`
	Content    string     `json:"content"`
	Version    int        `json:"version"`
	Status     string     `json:"status"`
	Remark     *string    `json:"remark,omitempty"`
	CreatedBy  string     `json:"createdBy"`
	CreatedAt  time.Time  `json:"createdAt"`
	ApprovedBy *string    `json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
}

// ModelVersionDiffDTO carries the line diff between two model versions.
type ModelVersionDiffDTO struct {
	SourceVersionID int64  `json:"sourceVersionId"`
	TargetVersionID int64  `json:"targetVersionId"`
	Diff            string `json:"diff"`
}

// TokenPairDTO is returned by login and refresh.
type TokenPairDTO struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	Domain       string `json:"domain,omitempty"`
}

// Page is the pagination envelope shared by all list queries.
type Page[T any] struct {
	Current int   `json:"current"`
	Size    int   `json:"size"`
	Total   int   `json:"total"`
	Records []T   `json:"records"`
}

// NewPage builds an envelope, normalizing a nil records slice to empty so the
// JSON form is always an array.
func NewPage[T any](current, size, total int, records []T) *Page[T] {
	if records == nil {
		records = []T{}
	}
	return &Page[T]{Current: current, Size: size, Total: total, Records: records}
}
