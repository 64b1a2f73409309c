package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Refresh-token states. A refresh token is single-use: once exchanged it
// transitions unused → used and is never accepted again.
const (
	TokenStatusUnused = "unused"
	TokenStatusUsed   = "used"
)

// Login types recorded on token rows.
const (
	LoginTypePassword = "password"
	LoginTypeRefresh  = "refresh"
)

// AuthToken is one issued access+refresh pair together with the request
// context it was issued under. Rows are never deleted by the core; expiry
// is enforced by the JWT claims, the status column only guards single-use
// refresh semantics.
type AuthToken struct {
	bun.BaseModel `bun:"table:auth_tokens,alias:at"`

	ID           int64     `bun:"id,pk,autoincrement"`
	AccessToken  string    `bun:"access_token,notnull"`
	RefreshToken string    `bun:"refresh_token,notnull,unique"`
	Status       string    `bun:"status,notnull,default:'unused'"`
	UserID       string    `bun:"user_id,notnull"`
	Username     string    `bun:"username,notnull"`
	Domain       string    `bun:"domain,notnull,default:''"`
	IP           string    `bun:"ip"`
	Address      string    `bun:"address"`
	UserAgent    string    `bun:"user_agent"`
	RequestID    string    `bun:"request_id"`
	LoginType    string    `bun:"login_type,notnull,default:'password'"`
	Port         *int      `bun:"port"`
	CreatedBy    string    `bun:"created_by"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
