package models

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// User account states.
const (
	UserStatusEnabled  = "enabled"
	UserStatusDisabled = "disabled"
)

// User is a local login principal. Login accepts any of username, email,
// or phone number as the identifier; the password is verified against the
// bcrypt hash.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID            int64     `bun:"id,pk,autoincrement"`
	Username      string    `bun:"username,notnull,unique"`
	Email         *string   `bun:"email,unique"`
	PhoneNumber   *string   `bun:"phone_number,unique"`
	PasswordHash  string    `bun:"password_hash,notnull"`
	Domain        string    `bun:"domain,notnull,default:''"`
	Status        string    `bun:"status,notnull,default:'enabled'"`
	EmailVerified bool      `bun:"email_verified,notnull,default:false"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// UID returns the string form of the user id used in token claims and
// role-cache keys.
func (u *User) UID() string {
	return strconv.FormatInt(u.ID, 10)
}

// Enabled reports whether the account may authenticate.
func (u *User) Enabled() bool {
	return u.Status == UserStatusEnabled
}
