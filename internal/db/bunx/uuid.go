package bunx

import "github.com/google/uuid"

// NewUUIDv7 generates a time-ordered UUIDv7 string.
//
// Used for request ids, JWT jti claims, and event trace ids where
// time-ordered sortability matters; row primary keys stay with the
// database's integer autoincrement.
//
// Panics on generation failure, which only occurs on catastrophic system
// failures (entropy source exhaustion); nothing downstream could proceed
// without ids anyway.
func NewUUIDv7() string {
	return uuid.Must(uuid.NewV7()).String()
}
