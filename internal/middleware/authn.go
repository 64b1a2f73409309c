// Package middleware carries the HTTP request guards: bearer-token
// authentication resolving a principal, and enforcer-backed authorization
// over (subject, path, method, domain).
package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/authplane/authplane/internal/rolecache"
	"github.com/authplane/authplane/internal/server/httperr"
	"github.com/authplane/authplane/internal/services/token"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UID      string
	Username string
	Domain   string
	Roles    []string
}

// PrincipalFrom extracts the authenticated principal, if any.
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

// WithPrincipal returns a context carrying the principal; used by tests.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// RoleResolver rebuilds a role set when the cache has no entry.
type RoleResolver interface {
	Roles(ctx context.Context, uid, domain string) ([]string, error)
}

// Authn validates the bearer access token and attaches the principal. Roles
// come from the role cache; on a miss they are resolved live from the rule
// store so enforcement keeps working after cache expiry.
func Authn(signer *token.Signer, cache rolecache.Cache, resolver RoleResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				httperr.WriteKind(w, "Forbidden", "missing bearer token")
				return
			}

			claims, err := signer.VerifyAccess(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				httperr.WriteKind(w, "Forbidden", "invalid access token")
				return
			}

			principal := &Principal{
				UID:      claims.UID,
				Username: claims.Username,
				Domain:   claims.Domain,
			}

			roles, ok, err := cache.Get(r.Context(), claims.UID)
			if err != nil {
				log.Printf("WARNING: authn: role cache read for %s: %v", claims.UID, err)
			}
			if ok {
				principal.Roles = roles
			} else if resolver != nil {
				live, err := resolver.Roles(r.Context(), claims.UID, claims.Domain)
				if err != nil {
					log.Printf("WARNING: authn: resolve roles for %s: %v", claims.UID, err)
				} else {
					principal.Roles = live
				}
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
