package middleware

import (
	"net/http"

	"github.com/authplane/authplane/internal/apperr"
	"github.com/authplane/authplane/internal/server/httperr"
)

// Enforcer is the decision surface the guard consults.
type Enforcer interface {
	Enforce(sub, obj, act, dom string) (bool, error)
}

// Authz checks the principal against the live enforcer: any of the
// principal's roles, or the uid itself, must be allowed to hit
// (path, method) in the principal's domain. With enabled=false the guard
// passes everything through; that is a bootstrap-only setting.
func Authz(enforcer Enforcer, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				httperr.WriteKind(w, "Forbidden", "no authenticated principal")
				return
			}

			subjects := append([]string{principal.UID}, principal.Roles...)
			for _, sub := range subjects {
				allowed, err := enforcer.Enforce(sub, r.URL.Path, r.Method, principal.Domain)
				if err != nil {
					httperr.WriteError(w, err)
					return
				}
				if allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			httperr.WriteError(w, apperr.Forbidden("%s may not %s %s", principal.Username, r.Method, r.URL.Path))
		})
	}
}
