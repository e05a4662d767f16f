package rbac

import (
	"context"
	"net/http"
)

// Simple default policy. Reads are public; these roles only gate the
// rating mutation routes.
var RolePermissions = map[string][]string{
	"viewer": {
		"rating:read",
	},
	"editor": {
		"rating:read",
		"rating:write",
	},
	"admin": {
		"*", // everything
	},
}

func Has(role, perm string) bool {
	for _, p := range RolePermissions[role] {
		if p == "*" || p == perm {
			return true
		}
	}
	return false
}

// Require enforces a single permission on the role set by the auth
// middleware.
func Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !Has(role, perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ---- role in context ----

type ctxKey struct{}

var ctxKeyRole = ctxKey{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

func RoleFromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKeyRole); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
