package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/crucial707/labstock/internal/models"
)

// SessionCookie carries the session token for the HTML panels.
const SessionCookie = "labstock_session"

type ctxKey string

const principalKey ctxKey = "principal"

// TokenParser turns a raw session token into the principal it was issued for.
type TokenParser interface {
	Parse(raw string) (models.Principal, error)
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the principal attached by Session, if any.
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(models.Principal)
	return p, ok
}

// RoleFrom returns the caller's role, or RoleUnknown when there is no session.
func RoleFrom(ctx context.Context) models.Role {
	if p, ok := PrincipalFrom(ctx); ok {
		return p.Role
	}
	return models.RoleUnknown
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// Session resolves a Bearer header or the session cookie into a principal on
// the request context. Missing or invalid tokens leave the request anonymous;
// RequireRole decides what anonymous callers may reach.
func Session(tokens TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := sessionToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			p, err := tokens.Parse(raw)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// DenyFunc writes the response for a request that failed the role check.
// authenticated is false when the request carried no valid session.
type DenyFunc func(w http.ResponseWriter, r *http.Request, authenticated bool)

// JSONDeny answers 401 without a session and 403 with the wrong role.
func JSONDeny(w http.ResponseWriter, _ *http.Request, authenticated bool) {
	status, msg := http.StatusUnauthorized, "authentication required"
	if authenticated {
		status, msg = http.StatusForbidden, "forbidden"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// RedirectDeny sends the browser to target, typically the login page.
func RedirectDeny(target string) DenyFunc {
	return func(w http.ResponseWriter, r *http.Request, _ bool) {
		http.Redirect(w, r, target, http.StatusSeeOther)
	}
}

// RequireRole lets through only requests whose session carries one of roles.
func RequireRole(deny DenyFunc, roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				deny(w, r, false)
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			deny(w, r, true)
		})
	}
}
