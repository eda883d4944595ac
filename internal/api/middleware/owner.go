// internal/api/middleware/owner.go
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/newthinker/strategylab/internal/api/response"
	"github.com/newthinker/strategylab/internal/core"
)

// OwnerHeader carries the identity strategy records are filed under. It is
// set by whatever sits in front of the API; no credentials are checked here.
const OwnerHeader = "X-Owner"

const maxOwnerLength = 128

type ownerKey struct{}

// RequireOwner rejects requests without a usable X-Owner header and stores
// the owner in the request context.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			response.Error(w, http.StatusUnauthorized, missingOwner())
			return
		}
		if len(owner) > maxOwnerLength || strings.ContainsAny(owner, "\r\n\t") {
			response.Error(w, http.StatusBadRequest, &core.Error{
				Code:    core.ErrConfigInvalid.Code,
				Message: "invalid owner",
				Field:   OwnerHeader,
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
	})
}

// WithOwner returns a copy of ctx carrying owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// Owner returns the owner stored by RequireOwner, or "".
func Owner(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

func missingOwner() *core.Error {
	return &core.Error{
		Code:    core.ErrConfigMissing.Code,
		Message: core.ErrConfigMissing.Message,
		Field:   OwnerHeader,
	}
}
