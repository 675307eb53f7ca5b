package httpapi

import (
	"net/http"

	"murmur.dev/internal/account"
	"murmur.dev/internal/auth"
)

// authn wraps a handler with the guard pipeline. On success the account and
// verified claims ride the request context.
func (a *API) authn(opts auth.GuardOpts, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, claims, err := a.guard.Authenticate(r.Context(), r.Header.Get("Authorization"), opts)
		if err != nil {
			a.failErr(w, err)
			return
		}
		ctx := auth.ContextWithAccount(r.Context(), acct)
		ctx = auth.ContextWithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole gates a handler on the stored account's role, never the token
// payload.
func (a *API) requireRole(next http.HandlerFunc, roles ...account.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, ok := auth.AccountFromContext(r.Context())
		if !ok || !auth.Allowed(acct, roles...) {
			a.fail(w, http.StatusForbidden, "not allowed")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// caller returns the authenticated account and claims, which authn always
// installs before a protected handler runs.
func caller(r *http.Request) (*account.Account, *auth.Claims) {
	acct, _ := auth.AccountFromContext(r.Context())
	claims, _ := auth.ClaimsFromContext(r.Context())
	return acct, claims
}
