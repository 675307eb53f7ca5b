package auth

import (
	"context"

	"murmur.dev/internal/account"
)

type accountContextKey struct{}
type claimsContextKey struct{}

// ContextWithAccount attaches the authenticated account to the context.
func ContextWithAccount(ctx context.Context, acct *account.Account) context.Context {
	return context.WithValue(ctx, accountContextKey{}, acct)
}

// AccountFromContext extracts the authenticated account from the context.
func AccountFromContext(ctx context.Context) (*account.Account, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(accountContextKey{}).(*account.Account)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ContextWithClaims stores the verified token claims in the context.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the verified claims if previously attached.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(claimsContextKey{}).(*Claims)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}
