package auth

import (
	"context"
	"strings"

	"murmur.dev/internal/account"
)

// Guard resolves a caller's identity and account state from a bearer token.
// Every protected request walks the same pipeline: decode the claimed role,
// verify the signature under the matching secret, load the account, check
// revocation, then enforce the account-state invariants. Each step
// short-circuits with its own error; requests are evaluated independently.
type Guard struct {
	codec    *Codec
	accounts account.Store
	revoked  RevocationStore
	scheme   string
}

// GuardOpts tunes per-call-site behavior.
type GuardOpts struct {
	// Kind selects which secret family verifies the token. Access unless the
	// call site is the refresh flow.
	Kind TokenKind
	// AllowDeactivated skips the is-active check. Account-restore endpoints
	// must stay reachable for deactivated-account owners.
	AllowDeactivated bool
}

// NewGuard constructs a Guard. scheme is the bearer keyword expected to
// prefix the Authorization header.
func NewGuard(codec *Codec, accounts account.Store, revoked RevocationStore, scheme string) *Guard {
	if scheme == "" {
		scheme = "Bearer"
	}
	return &Guard{codec: codec, accounts: accounts, revoked: revoked, scheme: scheme}
}

// Authenticate runs the pipeline against a raw Authorization header value and
// returns the loaded account together with the verified claims.
func (g *Guard) Authenticate(ctx context.Context, authorization string, opts GuardOpts) (*account.Account, *Claims, error) {
	if opts.Kind == "" {
		opts.Kind = AccessToken
	}

	token, err := g.stripScheme(authorization)
	if err != nil {
		return nil, nil, err
	}

	// Peek the claimed role only to select the verification secret. The
	// account loaded below is the authority on the actual role.
	peeked, err := g.codec.PeekClaims(token)
	if err != nil {
		return nil, nil, err
	}

	claims, err := g.codec.Verify(token, peeked.Role, opts.Kind)
	if err != nil {
		return nil, nil, err
	}

	acct, err := g.accounts.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, nil, err
	}

	if claims.ID != "" {
		revoked, err := g.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, nil, err
		}
		if revoked {
			return nil, nil, ErrTokenRevoked
		}
	}

	if !acct.IsVerified && acct.PendingEmail == "" {
		return nil, nil, ErrEmailNotVerified
	}

	if acct.CredentialChangedAt != nil && claims.IssuedAt != nil &&
		claims.IssuedAt.Time.Before(*acct.CredentialChangedAt) {
		return nil, nil, ErrTokenStale
	}

	if !opts.AllowDeactivated && !acct.IsActive {
		return nil, nil, ErrAccountDeactivated
	}

	return acct, claims, nil
}

func (g *Guard) stripScheme(authorization string) (string, error) {
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return "", ErrTokenRequired
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], g.scheme) {
		return "", ErrTokenInvalid
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", ErrTokenRequired
	}
	return token, nil
}

// Allowed reports whether the account's role is in the allowed set. Checked
// after Authenticate by role-gated endpoints.
func Allowed(acct *account.Account, roles ...account.Role) bool {
	for _, r := range roles {
		if acct.Role == r {
			return true
		}
	}
	return false
}
