package auth

import (
	"context"
	"fmt"

	"google.golang.org/api/idtoken"
)

// IdentityClaims is the subset of an external identity token we act on.
type IdentityClaims struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// IdentityVerifier validates an externally issued identity token against the
// provider's public keys and expected audience.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, raw string) (IdentityClaims, error)
}

// GoogleVerifier validates Google-issued ID tokens.
type GoogleVerifier struct {
	audience string
}

// NewGoogleVerifier expects the OAuth client ID the tokens are minted for.
func NewGoogleVerifier(audience string) (*GoogleVerifier, error) {
	if audience == "" {
		return nil, fmt.Errorf("auth: google audience is required")
	}
	return &GoogleVerifier{audience: audience}, nil
}

// VerifyIDToken checks signature, expiry and audience, then extracts the
// profile claims.
func (g *GoogleVerifier) VerifyIDToken(ctx context.Context, raw string) (IdentityClaims, error) {
	payload, err := idtoken.Validate(ctx, raw, g.audience)
	if err != nil {
		return IdentityClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims := IdentityClaims{Subject: payload.Subject}
	if v, ok := payload.Claims["email"].(string); ok {
		claims.Email = v
	}
	if v, ok := payload.Claims["name"].(string); ok {
		claims.Name = v
	}
	if v, ok := payload.Claims["email_verified"].(bool); ok {
		claims.EmailVerified = v
	}
	if claims.Email == "" {
		return IdentityClaims{}, fmt.Errorf("%w: identity token carries no email", ErrTokenInvalid)
	}
	return claims, nil
}
