package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"murmur.dev/internal/account"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// TokenKind distinguishes short-lived access tokens from long-lived refresh
// tokens. Each kind has its own signing secret per role.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// Secrets holds the four HMAC signing keys. A token minted for one role can
// never verify under the other role's keys, whatever its payload claims.
type Secrets struct {
	UserAccess   string
	UserRefresh  string
	AdminAccess  string
	AdminRefresh string
}

func (s Secrets) complete() bool {
	return s.UserAccess != "" && s.UserRefresh != "" && s.AdminAccess != "" && s.AdminRefresh != ""
}

// Claims is the transmitted token payload.
type Claims struct {
	Email string       `json:"email"`
	Role  account.Role `json:"role"`
	Kind  TokenKind    `json:"kind"`
	jwt.RegisteredClaims
}

// Codec signs, verifies and inspects role-scoped tokens.
type Codec struct {
	secrets    Secrets
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.refreshTTL = ttl
		}
	}
}

// WithCodecClock overrides the time source (useful for tests).
func WithCodecClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec. All four secrets are required.
func NewCodec(secrets Secrets, issuer string, opts ...CodecOption) (*Codec, error) {
	if !secrets.complete() {
		return nil, errors.New("auth: all four token secrets are required")
	}
	c := &Codec{
		secrets:    secrets,
		issuer:     strings.TrimSpace(issuer),
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured lifetime for the given kind.
func (c *Codec) TTL(kind TokenKind) time.Duration {
	if kind == RefreshToken {
		return c.refreshTTL
	}
	return c.accessTTL
}

func (c *Codec) secretFor(role account.Role, kind TokenKind) ([]byte, error) {
	switch {
	case role == account.RoleAdmin && kind == AccessToken:
		return []byte(c.secrets.AdminAccess), nil
	case role == account.RoleAdmin && kind == RefreshToken:
		return []byte(c.secrets.AdminRefresh), nil
	case role == account.RoleUser && kind == AccessToken:
		return []byte(c.secrets.UserAccess), nil
	case role == account.RoleUser && kind == RefreshToken:
		return []byte(c.secrets.UserRefresh), nil
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, role)
	}
}

// Sign mints a token of the given kind for the account, embedding subject id,
// email, role, issue time, expiry and the supplied jti. Access and refresh
// tokens issued together share one jti so revoking the pair kills both.
func (c *Codec) Sign(acct *account.Account, kind TokenKind, jti string) (string, error) {
	secret, err := c.secretFor(acct.Role, kind)
	if err != nil {
		return "", err
	}
	now := c.now().UTC()
	claims := Claims{
		Email: acct.Email,
		Role:  acct.Role,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   acct.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.TTL(kind))),
			ID:        jti,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// NewJTI returns a fresh unique token identifier.
func NewJTI() string { return uuid.NewString() }

// Verify checks the signature and standard validity of token under the secret
// selected by (role, kind). Malformed tokens, wrong algorithms and wrong
// secrets all report ErrTokenInvalid; only a good signature past its expiry
// reports ErrTokenExpired.
func (c *Codec) Verify(token string, role account.Role, kind TokenKind) (*Claims, error) {
	secret, err := c.secretFor(role, kind)
	if err != nil {
		return nil, err
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return secret, nil
	}, jwt.WithIssuedAt(), jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != kind || claims.Role != role {
		return nil, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrTokenInvalid
	}
	if c.issuer != "" && claims.Issuer != "" && !strings.EqualFold(claims.Issuer, c.issuer) {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// PeekClaims decodes the payload without verifying the signature.
//
// Security-sensitive: the result exists only so the caller can pick the
// matching verification secret from the claimed role. It must never feed an
// authorization decision until Verify has succeeded, and the persisted
// account's role remains the authority on every guarded request.
func (c *Codec) PeekClaims(token string) (*Claims, error) {
	parser := jwt.NewParser()
	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, ErrTokenInvalid
	}
	if !claims.Role.Valid() {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
