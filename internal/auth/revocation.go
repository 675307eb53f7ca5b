package auth

import (
	"context"
	"time"
)

// RevocationTTL is how long a revocation entry outlives its creation. It
// matches the refresh token lifetime so a revoked-but-unexpired refresh token
// can never outlast its entry.
const RevocationTTL = 7 * 24 * time.Hour

// RevokedToken records one invalidated token identifier. Its existence
// overrides an otherwise valid signature.
type RevokedToken struct {
	JTI       string    `bson:"jti"`
	UserID    string    `bson:"user_id"`
	Device    string    `bson:"device,omitempty"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// RevocationStore persists revoked token identifiers. Entries auto-expire
// RevocationTTL after creation.
type RevocationStore interface {
	// Revoke inserts an entry; a duplicate jti reports account.ErrDuplicate,
	// signalling the token was already revoked.
	Revoke(ctx context.Context, entry *RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
