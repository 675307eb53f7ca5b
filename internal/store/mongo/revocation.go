package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"murmur.dev/internal/account"
	"murmur.dev/internal/auth"
)

// RevocationStore implements auth.RevocationStore. Documents are keyed by
// jti and reaped by the TTL index once past their retention window.
type RevocationStore struct {
	s *Store
}

// Revocations returns the revocation store view.
func (s *Store) Revocations() *RevocationStore {
	return &RevocationStore{s: s}
}

// revokedDoc maps a RevokedToken onto the collection, with the jti as _id.
type revokedDoc struct {
	JTI       string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	Device    string    `bson:"device,omitempty"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

func (r *RevocationStore) Revoke(ctx context.Context, t *auth.RevokedToken) error {
	return insertOne(ctx, r.s.col(colRevokedTokens), revokedDoc{
		JTI:       t.JTI,
		UserID:    t.UserID,
		Device:    t.Device,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: t.CreatedAt,
	})
}

func (r *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, err := findOne[revokedDoc](ctx, r.s.col(colRevokedTokens), bson.D{{Key: "_id", Value: jti}})
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
