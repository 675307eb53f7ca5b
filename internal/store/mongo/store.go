// Package mongo implements the persistent stores over MongoDB. Collection
// names and indexes are managed in one place; per-entity files hold the
// store methods.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"murmur.dev/internal/obs"
)

const (
	colAccounts      = "accounts"
	colRevokedTokens = "revoked_tokens"
	colMessages      = "messages"
)

const connectTimeout = 10 * time.Second

// Store bundles the MongoDB-backed implementations of the account,
// revocation and message stores. One Store serves all three; the typed
// accessors below hand out interface-shaped views.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, uri, dbName string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.ensureIndexes(ctx); err != nil {
		// Index creation can fail on a restricted user; the data paths
		// still work, so log and continue.
		obs.LogEvent("warn", "mongo: ensure indexes failed", map[string]any{"error": err.Error()})
	}
	return s, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ping reports whether the database answers. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
		expire bool
	}

	indexes := []idx{
		// accounts
		{col: colAccounts, keys: bson.D{{Key: "email", Value: 1}}, unique: true},
		{col: colAccounts, keys: bson.D{{Key: "pending_email", Value: 1}}},

		// revoked_tokens: _id is the jti, so uniqueness is free; the TTL
		// index reaps entries once the tokens they shadow have expired.
		{col: colRevokedTokens, keys: bson.D{{Key: "expires_at", Value: 1}}, expire: true},
		{col: colRevokedTokens, keys: bson.D{{Key: "user_id", Value: 1}}},

		// messages
		{col: colMessages, keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	for _, i := range indexes {
		model := mongo.IndexModel{Keys: i.keys}
		switch {
		case i.unique:
			model.Options = options.Index().SetUnique(true)
		case i.expire:
			model.Options = options.Index().SetExpireAfterSeconds(0)
		}
		if _, err := s.col(i.col).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.col, err)
		}
	}
	return nil
}
