package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"murmur.dev/internal/account"
	"murmur.dev/internal/message"
)

// MessageStore implements message.Store.
type MessageStore struct {
	s *Store
}

// Messages returns the message store view.
func (s *Store) Messages() *MessageStore {
	return &MessageStore{s: s}
}

func (m *MessageStore) Create(ctx context.Context, msg *message.Message) error {
	return insertOne(ctx, m.s.col(colMessages), msg)
}

func (m *MessageStore) FindByID(ctx context.Context, id string) (*message.Message, error) {
	msg, err := findOne[message.Message](ctx, m.s.col(colMessages), bson.D{{Key: "_id", Value: id}})
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, message.ErrNotFound
		}
		return nil, err
	}
	return msg, nil
}

func (m *MessageStore) FindByReceiver(ctx context.Context, receiverID string, limit, offset int) ([]*message.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	return findMany[message.Message](ctx, m.s.col(colMessages), bson.D{
		{Key: "receiver_id", Value: receiverID},
	}, opts)
}

func (m *MessageStore) CountByReceiver(ctx context.Context, receiverID string) (int64, error) {
	n, err := m.s.col(colMessages).CountDocuments(ctx, bson.D{{Key: "receiver_id", Value: receiverID}})
	if err != nil {
		return 0, wrapError(err)
	}
	return n, nil
}

func (m *MessageStore) Delete(ctx context.Context, id string) error {
	if err := deleteByID(ctx, m.s.col(colMessages), id); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return message.ErrNotFound
		}
		return err
	}
	return nil
}

func (m *MessageStore) DeleteByReceiver(ctx context.Context, receiverID string) (int64, error) {
	res, err := m.s.col(colMessages).DeleteMany(ctx, bson.D{{Key: "receiver_id", Value: receiverID}})
	if err != nil {
		return 0, wrapError(err)
	}
	return res.DeletedCount, nil
}
