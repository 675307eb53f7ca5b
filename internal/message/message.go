// Package message implements the anonymous inbox: anyone holding a profile
// link can send a message, only the recipient can read it, and the sender is
// never recorded.
package message

import (
	"context"
	"errors"
	"strings"
	"time"

	"murmur.dev/internal/account"
	"murmur.dev/internal/ids"
)

var (
	// ErrNotFound marks a missing message.
	ErrNotFound = errors.New("message: not found")
	// ErrEmptyMessage marks a send with neither text nor image.
	ErrEmptyMessage = errors.New("message: content or image required")
	// ErrRecipientUnavailable marks a recipient that cannot receive messages.
	ErrRecipientUnavailable = errors.New("message: recipient unavailable")
)

// Type says what a message carries.
type Type string

const (
	TypeText  Type = "text"
	TypeImage Type = "image"
)

// Status tracks whether the recipient has seen a message.
type Status string

const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
)

// Message is one anonymous note. There is deliberately no sender field.
type Message struct {
	ID          string         `bson:"_id" json:"id"`
	ReceiverID  string         `bson:"receiver_id" json:"-"`
	Content     string         `bson:"content,omitempty" json:"content,omitempty"`
	Type        Type           `bson:"type" json:"type"`
	Image       *account.Image `bson:"image,omitempty" json:"image,omitempty"`
	IsAnonymous bool           `bson:"is_anonymous" json:"isAnonymous"`
	Status      Status         `bson:"status" json:"status"`
	CreatedAt   time.Time      `bson:"created_at" json:"createdAt"`
}

// Store persists messages.
type Store interface {
	Create(ctx context.Context, m *Message) error
	FindByID(ctx context.Context, id string) (*Message, error)
	FindByReceiver(ctx context.Context, receiverID string, limit, offset int) ([]*Message, error)
	CountByReceiver(ctx context.Context, receiverID string) (int64, error)
	Delete(ctx context.Context, id string) error
	DeleteByReceiver(ctx context.Context, receiverID string) (int64, error)
}

// Service validates and routes anonymous messages.
type Service struct {
	messages Store
	accounts account.Store
	now      func() time.Time
}

// NewService wires the message flows.
func NewService(messages Store, accounts account.Store) *Service {
	return &Service{messages: messages, accounts: accounts, now: time.Now}
}

// Recipient loads an account that can receive messages. Missing, unverified
// and deactivated accounts all report ErrRecipientUnavailable.
func (s *Service) Recipient(ctx context.Context, receiverID string) (*account.Account, error) {
	recv, err := s.accounts.FindByID(ctx, receiverID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrRecipientUnavailable
		}
		return nil, err
	}
	if !recv.IsVerified || !recv.IsActive {
		return nil, ErrRecipientUnavailable
	}
	return recv, nil
}

// Send delivers an anonymous message to the given account. The recipient
// must exist, be verified and active; a message needs text or an image.
func (s *Service) Send(ctx context.Context, receiverID, content string, image *account.Image) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" && image == nil {
		return nil, ErrEmptyMessage
	}
	recv, err := s.Recipient(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	typ := TypeText
	if image != nil {
		typ = TypeImage
	}
	m := &Message{
		ID:          ids.New(),
		ReceiverID:  recv.ID,
		Content:     content,
		Type:        typ,
		Image:       image,
		IsAnonymous: true,
		Status:      StatusUnread,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Inbox lists the caller's messages, newest first.
func (s *Service) Inbox(ctx context.Context, receiverID string, limit, offset int) ([]*Message, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	msgs, err := s.messages.FindByReceiver(ctx, receiverID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.messages.CountByReceiver(ctx, receiverID)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// Get returns a single message, but only to its recipient.
func (s *Service) Get(ctx context.Context, receiverID, messageID string) (*Message, error) {
	m, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m.ReceiverID != receiverID {
		return nil, ErrNotFound
	}
	return m, nil
}

// Remove deletes a message, but only for its recipient.
func (s *Service) Remove(ctx context.Context, receiverID, messageID string) error {
	if _, err := s.Get(ctx, receiverID, messageID); err != nil {
		return err
	}
	return s.messages.Delete(ctx, messageID)
}

// Purge deletes every message addressed to an account. Used when an account
// is permanently removed.
func (s *Service) Purge(ctx context.Context, receiverID string) (int64, error) {
	return s.messages.DeleteByReceiver(ctx, receiverID)
}
