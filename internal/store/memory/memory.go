// Package memory holds map-backed stores used by tests and by local
// development runs without a database. Every read and write clones records
// so callers never share memory with the store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"murmur.dev/internal/account"
	"murmur.dev/internal/auth"
	"murmur.dev/internal/message"
)

// AccountStore implements account.Store over a map keyed by ID.
type AccountStore struct {
	mu      sync.RWMutex
	byID    map[string]*account.Account
	byEmail map[string]string
}

// NewAccountStore returns an empty account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		byID:    make(map[string]*account.Account),
		byEmail: make(map[string]string),
	}
}

func cloneAccount(a *account.Account) *account.Account {
	cp := *a
	if a.System != nil {
		sys := *a.System
		sys.PasswordHistory = append([]string(nil), a.System.PasswordHistory...)
		cp.System = &sys
	}
	cp.EmailOTP = cloneOTP(a.EmailOTP)
	cp.NewEmailOTP = cloneOTP(a.NewEmailOTP)
	cp.PasswordOTP = cloneOTP(a.PasswordOTP)
	if a.CredentialChangedAt != nil {
		t := *a.CredentialChangedAt
		cp.CredentialChangedAt = &t
	}
	if a.DeletedAt != nil {
		t := *a.DeletedAt
		cp.DeletedAt = &t
	}
	if a.ProfileImage != nil {
		img := *a.ProfileImage
		cp.ProfileImage = &img
	}
	if a.CoverImage != nil {
		img := *a.CoverImage
		cp.CoverImage = &img
	}
	return &cp
}

func cloneOTP(o *account.OTP) *account.OTP {
	if o == nil {
		return nil
	}
	cp := *o
	return &cp
}

func (s *AccountStore) Create(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; ok {
		return account.ErrDuplicate
	}
	if _, ok := s.byEmail[strings.ToLower(a.Email)]; ok {
		return account.ErrDuplicate
	}
	s.byID[a.ID] = cloneAccount(a)
	s.byEmail[strings.ToLower(a.Email)] = a.ID
	return nil
}

func (s *AccountStore) FindByID(_ context.Context, id string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	return cloneAccount(a), nil
}

func (s *AccountStore) FindByEmail(_ context.Context, email string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, account.ErrNotFound
	}
	return cloneAccount(s.byID[id]), nil
}

func (s *AccountStore) Update(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.byID[a.ID]
	if !ok {
		return account.ErrNotFound
	}
	newEmail := strings.ToLower(a.Email)
	if newEmail != strings.ToLower(prev.Email) {
		if _, taken := s.byEmail[newEmail]; taken {
			return account.ErrDuplicate
		}
		delete(s.byEmail, strings.ToLower(prev.Email))
		s.byEmail[newEmail] = a.ID
	}
	s.byID[a.ID] = cloneAccount(a)
	return nil
}

func (s *AccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return account.ErrNotFound
	}
	delete(s.byEmail, strings.ToLower(a.Email))
	delete(s.byID, id)
	return nil
}

// RevocationStore implements auth.RevocationStore over a map keyed by jti.
type RevocationStore struct {
	mu   sync.RWMutex
	byID map[string]*auth.RevokedToken
}

// NewRevocationStore returns an empty revocation store.
func NewRevocationStore() *RevocationStore {
	return &RevocationStore{byID: make(map[string]*auth.RevokedToken)}
}

func (s *RevocationStore) Revoke(_ context.Context, t *auth.RevokedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[t.JTI]; ok {
		return account.ErrDuplicate
	}
	cp := *t
	s.byID[t.JTI] = &cp
	return nil
}

func (s *RevocationStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[jti]
	if !ok {
		return false, nil
	}
	// Entries past their retention window behave as absent, matching the
	// database store's TTL index.
	return time.Now().Before(t.ExpiresAt), nil
}

// MessageStore implements message.Store over a map keyed by message ID.
type MessageStore struct {
	mu   sync.RWMutex
	byID map[string]*message.Message
}

// NewMessageStore returns an empty message store.
func NewMessageStore() *MessageStore {
	return &MessageStore{byID: make(map[string]*message.Message)}
}

func cloneMessage(m *message.Message) *message.Message {
	cp := *m
	if m.Image != nil {
		img := *m.Image
		cp.Image = &img
	}
	return &cp
}

func (s *MessageStore) Create(_ context.Context, m *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[m.ID]; ok {
		return account.ErrDuplicate
	}
	s.byID[m.ID] = cloneMessage(m)
	return nil
}

func (s *MessageStore) FindByID(_ context.Context, id string) (*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, message.ErrNotFound
	}
	return cloneMessage(m), nil
}

func (s *MessageStore) FindByReceiver(_ context.Context, receiverID string, limit, offset int) ([]*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*message.Message
	for _, m := range s.byID {
		if m.ReceiverID == receiverID {
			out = append(out, cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MessageStore) CountByReceiver(_ context.Context, receiverID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, m := range s.byID {
		if m.ReceiverID == receiverID {
			n++
		}
	}
	return n, nil
}

func (s *MessageStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return message.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *MessageStore) DeleteByReceiver(_ context.Context, receiverID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.byID {
		if m.ReceiverID == receiverID {
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}
