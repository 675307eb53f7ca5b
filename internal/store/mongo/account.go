package mongo

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"murmur.dev/internal/account"
)

// AccountStore implements account.Store.
type AccountStore struct {
	s *Store
}

// Accounts returns the account store view.
func (s *Store) Accounts() *AccountStore {
	return &AccountStore{s: s}
}

func (a *AccountStore) Create(ctx context.Context, acct *account.Account) error {
	return insertOne(ctx, a.s.col(colAccounts), acct)
}

func (a *AccountStore) FindByID(ctx context.Context, id string) (*account.Account, error) {
	return findOne[account.Account](ctx, a.s.col(colAccounts), bson.D{{Key: "_id", Value: id}})
}

func (a *AccountStore) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	return findOne[account.Account](ctx, a.s.col(colAccounts), bson.D{
		{Key: "email", Value: strings.ToLower(email)},
	})
}

func (a *AccountStore) Update(ctx context.Context, acct *account.Account) error {
	return replaceByID(ctx, a.s.col(colAccounts), acct.ID, acct)
}

func (a *AccountStore) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, a.s.col(colAccounts), id)
}
