package account

import "context"

// Store describes account persistence. Mutations follow a read-modify-write
// sequence with no locking: concurrent writers to the same account race and
// the last write wins. That tradeoff is accepted; see the auth service.
type Store interface {
	Create(ctx context.Context, a *Account) error
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	// Update persists the full account document.
	Update(ctx context.Context, a *Account) error
	Delete(ctx context.Context, id string) error
}
