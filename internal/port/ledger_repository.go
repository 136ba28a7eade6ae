package port

import (
	"context"

	"github.com/rl1809/gift-market/internal/core/domain"
)

// LedgerRepository is the durable record of users, items and holdings.
// Storage failures are reported as domain.ErrStoreUnavailable.
type LedgerRepository interface {
	// EnsureUser inserts the user with startingBalance unless it exists and
	// returns the stored row. Safe under concurrent calls for the same id.
	EnsureUser(ctx context.Context, userID domain.UserID, startingBalance int64) (domain.User, error)

	CreateItem(ctx context.Context, item domain.NewItem) (domain.ItemID, error)

	// GetItem returns nil when the item does not exist
	GetItem(ctx context.Context, itemID domain.ItemID) (*domain.Item, error)

	// ListItems returns the catalog in insertion order
	ListItems(ctx context.Context) ([]domain.Item, error)

	ListHoldings(ctx context.Context, userID domain.UserID) ([]domain.HoldingView, error)

	// WithinTx runs fn in one transaction. The transaction commits only if
	// fn returns nil; any error rolls back every write made through tx.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error

	Close() error
}

// LedgerTx is the row-locking surface available inside WithinTx. Callers
// lock rows in the order item, user, holding.
type LedgerTx interface {
	// GetItemForUpdate locks the item row; nil when it does not exist
	GetItemForUpdate(ctx context.Context, itemID domain.ItemID) (*domain.Item, error)

	// EnsureUserForUpdate provisions the user if absent and locks the row
	EnsureUserForUpdate(ctx context.Context, userID domain.UserID, startingBalance int64) (domain.User, error)

	// DebitBalance fails with domain.ErrInsufficientBalance if balance < amount
	DebitBalance(ctx context.Context, userID domain.UserID, amount int64) error

	// DecrementStock fails with domain.ErrOutOfStock if stock is already 0
	DecrementStock(ctx context.Context, itemID domain.ItemID) error

	// UpsertHolding adds one unit and returns the new quantity
	UpsertHolding(ctx context.Context, userID domain.UserID, itemID domain.ItemID) (int64, error)

	InsertPurchase(ctx context.Context, purchase domain.Purchase) error
}
