package domain

import (
	"errors"
	"time"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCommitted PurchaseStatus = "committed"
	PurchaseStatusRejected  PurchaseStatus = "rejected"
)

// Purchase is the receipt row written together with the balance, stock and
// holding updates.
type Purchase struct {
	ID        string    `db:"id" json:"id"`
	UserID    UserID    `db:"user_id" json:"user_id"`
	ItemID    ItemID    `db:"item_id" json:"item_id"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PurchaseResult is returned for a committed purchase.
type PurchaseResult struct {
	Status     PurchaseStatus `json:"status"`
	PurchaseID string         `json:"purchase_id"`
	UserID     UserID         `json:"user_id"`
	ItemID     ItemID         `json:"item_id"`
	Price      int64          `json:"price"`
	Balance    int64          `json:"balance"`
	Stock      int64          `json:"stock"`
	Quantity   int64          `json:"quantity"`
}

// Outcome labels the result of a purchase attempt.
type Outcome string

const (
	OutcomeCommitted           Outcome = "committed"
	OutcomeInvalidArgument     Outcome = "invalid_argument"
	OutcomeItemNotFound        Outcome = "item_not_found"
	OutcomeOutOfStock          Outcome = "out_of_stock"
	OutcomeInsufficientBalance Outcome = "insufficient_balance"
	OutcomeStoreUnavailable    Outcome = "store_unavailable"
)

// OutcomeOf classifies err. Errors outside the taxonomy count as store
// failures.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeCommitted
	case errors.Is(err, ErrInvalidArgument):
		return OutcomeInvalidArgument
	case errors.Is(err, ErrItemNotFound):
		return OutcomeItemNotFound
	case errors.Is(err, ErrOutOfStock):
		return OutcomeOutOfStock
	case errors.Is(err, ErrInsufficientBalance):
		return OutcomeInsufficientBalance
	default:
		return OutcomeStoreUnavailable
	}
}
