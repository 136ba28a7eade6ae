package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rl1809/gift-market/internal/core/domain"
	"github.com/rl1809/gift-market/internal/port"
)

const (
	debitBalance   = `UPDATE users SET balance = balance - ? WHERE id = ? AND balance >= ?`
	decrementStock = `UPDATE items SET stock = stock - 1 WHERE id = ? AND stock > 0`
	selectQuantity = `SELECT quantity FROM holdings WHERE user_id = ? AND item_id = ?`
	insertPurchase = `INSERT INTO purchases (id, user_id, item_id, price, created_at) VALUES (?, ?, ?, ?, ?)`
)

type sqlTx struct {
	tx      *sqlx.Tx
	dialect Dialect
}

func (t *sqlTx) GetItemForUpdate(ctx context.Context, itemID domain.ItemID) (*domain.Item, error) {
	var item domain.Item
	err := t.tx.GetContext(ctx, &item, t.tx.Rebind(selectItem+t.dialect.lockClause), int64(itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Unavailable("lock item", err)
	}
	return &item, nil
}

func (t *sqlTx) EnsureUserForUpdate(ctx context.Context, userID domain.UserID, startingBalance int64) (domain.User, error) {
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(t.dialect.insertUser), int64(userID), startingBalance); err != nil {
		return domain.User{}, domain.Unavailable("insert user", err)
	}

	var user domain.User
	if err := t.tx.GetContext(ctx, &user, t.tx.Rebind(selectUser+t.dialect.lockClause), int64(userID)); err != nil {
		return domain.User{}, domain.Unavailable("lock user", err)
	}
	return user, nil
}

func (t *sqlTx) DebitBalance(ctx context.Context, userID domain.UserID, amount int64) error {
	result, err := t.tx.ExecContext(ctx, t.tx.Rebind(debitBalance), amount, int64(userID), amount)
	if err != nil {
		return domain.Unavailable("debit balance", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.Unavailable("debit balance", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %d: %w", userID, domain.ErrInsufficientBalance)
	}
	return nil
}

func (t *sqlTx) DecrementStock(ctx context.Context, itemID domain.ItemID) error {
	result, err := t.tx.ExecContext(ctx, t.tx.Rebind(decrementStock), int64(itemID))
	if err != nil {
		return domain.Unavailable("decrement stock", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.Unavailable("decrement stock", err)
	}
	if rows == 0 {
		return fmt.Errorf("item %d: %w", itemID, domain.ErrOutOfStock)
	}
	return nil
}

func (t *sqlTx) UpsertHolding(ctx context.Context, userID domain.UserID, itemID domain.ItemID) (int64, error) {
	if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(t.dialect.upsertHolding), int64(userID), int64(itemID)); err != nil {
		return 0, domain.Unavailable("upsert holding", err)
	}

	var quantity int64
	if err := t.tx.GetContext(ctx, &quantity, t.tx.Rebind(selectQuantity), int64(userID), int64(itemID)); err != nil {
		return 0, domain.Unavailable("select holding", err)
	}
	return quantity, nil
}

func (t *sqlTx) InsertPurchase(ctx context.Context, p domain.Purchase) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(insertPurchase),
		p.ID, int64(p.UserID), int64(p.ItemID), p.Price, p.CreatedAt)
	if err != nil {
		return domain.Unavailable("insert purchase", err)
	}
	return nil
}

var _ port.LedgerTx = (*sqlTx)(nil)
