package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rl1809/gift-market/internal/core/domain"
	"github.com/rl1809/gift-market/internal/port"
)

type holdingKey struct {
	userID domain.UserID
	itemID domain.ItemID
}

// mockLedgerRepo keeps the ledger in maps. A transaction holds mu for its
// whole duration and restores a snapshot when fn fails.
type mockLedgerRepo struct {
	mu        sync.Mutex
	users     map[domain.UserID]int64
	items     map[domain.ItemID]domain.Item
	holdings  map[holdingKey]int64
	purchases []domain.Purchase
	nextID    domain.ItemID

	// txErr, when set, is returned by InsertPurchase.
	txErr error
	// blockTx makes WithinTx wait for the context to expire.
	blockTx bool
}

func newMockLedgerRepo() *mockLedgerRepo {
	return &mockLedgerRepo{
		users:    make(map[domain.UserID]int64),
		items:    make(map[domain.ItemID]domain.Item),
		holdings: make(map[holdingKey]int64),
	}
}

func (m *mockLedgerRepo) EnsureUser(ctx context.Context, userID domain.UserID, startingBalance int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ensureUser(userID, startingBalance), nil
}

func (m *mockLedgerRepo) ensureUser(userID domain.UserID, startingBalance int64) domain.User {
	if _, ok := m.users[userID]; !ok {
		m.users[userID] = startingBalance
	}
	return domain.User{ID: userID, Balance: m.users[userID]}
}

func (m *mockLedgerRepo) CreateItem(ctx context.Context, item domain.NewItem) (domain.ItemID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.items[m.nextID] = domain.Item{ID: m.nextID, Name: item.Name, Price: item.Price, Stock: item.Stock, ArtworkRef: item.ArtworkRef}
	return m.nextID, nil
}

func (m *mockLedgerRepo) GetItem(ctx context.Context, itemID domain.ItemID) (*domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *mockLedgerRepo) ListItems(ctx context.Context) ([]domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items := make([]domain.Item, 0, len(m.items))
	for _, item := range m.items {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (m *mockLedgerRepo) ListHoldings(ctx context.Context, userID domain.UserID) ([]domain.HoldingView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	holdings := []domain.HoldingView{}
	for key, quantity := range m.holdings {
		if key.userID != userID {
			continue
		}
		item := m.items[key.itemID]
		holdings = append(holdings, domain.HoldingView{ItemID: key.itemID, Name: item.Name, ArtworkRef: item.ArtworkRef, Quantity: quantity})
	}
	sort.Slice(holdings, func(i, j int) bool { return holdings[i].ItemID < holdings[j].ItemID })
	return holdings, nil
}

func (m *mockLedgerRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	if m.blockTx {
		<-ctx.Done()
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	users := make(map[domain.UserID]int64, len(m.users))
	for k, v := range m.users {
		users[k] = v
	}
	items := make(map[domain.ItemID]domain.Item, len(m.items))
	for k, v := range m.items {
		items[k] = v
	}
	holdings := make(map[holdingKey]int64, len(m.holdings))
	for k, v := range m.holdings {
		holdings[k] = v
	}
	purchases := len(m.purchases)

	if err := fn(ctx, &mockTx{repo: m}); err != nil {
		m.users, m.items, m.holdings = users, items, holdings
		m.purchases = m.purchases[:purchases]
		return err
	}
	return nil
}

func (m *mockLedgerRepo) Close() error {
	return nil
}

type mockTx struct {
	repo *mockLedgerRepo
}

func (t *mockTx) GetItemForUpdate(ctx context.Context, itemID domain.ItemID) (*domain.Item, error) {
	item, ok := t.repo.items[itemID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (t *mockTx) EnsureUserForUpdate(ctx context.Context, userID domain.UserID, startingBalance int64) (domain.User, error) {
	return t.repo.ensureUser(userID, startingBalance), nil
}

func (t *mockTx) DebitBalance(ctx context.Context, userID domain.UserID, amount int64) error {
	if t.repo.users[userID] < amount {
		return domain.ErrInsufficientBalance
	}
	t.repo.users[userID] -= amount
	return nil
}

func (t *mockTx) DecrementStock(ctx context.Context, itemID domain.ItemID) error {
	item := t.repo.items[itemID]
	if item.Stock <= 0 {
		return domain.ErrOutOfStock
	}
	item.Stock--
	t.repo.items[itemID] = item
	return nil
}

func (t *mockTx) UpsertHolding(ctx context.Context, userID domain.UserID, itemID domain.ItemID) (int64, error) {
	key := holdingKey{userID: userID, itemID: itemID}
	t.repo.holdings[key]++
	return t.repo.holdings[key], nil
}

func (t *mockTx) InsertPurchase(ctx context.Context, purchase domain.Purchase) error {
	if t.repo.txErr != nil {
		return t.repo.txErr
	}
	t.repo.purchases = append(t.repo.purchases, purchase)
	return nil
}

var errDiskFull = errors.New("disk full")
