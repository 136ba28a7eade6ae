package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/gift-market/internal/core/domain"
	"github.com/rl1809/gift-market/internal/logger"
	"github.com/rl1809/gift-market/internal/metrics"
	"github.com/rl1809/gift-market/internal/port"
)

const (
	DefaultStartingBalance int64 = 2_000_000
	DefaultTxTimeout             = 5 * time.Second
)

type Options struct {
	StartingBalance int64
	TxTimeout       time.Duration
	Logger          *logger.Logger
}

// MarketService provisions users, manages the catalog and runs purchases.
// It holds no mutable state of its own; every purchase is one transaction
// in the ledger repository.
type MarketService struct {
	repo            port.LedgerRepository
	log             *logger.Logger
	startingBalance int64
	txTimeout       time.Duration
	now             func() time.Time
	newID           func() string
}

func NewMarketService(repo port.LedgerRepository, opts Options) *MarketService {
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = DefaultTxTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &MarketService{
		repo:            repo,
		log:             opts.Logger,
		startingBalance: opts.StartingBalance,
		txTimeout:       opts.TxTimeout,
		now:             time.Now,
		newID:           uuid.NewString,
	}
}

func (s *MarketService) StartingBalance() int64 {
	return s.startingBalance
}

// EnsureUser creates the user with the starting balance if it does not exist
// and returns the stored record.
func (s *MarketService) EnsureUser(ctx context.Context, userID domain.UserID) (domain.User, error) {
	if userID <= 0 {
		return domain.User{}, domain.InvalidField("user_id", "must be positive")
	}

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	user, err := s.repo.EnsureUser(ctx, userID, s.startingBalance)
	if err != nil {
		return domain.User{}, domain.Unavailable("ensure user", err)
	}
	return user, nil
}

// GetProfile provisions the user and returns the balance with all holdings.
func (s *MarketService) GetProfile(ctx context.Context, userID domain.UserID) (*domain.UserProfile, error) {
	user, err := s.EnsureUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	holdings, err := s.repo.ListHoldings(ctx, userID)
	if err != nil {
		return nil, domain.Unavailable("list holdings", err)
	}
	return &domain.UserProfile{User: user, Holdings: holdings}, nil
}

// AddItem validates and inserts a catalog entry. Callers are expected to
// have authorised the request.
func (s *MarketService) AddItem(ctx context.Context, item domain.NewItem) (domain.ItemID, error) {
	if err := item.Validate(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	id, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return 0, domain.Unavailable("create item", err)
	}

	ctx = s.log.WithItemID(ctx, int64(id))
	s.log.Info(ctx, fmt.Sprintf("item %q added: price=%d stock=%d", item.Name, item.Price, item.Stock))
	return id, nil
}

func (s *MarketService) ListItems(ctx context.Context) ([]domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	items, err := s.repo.ListItems(ctx)
	if err != nil {
		return nil, domain.Unavailable("list items", err)
	}
	return items, nil
}

func (s *MarketService) GetItem(ctx context.Context, itemID domain.ItemID) (*domain.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, domain.Unavailable("get item", err)
	}
	if item == nil {
		return nil, fmt.Errorf("item %d: %w", itemID, domain.ErrItemNotFound)
	}
	return item, nil
}

// Purchase buys one unit of itemID for userID. Item existence, stock and
// balance are checked inside the same transaction that debits the balance,
// decrements the stock and upserts the holding, so either all of them are
// applied or none is.
//
// Rejections are returned as errors matching domain.ErrItemNotFound,
// domain.ErrOutOfStock or domain.ErrInsufficientBalance and must not be
// retried. domain.ErrStoreUnavailable may be retried by the caller.
func (s *MarketService) Purchase(ctx context.Context, userID domain.UserID, itemID domain.ItemID) (*domain.PurchaseResult, error) {
	start := time.Now()
	result, err := s.purchase(ctx, userID, itemID)
	outcome := domain.OutcomeOf(err)
	metrics.ObservePurchase(outcome, time.Since(start))

	ctx = s.log.WithUserID(ctx, int64(userID))
	ctx = s.log.WithItemID(ctx, int64(itemID))
	switch outcome {
	case domain.OutcomeCommitted:
		s.log.Info(ctx, fmt.Sprintf("purchase %s committed: balance=%d stock=%d quantity=%d",
			result.PurchaseID, result.Balance, result.Stock, result.Quantity))
	case domain.OutcomeOutOfStock:
		s.log.Debug(ctx, "purchase rejected: out of stock")
	case domain.OutcomeStoreUnavailable:
		s.log.Error(ctx, "purchase failed", err)
	default:
		s.log.Warn(ctx, "purchase rejected: "+err.Error())
	}

	return result, err
}

func (s *MarketService) purchase(ctx context.Context, userID domain.UserID, itemID domain.ItemID) (*domain.PurchaseResult, error) {
	if userID <= 0 {
		return nil, domain.InvalidField("user_id", "must be positive")
	}
	if itemID <= 0 {
		return nil, fmt.Errorf("item %d: %w", itemID, domain.ErrItemNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var result *domain.PurchaseResult
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		item, err := tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("item %d: %w", itemID, domain.ErrItemNotFound)
		}
		if item.Stock <= 0 {
			return fmt.Errorf("item %d: %w", itemID, domain.ErrOutOfStock)
		}

		user, err := tx.EnsureUserForUpdate(ctx, userID, s.startingBalance)
		if err != nil {
			return err
		}
		if user.Balance < item.Price {
			return &domain.InsufficientBalanceError{UserID: userID, Balance: user.Balance, Price: item.Price}
		}

		if err := tx.DebitBalance(ctx, userID, item.Price); err != nil {
			return err
		}
		if err := tx.DecrementStock(ctx, itemID); err != nil {
			return err
		}
		quantity, err := tx.UpsertHolding(ctx, userID, itemID)
		if err != nil {
			return err
		}

		receipt := domain.Purchase{
			ID:        s.newID(),
			UserID:    userID,
			ItemID:    itemID,
			Price:     item.Price,
			CreatedAt: s.now().UTC(),
		}
		if err := tx.InsertPurchase(ctx, receipt); err != nil {
			return err
		}

		result = &domain.PurchaseResult{
			Status:     domain.PurchaseStatusCommitted,
			PurchaseID: receipt.ID,
			UserID:     userID,
			ItemID:     itemID,
			Price:      item.Price,
			Balance:    user.Balance - item.Price,
			Stock:      item.Stock - 1,
			Quantity:   quantity,
		}
		return nil
	})
	if err != nil {
		if domain.IsRejection(err) {
			return nil, err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, domain.Unavailable("purchase timed out", err)
		}
		return nil, domain.Unavailable("purchase", err)
	}
	return result, nil
}
