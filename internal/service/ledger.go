package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"lucky-draw/internal/model"
	"lucky-draw/internal/pkg/apperr"
	"lucky-draw/internal/pkg/lock"
	"lucky-draw/internal/pkg/metrics"
	"lucky-draw/internal/repository"
	"lucky-draw/internal/shop"
)

// LedgerService moves coins in and out of user balances. Every movement is
// one balance update plus one transaction row, committed together.
type LedgerService struct {
	store       repository.Store
	userLock    *lock.UserLock
	lockTimeout time.Duration
}

// NewLedgerService creates a new LedgerService instance.
func NewLedgerService(store repository.Store, userLock *lock.UserLock, lockTimeout time.Duration) *LedgerService {
	return &LedgerService{
		store:       store,
		userLock:    userLock,
		lockTimeout: lockTimeout,
	}
}

// Credit adds amount coins to the user's balance and records a transaction
// of the given credit type.
func (s *LedgerService) Credit(ctx context.Context, userID string, amount int64, txType, description string, relatedDrawID *int64) (*model.Transaction, error) {
	if !model.IsCreditType(txType) {
		return nil, apperr.Invalid("transaction type %q is not a credit", txType)
	}
	if err := validateMovement(userID, amount); err != nil {
		return nil, err
	}

	var entry *model.Transaction
	err := withKeyLock(ctx, s.userLock, userID, s.lockTimeout, func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
			var err error
			entry, _, err = credit(ctx, tx, userID, amount, txType, description, relatedDrawID)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to credit %s: %w", userID, err)
	}

	metrics.RecordCoins(txType, amount)
	log.Info().
		Str("user_id", userID).
		Str("type", txType).
		Int64("amount", amount).
		Msg("Coins credited")
	return entry, nil
}

// Debit removes amount coins from the user's balance and records a spend
// transaction. It fails with apperr.ErrInsufficientFunds when amount exceeds
// the balance.
func (s *LedgerService) Debit(ctx context.Context, userID string, amount int64, description string, relatedDrawID *int64) (*model.Transaction, error) {
	if err := validateMovement(userID, amount); err != nil {
		return nil, err
	}

	var entry *model.Transaction
	err := withKeyLock(ctx, s.userLock, userID, s.lockTimeout, func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
			var err error
			entry, _, err = debit(ctx, tx, userID, amount, description, relatedDrawID)
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to debit %s: %w", userID, err)
	}

	metrics.RecordCoins(model.TxTypeSpend, amount)
	log.Info().
		Str("user_id", userID).
		Int64("amount", amount).
		Msg("Coins debited")
	return entry, nil
}

// PurchaseRequest selects either a catalog package or an explicit coin
// amount with the price that was paid for it.
type PurchaseRequest struct {
	PackageID shop.PackageID  `json:"packageId,omitempty"`
	Coins     int64           `json:"coins,omitempty"`
	Price     decimal.Decimal `json:"price"`
}

// PurchaseResult is the outcome of a purchase.
type PurchaseResult struct {
	Transaction *model.Transaction `json:"transaction"`
	Coins       int64              `json:"coins"`
	Price       decimal.Decimal    `json:"price"`
	NewBalance  int64              `json:"newBalance"`
}

// Purchase credits purchased coins. It stands in for a payment-gateway
// webhook and performs no payment verification.
func (s *LedgerService) Purchase(ctx context.Context, userID string, req PurchaseRequest) (*PurchaseResult, error) {
	coins, price, err := resolvePurchase(req)
	if err != nil {
		return nil, err
	}
	if err := validateMovement(userID, coins); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Purchased %d coins for %s", coins, shop.FormatPrice(price))

	result := &PurchaseResult{Coins: coins, Price: price}
	err = withKeyLock(ctx, s.userLock, userID, s.lockTimeout, func() error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
			entry, user, err := credit(ctx, tx, userID, coins, model.TxTypePurchase, description, nil)
			if err != nil {
				return err
			}
			result.Transaction = entry
			result.NewBalance = user.CoinBalance
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to purchase coins: %w", err)
	}

	metrics.RecordCoins(model.TxTypePurchase, coins)
	log.Info().
		Str("user_id", userID).
		Int64("coins", coins).
		Str("price", price.String()).
		Str("package", string(req.PackageID)).
		Msg("Coins purchased")
	return result, nil
}

// Transactions returns the user's ledger, newest first. limit <= 0 returns
// every entry.
func (s *LedgerService) Transactions(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListUserTransactions(ctx, userID, limit)
}

// ReplayBalance reconstructs a balance from a starting balance and the
// user's transactions in any order.
func ReplayBalance(initial int64, txs []*model.Transaction) int64 {
	balance := initial
	for _, tx := range txs {
		balance += tx.SignedAmount()
	}
	return balance
}

func resolvePurchase(req PurchaseRequest) (int64, decimal.Decimal, error) {
	if req.PackageID != "" {
		pkg, ok := shop.GetPackage(req.PackageID)
		if !ok {
			return 0, decimal.Zero, apperr.Invalid("unknown coin package %q", req.PackageID)
		}
		return pkg.TotalCoins(), pkg.Price, nil
	}
	if req.Coins <= 0 {
		return 0, decimal.Zero, apperr.Invalid("coin amount must be positive, got %d", req.Coins)
	}
	if req.Price.IsNegative() {
		return 0, decimal.Zero, apperr.Invalid("price must not be negative, got %s", req.Price)
	}
	return req.Coins, req.Price, nil
}

func validateMovement(userID string, amount int64) error {
	if userID == "" {
		return apperr.ErrUnauthenticated
	}
	if amount <= 0 {
		return apperr.Invalid("amount must be positive, got %d", amount)
	}
	return nil
}

// credit applies one credit inside the caller's transaction.
func credit(ctx context.Context, tx repository.Store, userID string, amount int64, txType, description string, relatedDrawID *int64) (*model.Transaction, *model.User, error) {
	user, err := tx.AdjustUserBalance(ctx, userID, amount)
	if err != nil {
		return nil, nil, err
	}
	entry, err := tx.CreateTransaction(ctx, &model.Transaction{
		UserID:        userID,
		Type:          txType,
		Amount:        amount,
		Description:   description,
		RelatedDrawID: relatedDrawID,
	})
	if err != nil {
		return nil, nil, err
	}
	return entry, user, nil
}

// debit applies one spend inside the caller's transaction. The store refuses
// to take the balance below zero.
func debit(ctx context.Context, tx repository.Store, userID string, amount int64, description string, relatedDrawID *int64) (*model.Transaction, *model.User, error) {
	user, err := tx.AdjustUserBalance(ctx, userID, -amount)
	if err != nil {
		return nil, nil, err
	}
	entry, err := tx.CreateTransaction(ctx, &model.Transaction{
		UserID:        userID,
		Type:          model.TxTypeSpend,
		Amount:        amount,
		Description:   description,
		RelatedDrawID: relatedDrawID,
	})
	if err != nil {
		return nil, nil, err
	}
	return entry, user, nil
}
