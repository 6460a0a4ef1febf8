// services/ledger_service.go
package services

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/models"
)

// LedgerStore is the persistence boundary of the coin ledger. ApplyTransfer
// must commit the debit, the credit and the transaction record as one
// all-or-nothing unit, re-checking the sender's funds under the commit so a
// concurrent transfer cannot overdraw the account; on any failure it leaves
// the ledger untouched and may return models.ErrInsufficientFunds or
// models.ErrNotFound.
type LedgerStore interface {
	AccountByID(ctx context.Context, id string) (*models.User, error)
	AccountByUniqueID(ctx context.Context, uniqueID string) (*models.User, error)
	ApplyTransfer(ctx context.Context, senderID, receiverID string, amount int64) (*models.TransferResult, error)
	Transactions(ctx context.Context, accountID string, opts models.HistoryOptions) ([]models.TransactionView, error)
}

const lockShards = 64

// accountLocks serializes transfers per account without a global lock.
// Two transfers sharing an account map to at least one common shard;
// disjoint pairs almost always proceed in parallel.
type accountLocks struct {
	shards [lockShards]sync.Mutex
}

func (l *accountLocks) index(id string) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % lockShards)
}

// lockPair acquires the shards for both accounts in index order, which
// keeps two opposing transfers from deadlocking.
func (l *accountLocks) lockPair(a, b string) func() {
	i, j := l.index(a), l.index(b)
	if i > j {
		i, j = j, i
	}
	l.shards[i].Lock()
	if j != i {
		l.shards[j].Lock()
	}
	return func() {
		if j != i {
			l.shards[j].Unlock()
		}
		l.shards[i].Unlock()
	}
}

// LedgerService owns balances, the transfer protocol and the transaction
// log. All coin mutation in the platform goes through Transfer; nothing
// else writes coins, sentCoins or receivedCoins.
type LedgerService struct {
	store LedgerStore
	cfg   config.App
	locks accountLocks
}

func NewLedgerService(store LedgerStore, cfg config.App) *LedgerService {
	return &LedgerService{store: store, cfg: cfg}
}

// GetBalance returns the current balance and shareable unique id of an
// account. Read-only.
func (s *LedgerService) GetBalance(ctx context.Context, accountID string) (*models.BalanceInfo, error) {
	account, err := s.store.AccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &models.BalanceInfo{Coins: account.Coins, UniqueID: account.UniqueID}, nil
}

// Transfer moves amount coins from the sender to the account addressed by
// receiverUniqueID and appends one transaction record. Validation runs
// before any mutation; the commit itself is delegated to the store as a
// single atomic unit. Returns the sender's new balance.
func (s *LedgerService) Transfer(ctx context.Context, senderID, receiverUniqueID string, amount int64) (*models.TransferResult, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}

	sender, err := s.store.AccountByID(ctx, senderID)
	if err != nil {
		return nil, err
	}

	if sender.UniqueID == receiverUniqueID {
		return nil, models.ErrInvalidOperation
	}

	if sender.Coins < amount {
		return nil, models.ErrInsufficientFunds
	}

	receiver, err := s.store.AccountByUniqueID(ctx, receiverUniqueID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lockPair(sender.ID.Hex(), receiver.ID.Hex())
	defer unlock()

	result, err := s.store.ApplyTransfer(ctx, sender.ID.Hex(), receiver.ID.Hex(), amount)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientFunds) || errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, &models.PersistenceError{Op: "transfer commit", Err: err}
	}
	return result, nil
}

// GetHistory returns the account's transactions, newest first, annotated
// with the counterparty. Restartable: pass the oldest timestamp of the
// previous page as opts.Before to continue.
func (s *LedgerService) GetHistory(ctx context.Context, accountID string, opts models.HistoryOptions) ([]models.TransactionView, error) {
	if opts.Limit <= 0 {
		opts.Limit = s.cfg.HistoryPageSize
	}
	views, err := s.store.Transactions(ctx, accountID, opts)
	if err != nil {
		return nil, &models.PersistenceError{Op: "history query", Err: err}
	}
	return views, nil
}
