package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/models"
)

// memLedgerStore is an in-memory LedgerStore with the same commit contract
// as the database-backed one: the debit is re-checked and applied together
// with the credit and the transaction record under one lock.
type memLedgerStore struct {
	mu       sync.Mutex
	accounts map[string]*models.User
	byUnique map[string]string
	txns     []models.CoinTransaction
}

func newMemLedgerStore() *memLedgerStore {
	return &memLedgerStore{
		accounts: make(map[string]*models.User),
		byUnique: make(map[string]string),
	}
}

func (m *memLedgerStore) addAccount(name, uniqueID string, coins int64) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := &models.User{
		ID:       primitive.NewObjectID(),
		Name:     name,
		UniqueID: uniqueID,
		Coins:    coins,
	}
	m.accounts[user.ID.Hex()] = user
	m.byUnique[uniqueID] = user.ID.Hex()
	return user
}

func (m *memLedgerStore) AccountByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *account
	return &copied, nil
}

func (m *memLedgerStore) AccountByUniqueID(ctx context.Context, uniqueID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byUnique[uniqueID]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *m.accounts[id]
	return &copied, nil
}

func (m *memLedgerStore) ApplyTransfer(ctx context.Context, senderID, receiverID string, amount int64) (*models.TransferResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sender, ok := m.accounts[senderID]
	if !ok {
		return nil, models.ErrNotFound
	}
	receiver, ok := m.accounts[receiverID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if sender.Coins < amount {
		return nil, models.ErrInsufficientFunds
	}

	sender.Coins -= amount
	sender.SentCoins += amount
	sender.Wealth += amount
	receiver.Coins += amount
	receiver.ReceivedCoins += amount
	receiver.Charm += amount

	txn := models.CoinTransaction{
		ID:         primitive.NewObjectID(),
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     amount,
		CreatedAt:  time.Now(),
	}
	m.txns = append(m.txns, txn)

	return &models.TransferResult{NewBalance: sender.Coins, Transaction: &txn}, nil
}

func (m *memLedgerStore) Transactions(ctx context.Context, accountID string, opts models.HistoryOptions) ([]models.TransactionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	views := []models.TransactionView{}
	for i := len(m.txns) - 1; i >= 0; i-- {
		txn := m.txns[i]
		if !opts.Before.IsZero() && !txn.CreatedAt.Before(opts.Before) {
			continue
		}
		var view models.TransactionView
		switch accountID {
		case txn.SenderID.Hex():
			view = models.TransactionView{ID: txn.ID, Amount: txn.Amount, Direction: "sent", CreatedAt: txn.CreatedAt}
		case txn.ReceiverID.Hex():
			view = models.TransactionView{ID: txn.ID, Amount: txn.Amount, Direction: "received", CreatedAt: txn.CreatedAt}
		default:
			continue
		}
		views = append(views, view)
		if opts.Limit > 0 && int64(len(views)) == opts.Limit {
			break
		}
	}
	return views, nil
}

func newTestLedger(store *memLedgerStore) *LedgerService {
	return NewLedgerService(store, config.App{DefaultCommissionRate: 10, HistoryPageSize: 50})
}

func TestTransferMovesCoins(t *testing.T) {
	store := newMemLedgerStore()
	sender := store.addAccount("Alice", "10000001", 500)
	receiver := store.addAccount("Bob", "10000002", 0)
	svc := newTestLedger(store)

	result, err := svc.Transfer(context.Background(), sender.ID.Hex(), "10000002", 200)
	require.NoError(t, err)
	assert.Equal(t, int64(300), result.NewBalance)
	require.NotNil(t, result.Transaction)
	assert.Equal(t, sender.ID, result.Transaction.SenderID)
	assert.Equal(t, receiver.ID, result.Transaction.ReceiverID)
	assert.Equal(t, int64(200), result.Transaction.Amount)

	updated, err := store.AccountByID(context.Background(), receiver.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(200), updated.Coins)
}

func TestTransferUpdatesLifetimeCounters(t *testing.T) {
	store := newMemLedgerStore()
	sender := store.addAccount("Alice", "10000001", 500)
	receiver := store.addAccount("Bob", "10000002", 0)
	svc := newTestLedger(store)

	_, err := svc.Transfer(context.Background(), sender.ID.Hex(), "10000002", 150)
	require.NoError(t, err)

	updatedSender, _ := store.AccountByID(context.Background(), sender.ID.Hex())
	updatedReceiver, _ := store.AccountByID(context.Background(), receiver.ID.Hex())

	assert.Equal(t, int64(150), updatedSender.SentCoins)
	assert.Equal(t, int64(150), updatedSender.Wealth)
	assert.Equal(t, int64(150), updatedReceiver.ReceivedCoins)
	assert.Equal(t, int64(150), updatedReceiver.Charm)
}

func TestTransferRejectsNonPositiveAmount(t *testing.T) {
	store := newMemLedgerStore()
	sender := store.addAccount("Alice", "10000001", 500)
	store.addAccount("Bob", "10000002", 0)
	svc := newTestLedger(store)

	_, err := svc.Transfer(context.Background(), sender.ID.Hex(), "10000002", 0)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.Transfer(context.Background(), sender.ID.Hex(), "10000002", -50)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	balance, _ := svc.GetBalance(context.Background(), sender.ID.Hex())
	assert.Equal(t, int64(500), balance.Coins)
}

func TestTransferRejectsSelf(t *testing.T) {
	store := newMemLedgerStore()
	sender := store.addAccount("Alice", "10000001", 500)
	svc := newTestLedger(store)

	_, err := svc.Transfer(context.Background(), sender.ID.Hex(), "10000001", 100)
	assert.ErrorIs(t, err, models.ErrInvalidOperation)
}

func TestTransferRejectsInsufficientFunds(t *testing.T) {
	store := newMemLedgerStore()
	sender := store.addAccount("Alice", "10000001", 100)
	store.addAccount("Bob", "10000002", 0)
	svc := newTestLedger(store)

	_, err := svc.Transfer(context.Background(), sender.ID.Hex(), "10000002", 101)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	balance, _ := svc.GetBalance(context.Background(), sender.ID.Hex())
	assert.Equal(t, int64(100), balance.Coins)
	assert.Empty(t, store.txns)
}

func TestTransferRejectsUnknownAccounts(t *testing.T) {
	store := newMemLedgerStore()
	sender := store.addAccount("Alice", "10000001", 500)
	svc := newTestLedger(store)

	_, err := svc.Transfer(context.Background(), primitive.NewObjectID().Hex(), "10000001", 100)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.Transfer(context.Background(), sender.ID.Hex(), "99999999", 100)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTransferAppendsOneRecordPerTransfer(t *testing.T) {
	store := newMemLedgerStore()
	sender := store.addAccount("Alice", "10000001", 500)
	store.addAccount("Bob", "10000002", 0)
	svc := newTestLedger(store)

	for i := 0; i < 3; i++ {
		_, err := svc.Transfer(context.Background(), sender.ID.Hex(), "10000002", 10)
		require.NoError(t, err)
	}
	assert.Len(t, store.txns, 3)
}

func TestConcurrentTransfersDoNotLoseUpdates(t *testing.T) {
	store := newMemLedgerStore()
	sender := store.addAccount("Alice", "10000001", 1000)
	receiver := store.addAccount("Bob", "10000002", 0)
	svc := newTestLedger(store)

	const workers = 50
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), sender.ID.Hex(), "10000002", 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	updatedSender, _ := store.AccountByID(context.Background(), sender.ID.Hex())
	updatedReceiver, _ := store.AccountByID(context.Background(), receiver.ID.Hex())

	assert.Equal(t, int64(1000-workers*10), updatedSender.Coins)
	assert.Equal(t, int64(workers*10), updatedReceiver.Coins)
	assert.Len(t, store.txns, workers)
}

func TestConcurrentTransfersToDistinctReceivers(t *testing.T) {
	store := newMemLedgerStore()
	sender := store.addAccount("Alice", "10000001", 1000)
	svc := newTestLedger(store)

	const workers = 20
	receivers := make([]string, workers)
	for i := range receivers {
		receivers[i] = fmt.Sprintf("200%05d", i)
		store.addAccount("Receiver", receivers[i], 0)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(uniqueID string) {
			defer wg.Done()
			_, err := svc.Transfer(context.Background(), sender.ID.Hex(), uniqueID, 10)
			assert.NoError(t, err)
		}(receivers[i])
	}
	wg.Wait()

	updatedSender, _ := store.AccountByID(context.Background(), sender.ID.Hex())
	assert.Equal(t, int64(1000-workers*10), updatedSender.Coins)

	total := updatedSender.Coins
	for _, uniqueID := range receivers {
		receiver, err := store.AccountByUniqueID(context.Background(), uniqueID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), receiver.Coins)
		total += receiver.Coins
	}
	assert.Equal(t, int64(1000), total)
}

func TestConcurrentTransfersNeverOverdraw(t *testing.T) {
	store := newMemLedgerStore()
	sender := store.addAccount("Alice", "10000001", 100)
	receiver := store.addAccount("Bob", "10000002", 0)
	svc := newTestLedger(store)

	// 20 workers race for 10 affordable transfers.
	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			svc.Transfer(context.Background(), sender.ID.Hex(), "10000002", 10)
		}()
	}
	wg.Wait()

	updatedSender, _ := store.AccountByID(context.Background(), sender.ID.Hex())
	updatedReceiver, _ := store.AccountByID(context.Background(), receiver.ID.Hex())

	assert.GreaterOrEqual(t, updatedSender.Coins, int64(0))
	assert.Equal(t, int64(100), updatedSender.Coins+updatedReceiver.Coins)
	assert.Equal(t, int64(100)-updatedSender.Coins, int64(len(store.txns))*10)
}

func TestOpposingTransfersDoNotDeadlock(t *testing.T) {
	store := newMemLedgerStore()
	alice := store.addAccount("Alice", "10000001", 500)
	bob := store.addAccount("Bob", "10000002", 500)
	svc := newTestLedger(store)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 25; i++ {
			svc.Transfer(context.Background(), alice.ID.Hex(), "10000002", 1)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 25; i++ {
			svc.Transfer(context.Background(), bob.ID.Hex(), "10000001", 1)
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("opposing transfers deadlocked")
	}

	updatedAlice, _ := store.AccountByID(context.Background(), alice.ID.Hex())
	updatedBob, _ := store.AccountByID(context.Background(), bob.ID.Hex())
	assert.Equal(t, int64(1000), updatedAlice.Coins+updatedBob.Coins)
}

func TestGetBalance(t *testing.T) {
	store := newMemLedgerStore()
	account := store.addAccount("Alice", "10000001", 42)
	svc := newTestLedger(store)

	info, err := svc.GetBalance(context.Background(), account.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, int64(42), info.Coins)
	assert.Equal(t, "10000001", info.UniqueID)

	_, err = svc.GetBalance(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestHistoryNewestFirstWithDirections(t *testing.T) {
	store := newMemLedgerStore()
	alice := store.addAccount("Alice", "10000001", 500)
	bob := store.addAccount("Bob", "10000002", 500)
	svc := newTestLedger(store)

	_, err := svc.Transfer(context.Background(), alice.ID.Hex(), "10000002", 100)
	require.NoError(t, err)
	_, err = svc.Transfer(context.Background(), bob.ID.Hex(), "10000001", 30)
	require.NoError(t, err)

	history, err := svc.GetHistory(context.Background(), alice.ID.Hex(), models.HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "received", history[0].Direction)
	assert.Equal(t, int64(30), history[0].Amount)
	assert.Equal(t, "sent", history[1].Direction)
	assert.Equal(t, int64(100), history[1].Amount)
}

func TestHistoryRespectsLimit(t *testing.T) {
	store := newMemLedgerStore()
	alice := store.addAccount("Alice", "10000001", 500)
	store.addAccount("Bob", "10000002", 0)
	svc := newTestLedger(store)

	for i := 0; i < 5; i++ {
		_, err := svc.Transfer(context.Background(), alice.ID.Hex(), "10000002", 1)
		require.NoError(t, err)
	}

	history, err := svc.GetHistory(context.Background(), alice.ID.Hex(), models.HistoryOptions{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, history, 3)
}
