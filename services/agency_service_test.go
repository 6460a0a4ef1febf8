package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/models"
)

type memAgencyStore struct {
	mu           sync.Mutex
	agencies     map[string]*models.Agency
	byCode       map[string]string
	memberships  map[string]*models.AgencyHost // keyed by userId hex
	applications map[string]*models.HostApplication
	invitations  map[string]*models.AgencyInvitation
	payouts      map[string]*models.AgencyPayout
	commissions  []models.CommissionEntry
}

func newMemAgencyStore() *memAgencyStore {
	return &memAgencyStore{
		agencies:     make(map[string]*models.Agency),
		byCode:       make(map[string]string),
		memberships:  make(map[string]*models.AgencyHost),
		applications: make(map[string]*models.HostApplication),
		invitations:  make(map[string]*models.AgencyInvitation),
		payouts:      make(map[string]*models.AgencyPayout),
	}
}

func (m *memAgencyStore) addAgency(name, code string, commission int, earnings int64) *models.Agency {
	m.mu.Lock()
	defer m.mu.Unlock()
	agency := &models.Agency{
		ID:         primitive.NewObjectID(),
		UserID:     primitive.NewObjectID(),
		Name:       name,
		Code:       code,
		Commission: commission,
		Earnings:   earnings,
	}
	m.agencies[agency.ID.Hex()] = agency
	m.byCode[code] = agency.ID.Hex()
	return agency
}

func (m *memAgencyStore) AgencyByID(ctx context.Context, id string) (*models.Agency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agency, ok := m.agencies[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *agency
	return &copied, nil
}

func (m *memAgencyStore) AgencyByCode(ctx context.Context, code string) (*models.Agency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCode[code]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *m.agencies[id]
	return &copied, nil
}

func (m *memAgencyStore) HostMembership(ctx context.Context, userID string) (*models.AgencyHost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	host, ok := m.memberships[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *host
	return &copied, nil
}

func (m *memAgencyStore) PendingApplicationFor(ctx context.Context, userID string) (*models.HostApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, app := range m.applications {
		if app.UserID.Hex() == userID && app.Status == models.ApplicationPending {
			copied := *app
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memAgencyStore) PendingInvitation(ctx context.Context, agencyID, userID string) (*models.AgencyInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invitations {
		if inv.AgencyID.Hex() == agencyID && inv.UserID.Hex() == userID && inv.Status == models.InvitationPending {
			copied := *inv
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memAgencyStore) CreateApplication(ctx context.Context, app *models.HostApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app.ID = primitive.NewObjectID()
	copied := *app
	m.applications[app.ID.Hex()] = &copied
	return nil
}

func (m *memAgencyStore) CreateInvitation(ctx context.Context, inv *models.AgencyInvitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv.ID = primitive.NewObjectID()
	copied := *inv
	m.invitations[inv.ID.Hex()] = &copied
	return nil
}

func (m *memAgencyStore) ApplicationByID(ctx context.Context, id string) (*models.HostApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.applications[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *app
	return &copied, nil
}

func (m *memAgencyStore) InvitationByID(ctx context.Context, id string) (*models.AgencyInvitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *inv
	return &copied, nil
}

func (m *memAgencyStore) SetApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.applications[id]
	if !ok || app.Status != models.ApplicationPending {
		return models.ErrConflict
	}
	app.Status = status
	return nil
}

func (m *memAgencyStore) SetInvitationStatus(ctx context.Context, id string, status models.InvitationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok || inv.Status != models.InvitationPending {
		return models.ErrConflict
	}
	inv.Status = status
	return nil
}

func (m *memAgencyStore) AcceptApplication(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.applications[id]
	if !ok || app.Status != models.ApplicationPending {
		return models.ErrConflict
	}
	if _, taken := m.memberships[app.UserID.Hex()]; taken {
		return models.ErrConflict
	}
	app.Status = models.ApplicationAccepted
	m.memberships[app.UserID.Hex()] = &models.AgencyHost{
		ID:       primitive.NewObjectID(),
		AgencyID: app.AgencyID,
		UserID:   app.UserID,
		Status:   "active",
		JoinedAt: time.Now(),
	}
	m.agencies[app.AgencyID.Hex()].HostsCount++
	return nil
}

func (m *memAgencyStore) AcceptInvitation(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invitations[id]
	if !ok || inv.Status != models.InvitationPending {
		return models.ErrConflict
	}
	if _, taken := m.memberships[inv.UserID.Hex()]; taken {
		return models.ErrConflict
	}
	inv.Status = models.InvitationAccepted
	m.memberships[inv.UserID.Hex()] = &models.AgencyHost{
		ID:       primitive.NewObjectID(),
		AgencyID: inv.AgencyID,
		UserID:   inv.UserID,
		Status:   "active",
		JoinedAt: time.Now(),
	}
	m.agencies[inv.AgencyID.Hex()].HostsCount++
	return nil
}

func (m *memAgencyStore) CommissionHistory(ctx context.Context, agencyID string, rng models.DateRange, limit int64) ([]models.CommissionEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := []models.CommissionEntry{}
	for _, e := range m.commissions {
		if !rng.From.IsZero() && e.CreatedAt.Before(rng.From) {
			continue
		}
		if !rng.To.IsZero() && e.CreatedAt.After(rng.To) {
			continue
		}
		entries = append(entries, e)
		if limit > 0 && int64(len(entries)) == limit {
			break
		}
	}
	return entries, nil
}

func (m *memAgencyStore) CreatePayout(ctx context.Context, payout *models.AgencyPayout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payout.ID = primitive.NewObjectID()
	copied := *payout
	m.payouts[payout.ID.Hex()] = &copied
	return nil
}

func (m *memAgencyStore) PayoutByID(ctx context.Context, id string) (*models.AgencyPayout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payout, ok := m.payouts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *payout
	return &copied, nil
}

func (m *memAgencyStore) AcceptPayout(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payout, ok := m.payouts[id]
	if !ok || payout.Status != models.PayoutPending {
		return models.ErrConflict
	}
	agency := m.agencies[payout.AgencyID.Hex()]
	if agency.Earnings < payout.Amount {
		return models.ErrInsufficientFunds
	}
	agency.Earnings -= payout.Amount
	payout.Status = models.PayoutAccepted
	now := time.Now()
	payout.ProcessedAt = &now
	return nil
}

func (m *memAgencyStore) DeclinePayout(ctx context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payout, ok := m.payouts[id]
	if !ok || payout.Status != models.PayoutPending {
		return models.ErrConflict
	}
	payout.Status = models.PayoutDeclined
	payout.DeclineReason = reason
	now := time.Now()
	payout.ProcessedAt = &now
	return nil
}

func newTestAgency(store *memAgencyStore, accounts *memLedgerStore) *AgencyService {
	return NewAgencyService(store, accounts, config.App{DefaultCommissionRate: 10, HistoryPageSize: 50})
}

func TestEffectiveRateFallsBackToDefault(t *testing.T) {
	store := newMemAgencyStore()
	svc := newTestAgency(store, newMemLedgerStore())

	withOverride := store.addAgency("Stars", "AG-STARS1", 25, 0)
	withoutOverride := store.addAgency("Moons", "AG-MOONS1", 0, 0)

	assert.Equal(t, 25, svc.EffectiveRate(withOverride))
	assert.Equal(t, 10, svc.EffectiveRate(withoutOverride))
}

func TestApplyCreatesPendingApplication(t *testing.T) {
	store := newMemAgencyStore()
	accounts := newMemLedgerStore()
	agency := store.addAgency("Stars", "AG-STARS1", 0, 0)
	user := accounts.addAccount("Alice", "10000001", 0)
	svc := newTestAgency(store, accounts)

	app, err := svc.Apply(context.Background(), user.ID.Hex(), "AG-STARS1")
	require.NoError(t, err)
	assert.Equal(t, agency.ID, app.AgencyID)
	assert.Equal(t, user.ID, app.UserID)
	assert.Equal(t, models.ApplicationPending, app.Status)
}

func TestApplyRejectsUnknownCodeAndUser(t *testing.T) {
	store := newMemAgencyStore()
	accounts := newMemLedgerStore()
	store.addAgency("Stars", "AG-STARS1", 0, 0)
	user := accounts.addAccount("Alice", "10000001", 0)
	svc := newTestAgency(store, accounts)

	_, err := svc.Apply(context.Background(), user.ID.Hex(), "AG-NOPE")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = svc.Apply(context.Background(), primitive.NewObjectID().Hex(), "AG-STARS1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestApplyConflictsOnExistingMembershipOrPendingApplication(t *testing.T) {
	store := newMemAgencyStore()
	accounts := newMemLedgerStore()
	store.addAgency("Stars", "AG-STARS1", 0, 0)
	store.addAgency("Moons", "AG-MOONS1", 0, 0)
	user := accounts.addAccount("Alice", "10000001", 0)
	svc := newTestAgency(store, accounts)

	app, err := svc.Apply(context.Background(), user.ID.Hex(), "AG-STARS1")
	require.NoError(t, err)

	// Second application while the first is pending.
	_, err = svc.Apply(context.Background(), user.ID.Hex(), "AG-MOONS1")
	assert.ErrorIs(t, err, models.ErrConflict)

	require.NoError(t, svc.RespondToApplication(context.Background(), app.ID.Hex(), true))

	// Application while already a host somewhere.
	_, err = svc.Apply(context.Background(), user.ID.Hex(), "AG-MOONS1")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestRespondToApplicationTransitionsAreTerminal(t *testing.T) {
	store := newMemAgencyStore()
	accounts := newMemLedgerStore()
	agency := store.addAgency("Stars", "AG-STARS1", 0, 0)
	user := accounts.addAccount("Alice", "10000001", 0)
	svc := newTestAgency(store, accounts)

	app, err := svc.Apply(context.Background(), user.ID.Hex(), "AG-STARS1")
	require.NoError(t, err)

	require.NoError(t, svc.RespondToApplication(context.Background(), app.ID.Hex(), false))

	// Already rejected; any further decision conflicts.
	err = svc.RespondToApplication(context.Background(), app.ID.Hex(), true)
	assert.ErrorIs(t, err, models.ErrConflict)
	err = svc.RespondToApplication(context.Background(), app.ID.Hex(), false)
	assert.ErrorIs(t, err, models.ErrConflict)

	updated, _ := store.AgencyByID(context.Background(), agency.ID.Hex())
	assert.Equal(t, 0, updated.HostsCount)
}

func TestAcceptApplicationPromotesHost(t *testing.T) {
	store := newMemAgencyStore()
	accounts := newMemLedgerStore()
	agency := store.addAgency("Stars", "AG-STARS1", 0, 0)
	user := accounts.addAccount("Alice", "10000001", 0)
	svc := newTestAgency(store, accounts)

	app, err := svc.Apply(context.Background(), user.ID.Hex(), "AG-STARS1")
	require.NoError(t, err)
	require.NoError(t, svc.RespondToApplication(context.Background(), app.ID.Hex(), true))

	membership, err := store.HostMembership(context.Background(), user.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, agency.ID, membership.AgencyID)

	updated, _ := store.AgencyByID(context.Background(), agency.ID.Hex())
	assert.Equal(t, 1, updated.HostsCount)
}

func TestInviteConflictsOnMembershipAndDuplicate(t *testing.T) {
	store := newMemAgencyStore()
	accounts := newMemLedgerStore()
	agency := store.addAgency("Stars", "AG-STARS1", 0, 0)
	accounts.addAccount("Alice", "10000001", 0)
	svc := newTestAgency(store, accounts)

	inv, err := svc.Invite(context.Background(), agency.ID.Hex(), "10000001")
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, inv.Status)

	// Duplicate pending invitation from the same agency.
	_, err = svc.Invite(context.Background(), agency.ID.Hex(), "10000001")
	assert.ErrorIs(t, err, models.ErrConflict)

	require.NoError(t, svc.RespondToInvitation(context.Background(), inv.ID.Hex(), true))

	// Invitation to an account that is already a host.
	other := store.addAgency("Moons", "AG-MOONS1", 0, 0)
	_, err = svc.Invite(context.Background(), other.ID.Hex(), "10000001")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestCancelInvitationOnlyWhilePending(t *testing.T) {
	store := newMemAgencyStore()
	accounts := newMemLedgerStore()
	agency := store.addAgency("Stars", "AG-STARS1", 0, 0)
	accounts.addAccount("Alice", "10000001", 0)
	svc := newTestAgency(store, accounts)

	inv, err := svc.Invite(context.Background(), agency.ID.Hex(), "10000001")
	require.NoError(t, err)

	require.NoError(t, svc.CancelInvitation(context.Background(), inv.ID.Hex()))

	// Cancelled is terminal.
	err = svc.RespondToInvitation(context.Background(), inv.ID.Hex(), true)
	assert.ErrorIs(t, err, models.ErrConflict)
	err = svc.CancelInvitation(context.Background(), inv.ID.Hex())
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestDeclinedInvitationLeavesNoMembership(t *testing.T) {
	store := newMemAgencyStore()
	accounts := newMemLedgerStore()
	agency := store.addAgency("Stars", "AG-STARS1", 0, 0)
	user := accounts.addAccount("Alice", "10000001", 0)
	svc := newTestAgency(store, accounts)

	inv, err := svc.Invite(context.Background(), agency.ID.Hex(), "10000001")
	require.NoError(t, err)
	require.NoError(t, svc.RespondToInvitation(context.Background(), inv.ID.Hex(), false))

	_, err = store.HostMembership(context.Background(), user.ID.Hex())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCommissionHistoryAppliesEffectiveRate(t *testing.T) {
	store := newMemAgencyStore()
	agency := store.addAgency("Stars", "AG-STARS1", 20, 0)
	store.commissions = []models.CommissionEntry{
		{TransactionID: primitive.NewObjectID(), Amount: 1000, CreatedAt: time.Now()},
		{TransactionID: primitive.NewObjectID(), Amount: 55, CreatedAt: time.Now()},
	}
	svc := newTestAgency(store, newMemLedgerStore())

	entries, err := svc.CommissionHistory(context.Background(), agency.ID.Hex(), models.DateRange{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 20, entries[0].CommissionRate)
	assert.Equal(t, int64(200), entries[0].AgencyCoin)
	assert.Equal(t, int64(11), entries[1].AgencyCoin) // integer division floors
}

func TestCommissionHistoryFiltersByRange(t *testing.T) {
	store := newMemAgencyStore()
	agency := store.addAgency("Stars", "AG-STARS1", 0, 0)
	old := time.Now().AddDate(0, -2, 0)
	store.commissions = []models.CommissionEntry{
		{TransactionID: primitive.NewObjectID(), Amount: 100, CreatedAt: old},
		{TransactionID: primitive.NewObjectID(), Amount: 200, CreatedAt: time.Now()},
	}
	svc := newTestAgency(store, newMemLedgerStore())

	entries, err := svc.CommissionHistory(context.Background(), agency.ID.Hex(), models.DateRange{
		From: time.Now().AddDate(0, -1, 0),
	})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(200), entries[0].Amount)
}

func TestRequestPayoutValidation(t *testing.T) {
	store := newMemAgencyStore()
	agency := store.addAgency("Stars", "AG-STARS1", 0, 500)
	svc := newTestAgency(store, newMemLedgerStore())

	_, err := svc.RequestPayout(context.Background(), agency.ID.Hex(), 0)
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	_, err = svc.RequestPayout(context.Background(), primitive.NewObjectID().Hex(), 100)
	assert.ErrorIs(t, err, models.ErrNotFound)

	payout, err := svc.RequestPayout(context.Background(), agency.ID.Hex(), 100)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutPending, payout.Status)
	assert.NotEmpty(t, payout.Reference)
}

func TestAcceptPayoutDebitsEarnings(t *testing.T) {
	store := newMemAgencyStore()
	agency := store.addAgency("Stars", "AG-STARS1", 0, 500)
	svc := newTestAgency(store, newMemLedgerStore())

	payout, err := svc.RequestPayout(context.Background(), agency.ID.Hex(), 300)
	require.NoError(t, err)

	require.NoError(t, svc.DecidePayout(context.Background(), payout.ID.Hex(), true, ""))

	updated, _ := store.AgencyByID(context.Background(), agency.ID.Hex())
	assert.Equal(t, int64(200), updated.Earnings)

	settled, _ := store.PayoutByID(context.Background(), payout.ID.Hex())
	assert.Equal(t, models.PayoutAccepted, settled.Status)
	require.NotNil(t, settled.ProcessedAt)
}

func TestAcceptPayoutRequiresCoverage(t *testing.T) {
	store := newMemAgencyStore()
	agency := store.addAgency("Stars", "AG-STARS1", 0, 500)
	svc := newTestAgency(store, newMemLedgerStore())

	// The request is allowed; coverage is checked at decision time, and
	// by then a competing payout has drained the earnings.
	first, err := svc.RequestPayout(context.Background(), agency.ID.Hex(), 400)
	require.NoError(t, err)
	second, err := svc.RequestPayout(context.Background(), agency.ID.Hex(), 400)
	require.NoError(t, err)

	require.NoError(t, svc.DecidePayout(context.Background(), first.ID.Hex(), true, ""))

	err = svc.DecidePayout(context.Background(), second.ID.Hex(), true, "")
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	updated, _ := store.AgencyByID(context.Background(), agency.ID.Hex())
	assert.Equal(t, int64(100), updated.Earnings)

	// Still pending, so it can be declined.
	require.NoError(t, svc.DecidePayout(context.Background(), second.ID.Hex(), false, "insufficient accrued earnings"))
	declined, _ := store.PayoutByID(context.Background(), second.ID.Hex())
	assert.Equal(t, models.PayoutDeclined, declined.Status)
	assert.Equal(t, "insufficient accrued earnings", declined.DeclineReason)
}

func TestDecidePayoutConflictsWhenSettled(t *testing.T) {
	store := newMemAgencyStore()
	agency := store.addAgency("Stars", "AG-STARS1", 0, 500)
	svc := newTestAgency(store, newMemLedgerStore())

	payout, err := svc.RequestPayout(context.Background(), agency.ID.Hex(), 100)
	require.NoError(t, err)
	require.NoError(t, svc.DecidePayout(context.Background(), payout.ID.Hex(), false, "not now"))

	err = svc.DecidePayout(context.Background(), payout.ID.Hex(), true, "")
	assert.ErrorIs(t, err, models.ErrConflict)
}
