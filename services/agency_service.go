// services/agency_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/models"
)

// AgencyStore is the persistence boundary of the agency domain.
// AcceptApplication and AcceptInvitation commit the status change, the
// membership insert and the agency host-count bump as one unit, failing
// with models.ErrConflict if the record is no longer pending or the
// account became a host elsewhere in the meantime. AcceptPayout debits
// agency earnings under an accrual guard and fails with
// models.ErrInsufficientFunds when the accrued balance does not cover the
// requested amount.
type AgencyStore interface {
	AgencyByID(ctx context.Context, id string) (*models.Agency, error)
	AgencyByCode(ctx context.Context, code string) (*models.Agency, error)

	HostMembership(ctx context.Context, userID string) (*models.AgencyHost, error)
	PendingApplicationFor(ctx context.Context, userID string) (*models.HostApplication, error)
	PendingInvitation(ctx context.Context, agencyID, userID string) (*models.AgencyInvitation, error)

	CreateApplication(ctx context.Context, app *models.HostApplication) error
	CreateInvitation(ctx context.Context, inv *models.AgencyInvitation) error
	ApplicationByID(ctx context.Context, id string) (*models.HostApplication, error)
	InvitationByID(ctx context.Context, id string) (*models.AgencyInvitation, error)
	SetApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus) error
	SetInvitationStatus(ctx context.Context, id string, status models.InvitationStatus) error
	AcceptApplication(ctx context.Context, id string) error
	AcceptInvitation(ctx context.Context, id string) error

	CommissionHistory(ctx context.Context, agencyID string, rng models.DateRange, limit int64) ([]models.CommissionEntry, error)

	CreatePayout(ctx context.Context, payout *models.AgencyPayout) error
	PayoutByID(ctx context.Context, id string) (*models.AgencyPayout, error)
	AcceptPayout(ctx context.Context, id string) error
	DeclinePayout(ctx context.Context, id, reason string) error
}

// AgencyService enforces the membership and payout state machines and
// derives commission figures. Listing/dashboard reads stay in the
// controllers; everything that moves a state through a transition comes
// through here.
type AgencyService struct {
	store    AgencyStore
	accounts LedgerStore
	cfg      config.App
}

func NewAgencyService(store AgencyStore, accounts LedgerStore, cfg config.App) *AgencyService {
	return &AgencyService{store: store, accounts: accounts, cfg: cfg}
}

// EffectiveRate returns the agency's commission percent, falling back to
// the platform default when the agency carries no override.
func (s *AgencyService) EffectiveRate(agency *models.Agency) int {
	if agency.Commission > 0 {
		return agency.Commission
	}
	return s.cfg.DefaultCommissionRate
}

// Apply files a join request from an unaffiliated account against an
// agency code.
func (s *AgencyService) Apply(ctx context.Context, userID, agencyCode string) (*models.HostApplication, error) {
	agency, err := s.store.AgencyByCode(ctx, agencyCode)
	if err != nil {
		return nil, err
	}

	user, err := s.accounts.AccountByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.HostMembership(ctx, userID); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, &models.PersistenceError{Op: "membership lookup", Err: err}
	}

	if _, err := s.store.PendingApplicationFor(ctx, userID); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, &models.PersistenceError{Op: "application lookup", Err: err}
	}

	app := &models.HostApplication{
		AgencyID:  agency.ID,
		UserID:    user.ID,
		Status:    models.ApplicationPending,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		return nil, &models.PersistenceError{Op: "create application", Err: err}
	}
	return app, nil
}

// Invite creates a pending invitation from an agency to an unaffiliated
// account addressed by their unique id.
func (s *AgencyService) Invite(ctx context.Context, agencyID, hostUniqueID string) (*models.AgencyInvitation, error) {
	agency, err := s.store.AgencyByID(ctx, agencyID)
	if err != nil {
		return nil, err
	}

	user, err := s.accounts.AccountByUniqueID(ctx, hostUniqueID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.HostMembership(ctx, user.ID.Hex()); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, &models.PersistenceError{Op: "membership lookup", Err: err}
	}

	if _, err := s.store.PendingInvitation(ctx, agencyID, user.ID.Hex()); err == nil {
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, &models.PersistenceError{Op: "invitation lookup", Err: err}
	}

	inv := &models.AgencyInvitation{
		AgencyID:  agency.ID,
		UserID:    user.ID,
		Status:    models.InvitationPending,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateInvitation(ctx, inv); err != nil {
		return nil, &models.PersistenceError{Op: "create invitation", Err: err}
	}
	return inv, nil
}

// CancelInvitation withdraws a pending invitation.
func (s *AgencyService) CancelInvitation(ctx context.Context, invitationID string) error {
	inv, err := s.store.InvitationByID(ctx, invitationID)
	if err != nil {
		return err
	}
	if !inv.Status.CanTransition(models.InvitationCancelled) {
		return models.ErrConflict
	}
	if err := s.store.SetInvitationStatus(ctx, invitationID, models.InvitationCancelled); err != nil {
		return &models.PersistenceError{Op: "cancel invitation", Err: err}
	}
	return nil
}

// RespondToApplication accepts or rejects a pending join request.
// Acceptance promotes the applicant to active host and bumps the agency's
// host count.
func (s *AgencyService) RespondToApplication(ctx context.Context, applicationID string, accept bool) error {
	app, err := s.store.ApplicationByID(ctx, applicationID)
	if err != nil {
		return err
	}

	target := models.ApplicationRejected
	if accept {
		target = models.ApplicationAccepted
	}
	if !app.Status.CanTransition(target) {
		return models.ErrConflict
	}

	if !accept {
		if err := s.store.SetApplicationStatus(ctx, applicationID, models.ApplicationRejected); err != nil {
			return &models.PersistenceError{Op: "reject application", Err: err}
		}
		return nil
	}

	if err := s.store.AcceptApplication(ctx, applicationID); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return err
		}
		return &models.PersistenceError{Op: "accept application", Err: err}
	}
	return nil
}

// RespondToInvitation is the host-side mirror of RespondToApplication.
func (s *AgencyService) RespondToInvitation(ctx context.Context, invitationID string, accept bool) error {
	inv, err := s.store.InvitationByID(ctx, invitationID)
	if err != nil {
		return err
	}

	target := models.InvitationDeclined
	if accept {
		target = models.InvitationAccepted
	}
	if !inv.Status.CanTransition(target) {
		return models.ErrConflict
	}

	if !accept {
		if err := s.store.SetInvitationStatus(ctx, invitationID, models.InvitationDeclined); err != nil {
			return &models.PersistenceError{Op: "decline invitation", Err: err}
		}
		return nil
	}

	if err := s.store.AcceptInvitation(ctx, invitationID); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return err
		}
		return &models.PersistenceError{Op: "accept invitation", Err: err}
	}
	return nil
}

// CommissionHistory lists the agency's commissionable transactions in the
// range, newest first, with the agency's cut derived from the effective
// rate at read time.
func (s *AgencyService) CommissionHistory(ctx context.Context, agencyID string, rng models.DateRange) ([]models.CommissionEntry, error) {
	agency, err := s.store.AgencyByID(ctx, agencyID)
	if err != nil {
		return nil, err
	}
	rate := s.EffectiveRate(agency)

	limit := s.cfg.HistoryPageSize
	if !rng.From.IsZero() || !rng.To.IsZero() {
		limit = 0 // explicit range, no default cap
	}

	entries, err := s.store.CommissionHistory(ctx, agencyID, rng, limit)
	if err != nil {
		return nil, &models.PersistenceError{Op: "commission history", Err: err}
	}
	for i := range entries {
		entries[i].CommissionRate = rate
		entries[i].AgencyCoin = entries[i].Amount * int64(rate) / 100
	}
	return entries, nil
}

// RequestPayout files a pending payout against the agency's accrued
// earnings. Coverage is enforced at decision time, not here.
func (s *AgencyService) RequestPayout(ctx context.Context, agencyID string, amount int64) (*models.AgencyPayout, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	agency, err := s.store.AgencyByID(ctx, agencyID)
	if err != nil {
		return nil, err
	}

	payout := &models.AgencyPayout{
		AgencyID:  agency.ID,
		UserID:    agency.UserID,
		Type:      "agency",
		Amount:    amount,
		Reference: "PAY-" + uuid.NewString(),
		Status:    models.PayoutPending,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreatePayout(ctx, payout); err != nil {
		return nil, &models.PersistenceError{Op: "create payout", Err: err}
	}
	return payout, nil
}

// DecidePayout settles a pending payout. Acceptance requires the agency's
// accrued, unpaid earnings to cover the amount and debits them in the same
// commit.
func (s *AgencyService) DecidePayout(ctx context.Context, payoutID string, accept bool, declineReason string) error {
	payout, err := s.store.PayoutByID(ctx, payoutID)
	if err != nil {
		return err
	}

	target := models.PayoutDeclined
	if accept {
		target = models.PayoutAccepted
	}
	if !payout.Status.CanTransition(target) {
		return models.ErrConflict
	}

	if !accept {
		if err := s.store.DeclinePayout(ctx, payoutID, declineReason); err != nil {
			return &models.PersistenceError{Op: "decline payout", Err: err}
		}
		return nil
	}

	if err := s.store.AcceptPayout(ctx, payoutID); err != nil {
		if errors.Is(err, models.ErrInsufficientFunds) || errors.Is(err, models.ErrConflict) {
			return err
		}
		return &models.PersistenceError{Op: "accept payout", Err: err}
	}
	return nil
}
