// models/agency.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Agency model. Earnings is the accrued, not-yet-paid commission in coins;
// it only grows through transfer commits and only shrinks through an
// accepted payout.
type Agency struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID     primitive.ObjectID `json:"userId" bson:"userId"`
	BDID       primitive.ObjectID `json:"bdId,omitempty" bson:"bdId,omitempty"`
	Name       string             `json:"name" bson:"name"`
	Code       string             `json:"code" bson:"code"`
	Email      string             `json:"email,omitempty" bson:"email,omitempty"`
	Mobile     string             `json:"mobile,omitempty" bson:"mobile,omitempty"`
	Country    string             `json:"country,omitempty" bson:"country,omitempty"`
	Commission int                `json:"commission" bson:"commission"` // percent, 0 means platform default
	Earnings   int64              `json:"earnings" bson:"earnings"`
	HostsCount int                `json:"hostsCount" bson:"hostsCount"`
	Status     string             `json:"status" bson:"status"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
}

// AgencyHost is an active membership. An account belongs to at most one
// agency at a time.
type AgencyHost struct {
	ID       primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AgencyID primitive.ObjectID `json:"agencyId" bson:"agencyId"`
	UserID   primitive.ObjectID `json:"userId" bson:"userId"`
	Status   string             `json:"status" bson:"status"`
	JoinedAt time.Time          `json:"joinedAt" bson:"joinedAt"`
}

// ApplicationStatus is the state of a host join request.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// CanTransition reports whether the application may move to the given
// state. Accepted and rejected are terminal.
func (s ApplicationStatus) CanTransition(to ApplicationStatus) bool {
	if s != ApplicationPending {
		return false
	}
	return to == ApplicationAccepted || to == ApplicationRejected
}

// InvitationStatus is the state of an agency-initiated invitation.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationDeclined  InvitationStatus = "declined"
	InvitationCancelled InvitationStatus = "cancelled"
)

func (s InvitationStatus) CanTransition(to InvitationStatus) bool {
	if s != InvitationPending {
		return false
	}
	switch to {
	case InvitationAccepted, InvitationDeclined, InvitationCancelled:
		return true
	}
	return false
}

// PayoutStatus is the state of a payout request. Both decisions are
// terminal.
type PayoutStatus string

const (
	PayoutPending  PayoutStatus = "pending"
	PayoutAccepted PayoutStatus = "accepted"
	PayoutDeclined PayoutStatus = "declined"
)

func (s PayoutStatus) CanTransition(to PayoutStatus) bool {
	if s != PayoutPending {
		return false
	}
	return to == PayoutAccepted || to == PayoutDeclined
}

// HostApplication is a join request from an account against an agency code.
type HostApplication struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AgencyID  primitive.ObjectID `json:"agencyId" bson:"agencyId"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	Status    ApplicationStatus  `json:"status" bson:"status"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// AgencyInvitation is an agency-initiated recruitment offer.
type AgencyInvitation struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AgencyID  primitive.ObjectID `json:"agencyId" bson:"agencyId"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	Status    InvitationStatus   `json:"status" bson:"status"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
}

// AgencyTransaction records the commissionable slice of one transfer whose
// receiver was an active host of the agency at commit time.
type AgencyTransaction struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AgencyID   primitive.ObjectID `json:"agencyId" bson:"agencyId"`
	SenderID   primitive.ObjectID `json:"senderId" bson:"senderId"`
	ReceiverID primitive.ObjectID `json:"receiverId" bson:"receiverId"`
	Amount     int64              `json:"amount" bson:"amount"`
	Type       string             `json:"type,omitempty" bson:"type,omitempty"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
}

// AgencyPayout is a withdrawal request against accrued agency earnings.
type AgencyPayout struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AgencyID      primitive.ObjectID `json:"agencyId" bson:"agencyId"`
	UserID        primitive.ObjectID `json:"userId,omitempty" bson:"userId,omitempty"`
	Type          string             `json:"type" bson:"type"` // "agency" or "host"
	Amount        int64              `json:"amount" bson:"amount"`
	Reference     string             `json:"reference" bson:"reference"`
	Status        PayoutStatus       `json:"status" bson:"status"`
	DeclineReason string             `json:"declineReason,omitempty" bson:"declineReason,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	ProcessedAt   *time.Time         `json:"processedAt,omitempty" bson:"processedAt,omitempty"`
}

// CommissionEntry is one row of the agency earnings history, with the
// agency's cut computed at read time from the effective rate.
type CommissionEntry struct {
	TransactionID  primitive.ObjectID `json:"transactionId"`
	Type           string             `json:"type"`
	SenderName     string             `json:"senderName"`
	ReceiverName   string             `json:"receiverName"`
	Amount         int64              `json:"amount"`
	CommissionRate int                `json:"commissionRate"`
	AgencyCoin     int64              `json:"agencyCoin"`
	CreatedAt      time.Time          `json:"createdAt"`
}

// DateRange filters a history query; zero bounds are open.
type DateRange struct {
	From time.Time
	To   time.Time
}

type AgencyStats struct {
	Commission     int   `json:"commission"`
	PendingCoins   int64 `json:"pendingCoins"`
	WithdrawnCoins int64 `json:"withdrawnCoins"`
	TodayIncome    int64 `json:"todayIncome"`
	WeekIncome     int64 `json:"weekIncome"`
	TotalHosts     int   `json:"totalHosts"`
	HostCoins      int64 `json:"hostCoins"`
}

type BDStats struct {
	TotalAgencies int64 `json:"totalAgencies"`
	TotalHosts    int64 `json:"totalHosts"`
	TotalEarnings int64 `json:"totalEarnings"`
}

type CreateAgencyRequest struct {
	UserID     string `json:"userId" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email,omitempty"`
	Mobile     string `json:"mobile,omitempty"`
	Country    string `json:"country,omitempty"`
	Commission int    `json:"commission,omitempty"`
}

type JoinAgencyRequest struct {
	UserID     string `json:"userId" validate:"required"`
	AgencyCode string `json:"agencyCode" validate:"required"`
}

type InviteHostRequest struct {
	AgencyID     string `json:"agencyId" validate:"required"`
	HostUniqueID string `json:"hostUniqueId" validate:"required"`
}

type ApplicationDecisionRequest struct {
	ApplicationID string `json:"applicationId" validate:"required"`
	Accept        bool   `json:"accept"`
}

type PayoutRequest struct {
	AgencyID string `json:"agencyId" validate:"required"`
	Amount   int64  `json:"amount"`
}

type PayoutDecisionRequest struct {
	PayoutID      string `json:"payoutId" validate:"required"`
	Accept        bool   `json:"accept"`
	DeclineReason string `json:"declineReason,omitempty"`
}
