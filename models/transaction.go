// models/transaction.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CoinTransaction is the immutable audit record of one successful transfer.
// Records are inserted exactly once, inside the transfer commit, and never
// updated or deleted.
type CoinTransaction struct {
	ID         primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	SenderID   primitive.ObjectID `json:"senderId" bson:"senderId"`
	ReceiverID primitive.ObjectID `json:"receiverId" bson:"receiverId"`
	Amount     int64              `json:"amount" bson:"amount"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
}

// TransferRequest is the wallet transfer payload. The receiver is addressed
// by their shareable unique id, never by internal id.
type TransferRequest struct {
	SenderID         string `json:"senderId" validate:"required"`
	ReceiverUniqueID string `json:"receiverUniqueId" validate:"required"`
	Amount           int64  `json:"amount"`
}

type TransferResult struct {
	NewBalance  int64            `json:"newBalance"`
	Transaction *CoinTransaction `json:"transaction,omitempty"`
}

type BalanceInfo struct {
	Coins    int64  `json:"coins"`
	UniqueID string `json:"uniqueId"`
}

// TransactionView is one history entry, annotated with the counterparty as
// seen from the queried account.
type TransactionView struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id"`
	Amount               int64              `json:"amount" bson:"amount"`
	Direction            string             `json:"direction" bson:"direction"` // "sent" or "received"
	CounterpartyName     string             `json:"counterpartyName" bson:"counterpartyName"`
	CounterpartyUniqueID string             `json:"counterpartyUniqueId" bson:"counterpartyUniqueId"`
	CounterpartyAvatar   string             `json:"counterpartyAvatar,omitempty" bson:"counterpartyAvatar,omitempty"`
	CreatedAt            time.Time          `json:"createdAt" bson:"createdAt"`
}

// HistoryOptions pages a history query. Before restarts the sequence below
// the given timestamp; zero means from the newest record.
type HistoryOptions struct {
	Before time.Time
	Limit  int64
}
