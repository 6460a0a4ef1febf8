// repositories/ledger_repository.go
package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/models"
)

// LedgerRepository is the MongoDB implementation of services.LedgerStore.
// Transfers commit inside a session transaction with a conditional debit,
// so a concurrent transfer can never overdraw the sender or leave a debit
// without its matching transaction record.
type LedgerRepository struct {
	client       *mongo.Client
	users        *mongo.Collection
	transactions *mongo.Collection
	hosts        *mongo.Collection
	agencies     *mongo.Collection
	agencyTxns   *mongo.Collection
	defaultRate  int
}

func NewLedgerRepository(client *mongo.Client, cfg config.App) *LedgerRepository {
	db := client.Database(config.DatabaseName())
	return &LedgerRepository{
		client:       client,
		users:        db.Collection("users"),
		transactions: db.Collection("coin_transactions"),
		hosts:        db.Collection("agency_hosts"),
		agencies:     db.Collection("agencies"),
		agencyTxns:   db.Collection("agency_transactions"),
		defaultRate:  cfg.DefaultCommissionRate,
	}
}

func (r *LedgerRepository) AccountByID(ctx context.Context, id string) (*models.User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrNotFound
	}

	var user models.User
	err = r.users.FindOne(ctx, bson.M{"_id": objID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *LedgerRepository) AccountByUniqueID(ctx context.Context, uniqueID string) (*models.User, error) {
	var user models.User
	err := r.users.FindOne(ctx, bson.M{"uniqueId": uniqueID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ApplyTransfer commits one transfer as a single transaction: guarded
// debit of the sender, credit of the receiver, one immutable transaction
// record, and, when the receiver is an active host, the agency commission
// accrual. The debit filter re-checks the balance under the commit; a miss
// means the funds were spent since the service's pre-check.
func (r *LedgerRepository) ApplyTransfer(ctx context.Context, senderID, receiverID string, amount int64) (*models.TransferResult, error) {
	senderObj, err := primitive.ObjectIDFromHex(senderID)
	if err != nil {
		return nil, models.ErrNotFound
	}
	receiverObj, err := primitive.ObjectIDFromHex(receiverID)
	if err != nil {
		return nil, models.ErrNotFound
	}

	session, err := r.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	result := &models.TransferResult{}

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		now := time.Now()

		var sender struct {
			Coins int64 `bson:"coins"`
		}
		err := r.users.FindOneAndUpdate(sc,
			bson.M{"_id": senderObj, "coins": bson.M{"$gte": amount}},
			bson.M{
				"$inc": bson.M{"coins": -amount, "sentCoins": amount, "wealth": amount},
				"$set": bson.M{"updatedAt": now},
			},
			options.FindOneAndUpdate().
				SetReturnDocument(options.After).
				SetProjection(bson.M{"coins": 1}),
		).Decode(&sender)
		if err == mongo.ErrNoDocuments {
			// Existence was checked before the commit; a miss here is a
			// balance that moved under us.
			return nil, models.ErrInsufficientFunds
		}
		if err != nil {
			return nil, err
		}

		credit, err := r.users.UpdateByID(sc, receiverObj, bson.M{
			"$inc": bson.M{"coins": amount, "receivedCoins": amount, "charm": amount},
			"$set": bson.M{"updatedAt": now},
		})
		if err != nil {
			return nil, err
		}
		if credit.MatchedCount == 0 {
			return nil, models.ErrNotFound
		}

		txn := &models.CoinTransaction{
			SenderID:   senderObj,
			ReceiverID: receiverObj,
			Amount:     amount,
			CreatedAt:  now,
		}
		inserted, err := r.transactions.InsertOne(sc, txn)
		if err != nil {
			return nil, err
		}
		txn.ID = inserted.InsertedID.(primitive.ObjectID)

		if err := r.accrueCommission(sc, txn); err != nil {
			return nil, err
		}

		result.NewBalance = sender.Coins
		result.Transaction = txn
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// accrueCommission credits the receiver's agency, if any, with its cut of
// the transfer. Runs inside the transfer transaction so the accrual can
// never drift from the ledger.
func (r *LedgerRepository) accrueCommission(sc mongo.SessionContext, txn *models.CoinTransaction) error {
	var membership models.AgencyHost
	err := r.hosts.FindOne(sc, bson.M{"userId": txn.ReceiverID}).Decode(&membership)
	if err == mongo.ErrNoDocuments {
		return nil
	}
	if err != nil {
		return err
	}

	var agency models.Agency
	if err := r.agencies.FindOne(sc, bson.M{"_id": membership.AgencyID}).Decode(&agency); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil
		}
		return err
	}

	rate := agency.Commission
	if rate <= 0 {
		rate = r.defaultRate
	}

	_, err = r.agencyTxns.InsertOne(sc, models.AgencyTransaction{
		AgencyID:   agency.ID,
		SenderID:   txn.SenderID,
		ReceiverID: txn.ReceiverID,
		Amount:     txn.Amount,
		Type:       "Gift",
		CreatedAt:  txn.CreatedAt,
	})
	if err != nil {
		return err
	}

	cut := txn.Amount * int64(rate) / 100
	_, err = r.agencies.UpdateByID(sc, agency.ID, bson.M{"$inc": bson.M{"earnings": cut}})
	return err
}

func (r *LedgerRepository) Transactions(ctx context.Context, accountID string, opts models.HistoryOptions) ([]models.TransactionView, error) {
	objID, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return nil, models.ErrNotFound
	}

	match := bson.M{"$or": bson.A{
		bson.M{"senderId": objID},
		bson.M{"receiverId": objID},
	}}
	if !opts.Before.IsZero() {
		match["createdAt"] = bson.M{"$lt": opts.Before}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$limit", Value: opts.Limit}},
		{{Key: "$addFields", Value: bson.M{
			"direction": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$senderId", objID}}, "sent", "received",
			}},
			"counterpartyId": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$senderId", objID}}, "$receiverId", "$senderId",
			}},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "users",
			"localField":   "counterpartyId",
			"foreignField": "_id",
			"as":           "counterparty",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$counterparty", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{
			"_id":                  1,
			"amount":               1,
			"createdAt":            1,
			"direction":            1,
			"counterpartyName":     "$counterparty.name",
			"counterpartyUniqueId": "$counterparty.uniqueId",
			"counterpartyAvatar":   "$counterparty.avatar",
		}}},
	}

	cursor, err := r.transactions.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	views := []models.TransactionView{}
	if err := cursor.All(ctx, &views); err != nil {
		return nil, err
	}
	return views, nil
}
