// repositories/agency_repository.go
package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/models"
)

// AgencyRepository is the MongoDB implementation of services.AgencyStore.
type AgencyRepository struct {
	client       *mongo.Client
	agencies     *mongo.Collection
	hosts        *mongo.Collection
	applications *mongo.Collection
	invitations  *mongo.Collection
	agencyTxns   *mongo.Collection
	payouts      *mongo.Collection
}

func NewAgencyRepository(client *mongo.Client) *AgencyRepository {
	db := client.Database(config.DatabaseName())
	return &AgencyRepository{
		client:       client,
		agencies:     db.Collection("agencies"),
		hosts:        db.Collection("agency_hosts"),
		applications: db.Collection("host_applications"),
		invitations:  db.Collection("agency_invitations"),
		agencyTxns:   db.Collection("agency_transactions"),
		payouts:      db.Collection("agency_payouts"),
	}
}

func (r *AgencyRepository) decodeOne(ctx context.Context, coll *mongo.Collection, filter bson.M, out interface{}) error {
	err := coll.FindOne(ctx, filter).Decode(out)
	if err == mongo.ErrNoDocuments {
		return models.ErrNotFound
	}
	return err
}

func objectID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, models.ErrNotFound
	}
	return objID, nil
}

func (r *AgencyRepository) AgencyByID(ctx context.Context, id string) (*models.Agency, error) {
	objID, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var agency models.Agency
	if err := r.decodeOne(ctx, r.agencies, bson.M{"_id": objID}, &agency); err != nil {
		return nil, err
	}
	return &agency, nil
}

func (r *AgencyRepository) AgencyByCode(ctx context.Context, code string) (*models.Agency, error) {
	var agency models.Agency
	if err := r.decodeOne(ctx, r.agencies, bson.M{"code": code}, &agency); err != nil {
		return nil, err
	}
	return &agency, nil
}

func (r *AgencyRepository) HostMembership(ctx context.Context, userID string) (*models.AgencyHost, error) {
	objID, err := objectID(userID)
	if err != nil {
		return nil, err
	}
	var membership models.AgencyHost
	if err := r.decodeOne(ctx, r.hosts, bson.M{"userId": objID}, &membership); err != nil {
		return nil, err
	}
	return &membership, nil
}

func (r *AgencyRepository) PendingApplicationFor(ctx context.Context, userID string) (*models.HostApplication, error) {
	objID, err := objectID(userID)
	if err != nil {
		return nil, err
	}
	var app models.HostApplication
	filter := bson.M{"userId": objID, "status": models.ApplicationPending}
	if err := r.decodeOne(ctx, r.applications, filter, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *AgencyRepository) PendingInvitation(ctx context.Context, agencyID, userID string) (*models.AgencyInvitation, error) {
	agencyObj, err := objectID(agencyID)
	if err != nil {
		return nil, err
	}
	userObj, err := objectID(userID)
	if err != nil {
		return nil, err
	}
	var inv models.AgencyInvitation
	filter := bson.M{"agencyId": agencyObj, "userId": userObj, "status": models.InvitationPending}
	if err := r.decodeOne(ctx, r.invitations, filter, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *AgencyRepository) CreateApplication(ctx context.Context, app *models.HostApplication) error {
	inserted, err := r.applications.InsertOne(ctx, app)
	if err != nil {
		return err
	}
	app.ID = inserted.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *AgencyRepository) CreateInvitation(ctx context.Context, inv *models.AgencyInvitation) error {
	inserted, err := r.invitations.InsertOne(ctx, inv)
	if err != nil {
		return err
	}
	inv.ID = inserted.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *AgencyRepository) ApplicationByID(ctx context.Context, id string) (*models.HostApplication, error) {
	objID, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var app models.HostApplication
	if err := r.decodeOne(ctx, r.applications, bson.M{"_id": objID}, &app); err != nil {
		return nil, err
	}
	return &app, nil
}

func (r *AgencyRepository) InvitationByID(ctx context.Context, id string) (*models.AgencyInvitation, error) {
	objID, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var inv models.AgencyInvitation
	if err := r.decodeOne(ctx, r.invitations, bson.M{"_id": objID}, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *AgencyRepository) SetApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	objID, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.applications.UpdateOne(ctx,
		bson.M{"_id": objID, "status": models.ApplicationPending},
		bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrConflict
	}
	return nil
}

func (r *AgencyRepository) SetInvitationStatus(ctx context.Context, id string, status models.InvitationStatus) error {
	objID, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.invitations.UpdateOne(ctx,
		bson.M{"_id": objID, "status": models.InvitationPending},
		bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrConflict
	}
	return nil
}

// AcceptApplication promotes an applicant to active host: status flip,
// membership insert and host-count bump in one transaction. The pending
// filter and the unique index on agency_hosts.userId double as guards
// against a concurrent acceptance.
func (r *AgencyRepository) AcceptApplication(ctx context.Context, id string) error {
	objID, err := objectID(id)
	if err != nil {
		return err
	}

	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var app models.HostApplication
		err := r.applications.FindOneAndUpdate(sc,
			bson.M{"_id": objID, "status": models.ApplicationPending},
			bson.M{"$set": bson.M{"status": models.ApplicationAccepted}},
		).Decode(&app)
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrConflict
		}
		if err != nil {
			return nil, err
		}
		return nil, r.activateHost(sc, app.AgencyID, app.UserID)
	})
	return err
}

// AcceptInvitation mirrors AcceptApplication for the invitation path.
func (r *AgencyRepository) AcceptInvitation(ctx context.Context, id string) error {
	objID, err := objectID(id)
	if err != nil {
		return err
	}

	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var inv models.AgencyInvitation
		err := r.invitations.FindOneAndUpdate(sc,
			bson.M{"_id": objID, "status": models.InvitationPending},
			bson.M{"$set": bson.M{"status": models.InvitationAccepted}},
		).Decode(&inv)
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrConflict
		}
		if err != nil {
			return nil, err
		}
		return nil, r.activateHost(sc, inv.AgencyID, inv.UserID)
	})
	return err
}

func (r *AgencyRepository) activateHost(sc mongo.SessionContext, agencyID, userID primitive.ObjectID) error {
	_, err := r.hosts.InsertOne(sc, models.AgencyHost{
		AgencyID: agencyID,
		UserID:   userID,
		Status:   "active",
		JoinedAt: time.Now(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.ErrConflict
		}
		return err
	}
	_, err = r.agencies.UpdateByID(sc, agencyID, bson.M{"$inc": bson.M{"hostsCount": 1}})
	return err
}

func (r *AgencyRepository) CommissionHistory(ctx context.Context, agencyID string, rng models.DateRange, limit int64) ([]models.CommissionEntry, error) {
	objID, err := objectID(agencyID)
	if err != nil {
		return nil, err
	}

	match := bson.M{"agencyId": objID}
	created := bson.M{}
	if !rng.From.IsZero() {
		created["$gte"] = rng.From
	}
	if !rng.To.IsZero() {
		created["$lte"] = rng.To
	}
	if len(created) > 0 {
		match["createdAt"] = created
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
	}
	if limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": "users", "localField": "senderId", "foreignField": "_id", "as": "sender",
		}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": "users", "localField": "receiverId", "foreignField": "_id", "as": "receiver",
		}}},
		bson.D{{Key: "$project", Value: bson.M{
			"transactionId": "$_id",
			"type":          1,
			"amount":        1,
			"createdAt":     1,
			"senderName":    bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$sender.name", 0}}, "Unknown"}},
			"receiverName":  bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$receiver.name", 0}}, "Unknown"}},
		}}},
	)

	cursor, err := r.agencyTxns.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		TransactionID primitive.ObjectID `bson:"transactionId"`
		Type          string             `bson:"type"`
		Amount        int64              `bson:"amount"`
		SenderName    string             `bson:"senderName"`
		ReceiverName  string             `bson:"receiverName"`
		CreatedAt     time.Time          `bson:"createdAt"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	entries := make([]models.CommissionEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.CommissionEntry{
			TransactionID: row.TransactionID,
			Type:          row.Type,
			Amount:        row.Amount,
			SenderName:    row.SenderName,
			ReceiverName:  row.ReceiverName,
			CreatedAt:     row.CreatedAt,
		})
	}
	return entries, nil
}

func (r *AgencyRepository) CreatePayout(ctx context.Context, payout *models.AgencyPayout) error {
	inserted, err := r.payouts.InsertOne(ctx, payout)
	if err != nil {
		return err
	}
	payout.ID = inserted.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *AgencyRepository) PayoutByID(ctx context.Context, id string) (*models.AgencyPayout, error) {
	objID, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var payout models.AgencyPayout
	if err := r.decodeOne(ctx, r.payouts, bson.M{"_id": objID}, &payout); err != nil {
		return nil, err
	}
	return &payout, nil
}

// AcceptPayout settles a pending payout and debits the agency's accrued
// earnings in the same transaction. The earnings filter is the coverage
// guard: a payout is never accepted beyond what the agency has accrued and
// not yet withdrawn.
func (r *AgencyRepository) AcceptPayout(ctx context.Context, id string) error {
	objID, err := objectID(id)
	if err != nil {
		return err
	}

	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		now := time.Now()
		var payout models.AgencyPayout
		err := r.payouts.FindOneAndUpdate(sc,
			bson.M{"_id": objID, "status": models.PayoutPending},
			bson.M{"$set": bson.M{"status": models.PayoutAccepted, "processedAt": now}},
		).Decode(&payout)
		if err == mongo.ErrNoDocuments {
			return nil, models.ErrConflict
		}
		if err != nil {
			return nil, err
		}

		debit, err := r.agencies.UpdateOne(sc,
			bson.M{"_id": payout.AgencyID, "earnings": bson.M{"$gte": payout.Amount}},
			bson.M{"$inc": bson.M{"earnings": -payout.Amount}})
		if err != nil {
			return nil, err
		}
		if debit.MatchedCount == 0 {
			return nil, models.ErrInsufficientFunds
		}
		return nil, nil
	})
	return err
}

func (r *AgencyRepository) DeclinePayout(ctx context.Context, id, reason string) error {
	objID, err := objectID(id)
	if err != nil {
		return err
	}
	now := time.Now()
	res, err := r.payouts.UpdateOne(ctx,
		bson.M{"_id": objID, "status": models.PayoutPending},
		bson.M{"$set": bson.M{
			"status":        models.PayoutDeclined,
			"declineReason": reason,
			"processedAt":   now,
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrConflict
	}
	return nil
}
