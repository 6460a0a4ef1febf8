// controllers/agency_controller.go
package controllers

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/models"
	"github.com/jakejheack/pony/services"
	"github.com/jakejheack/pony/utils"
	"github.com/jakejheack/pony/websocket"
)

// AgencyController serves the agency dashboard and delegates every state
// transition (membership, payouts) to the agency service.
type AgencyController struct {
	db     *mongo.Client
	agency *services.AgencyService
	mailer *services.Mailer
	hub    *websocket.Hub
}

func NewAgencyController(db *mongo.Client, agency *services.AgencyService, mailer *services.Mailer, hub *websocket.Hub) *AgencyController {
	return &AgencyController{db: db, agency: agency, mailer: mailer, hub: hub}
}

// CreateAgency registers an agency owned by the given user.
func (ag *AgencyController) CreateAgency(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.CreateAgencyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Missing required fields",
		})
	}

	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	agenciesCollection := config.GetCollection(ag.db, "agencies")

	count, err := agenciesCollection.CountDocuments(ctx, bson.M{"userId": userID})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to check existing agency",
		})
	}
	if count > 0 {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "User already owns an agency",
		})
	}

	agency := models.Agency{
		UserID:     userID,
		Name:       req.Name,
		Email:      req.Email,
		Mobile:     req.Mobile,
		Country:    req.Country,
		Commission: req.Commission,
		Status:     "active",
		CreatedAt:  time.Now(),
	}

	// Retry on join-code collision, same pattern as account unique ids.
	var inserted *mongo.InsertOneResult
	for attempt := 0; attempt < 3; attempt++ {
		agency.Code, err = utils.GenerateAgencyCode()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to generate agency code",
			})
		}
		inserted, err = agenciesCollection.InsertOne(ctx, agency)
		if err == nil || !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create agency",
		})
	}
	agency.ID = inserted.InsertedID.(primitive.ObjectID)

	config.GetCollection(ag.db, "users").UpdateByID(ctx, userID, bson.M{"$set": bson.M{"role": "agency"}})

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Agency created successfully",
		Data:    agency,
	})
}

// Dashboard returns the agency owned by the user plus its earnings stats.
func (ag *AgencyController) Dashboard(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	var agency models.Agency
	err = config.GetCollection(ag.db, "agencies").FindOne(ctx, bson.M{"userId": userID}).Decode(&agency)
	if err == mongo.ErrNoDocuments {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Agency not found",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load agency",
		})
	}

	stats, err := ag.collectStats(ctx, &agency)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load agency stats",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Dashboard retrieved",
		Data: bson.M{
			"agency": agency,
			"stats":  stats,
		},
	})
}

func (ag *AgencyController) collectStats(ctx context.Context, agency *models.Agency) (*models.AgencyStats, error) {
	agencyTxns := config.GetCollection(ag.db, "agency_transactions")

	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := todayStart.AddDate(0, 0, -6)

	todayIncome, err := ag.sumAmounts(ctx, agencyTxns, bson.M{
		"agencyId":  agency.ID,
		"createdAt": bson.M{"$gte": todayStart},
	})
	if err != nil {
		return nil, err
	}

	weekIncome, err := ag.sumAmounts(ctx, agencyTxns, bson.M{
		"agencyId":  agency.ID,
		"createdAt": bson.M{"$gte": weekStart},
	})
	if err != nil {
		return nil, err
	}

	withdrawn, err := ag.sumAmounts(ctx, config.GetCollection(ag.db, "agency_payouts"), bson.M{
		"agencyId": agency.ID,
		"status":   models.PayoutAccepted,
	})
	if err != nil {
		return nil, err
	}

	// Sum of the hosts' lifetime received coins.
	hostCoins := int64(0)
	cursor, err := config.GetCollection(ag.db, "agency_hosts").Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"agencyId": agency.ID}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "users", "localField": "userId", "foreignField": "_id", "as": "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$user.receivedCoins"}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	var grouped []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &grouped); err != nil {
		return nil, err
	}
	if len(grouped) > 0 {
		hostCoins = grouped[0].Total
	}

	return &models.AgencyStats{
		Commission:     ag.agency.EffectiveRate(agency),
		PendingCoins:   agency.Earnings,
		WithdrawnCoins: withdrawn,
		TodayIncome:    todayIncome,
		WeekIncome:     weekIncome,
		TotalHosts:     agency.HostsCount,
		HostCoins:      hostCoins,
	}, nil
}

func (ag *AgencyController) sumAmounts(ctx context.Context, coll *mongo.Collection, match bson.M) (int64, error) {
	cursor, err := coll.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	})
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var grouped []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &grouped); err != nil {
		return 0, err
	}
	if len(grouped) == 0 {
		return 0, nil
	}
	return grouped[0].Total, nil
}

// CommissionHistory lists the agency's commissionable transactions with
// the agency cut per record.
func (ag *AgencyController) CommissionHistory(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rng, err := parseDateRange(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid date range",
		})
	}

	entries, err := ag.agency.CommissionHistory(ctx, c.Param("agencyId"), rng)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "History retrieved",
		Data:    entries,
	})
}

// Hosts lists the agency's active hosts, optionally filtered by a search
// term on name, username or unique id.
func (ag *AgencyController) Hosts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	agencyID, err := primitive.ObjectIDFromHex(c.Param("agencyId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid agency ID format",
		})
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"agencyId": agencyID}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "users", "localField": "userId", "foreignField": "_id", "as": "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
	}

	if search := c.QueryParam("search"); search != "" {
		regex := bson.M{"$regex": search, "$options": "i"}
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"user.name": regex},
			bson.M{"user.username": regex},
			bson.M{"user.uniqueId": regex},
		}}}})
	}

	pipeline = append(pipeline,
		bson.D{{Key: "$sort", Value: bson.D{{Key: "joinedAt", Value: -1}}}},
		bson.D{{Key: "$project", Value: bson.M{
			"agencyId": 1, "userId": 1, "status": 1, "joinedAt": 1,
			"name":     "$user.name",
			"username": "$user.username",
			"uniqueId": "$user.uniqueId",
			"avatar":   "$user.avatar",
			"charm":    "$user.charm",
		}}},
	)

	cursor, err := config.GetCollection(ag.db, "agency_hosts").Aggregate(ctx, pipeline)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load hosts",
		})
	}
	defer cursor.Close(ctx)

	hosts := []bson.M{}
	if err := cursor.All(ctx, &hosts); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode hosts",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Hosts retrieved",
		Data:    hosts,
	})
}

// Applications lists join requests against the agency.
func (ag *AgencyController) Applications(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	agencyID, err := primitive.ObjectIDFromHex(c.Param("agencyId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid agency ID format",
		})
	}

	filter := bson.M{"agencyId": agencyID}
	if status := c.QueryParam("status"); status != "" {
		filter["status"] = models.ApplicationStatus(status)
	}
	if rng, err := parseDateRange(c); err == nil {
		applyDateRange(filter, rng)
	}

	return ag.listWithApplicant(c, ctx, "host_applications", filter)
}

// Invitations lists recruitment offers the agency has sent.
func (ag *AgencyController) Invitations(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	agencyID, err := primitive.ObjectIDFromHex(c.Param("agencyId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid agency ID format",
		})
	}

	filter := bson.M{"agencyId": agencyID}
	if status := c.QueryParam("status"); status != "" {
		filter["status"] = models.InvitationStatus(status)
	}

	return ag.listWithApplicant(c, ctx, "agency_invitations", filter)
}

func (ag *AgencyController) listWithApplicant(c echo.Context, ctx context.Context, collection string, filter bson.M) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "users", "localField": "userId", "foreignField": "_id", "as": "user",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$user", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{
			"agencyId": 1, "userId": 1, "status": 1, "createdAt": 1,
			"userName": "$user.name",
			"uniqueId": "$user.uniqueId",
			"avatar":   "$user.avatar",
		}}},
	}

	cursor, err := config.GetCollection(ag.db, collection).Aggregate(ctx, pipeline)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load records",
		})
	}
	defer cursor.Close(ctx)

	records := []bson.M{}
	if err := cursor.All(ctx, &records); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode records",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Records retrieved",
		Data:    records,
	})
}

// Join files an application from a user against an agency code.
func (ag *AgencyController) Join(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.JoinAgencyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Missing required fields",
		})
	}

	app, err := ag.agency.Apply(ctx, req.UserID, req.AgencyCode)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Request sent successfully",
		Data:    app,
	})
}

// RespondToApplication accepts or rejects a join request.
func (ag *AgencyController) RespondToApplication(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.ApplicationDecisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Missing required fields",
		})
	}

	if err := ag.agency.RespondToApplication(ctx, req.ApplicationID, req.Accept); err != nil {
		return respondError(c, err)
	}

	go ag.notifyApplicant(req.ApplicationID, req.Accept)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Status updated",
	})
}

func (ag *AgencyController) notifyApplicant(applicationID string, accepted bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	appID, err := primitive.ObjectIDFromHex(applicationID)
	if err != nil {
		return
	}

	var app models.HostApplication
	if err := config.GetCollection(ag.db, "host_applications").FindOne(ctx, bson.M{"_id": appID}).Decode(&app); err != nil {
		return
	}
	var user models.User
	if err := config.GetCollection(ag.db, "users").FindOne(ctx, bson.M{"_id": app.UserID}).Decode(&user); err != nil {
		return
	}
	var agency models.Agency
	if err := config.GetCollection(ag.db, "agencies").FindOne(ctx, bson.M{"_id": app.AgencyID}).Decode(&agency); err != nil {
		return
	}

	ag.mailer.SendApplicationDecision(user.Email, user.Name, agency.Name, accepted)
}

// Invite sends a recruitment offer to the user addressed by unique id.
func (ag *AgencyController) Invite(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.InviteHostRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Missing required fields",
		})
	}

	inv, err := ag.agency.Invite(ctx, req.AgencyID, req.HostUniqueID)
	if err != nil {
		return respondError(c, err)
	}

	if ag.hub != nil {
		ag.hub.NotifyInvitation(inv.UserID, inv)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Invitation sent successfully",
		Data:    inv,
	})
}

// CancelInvitation withdraws a pending invitation.
func (ag *AgencyController) CancelInvitation(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req struct {
		InvitationID string `json:"invitationId" validate:"required"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Missing required fields",
		})
	}

	if err := ag.agency.CancelInvitation(ctx, req.InvitationID); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Invitation cancelled",
	})
}

// RequestPayout files a payout against the agency's accrued earnings.
func (ag *AgencyController) RequestPayout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.PayoutRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Missing required fields",
		})
	}

	payout, err := ag.agency.RequestPayout(ctx, req.AgencyID, req.Amount)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Payout requested",
		Data:    payout,
	})
}

// Payouts lists the agency's payout requests.
func (ag *AgencyController) Payouts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	agencyID, err := primitive.ObjectIDFromHex(c.Param("agencyId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid agency ID format",
		})
	}

	filter := bson.M{"agencyId": agencyID}
	if payoutType := c.QueryParam("type"); payoutType != "" {
		filter["type"] = payoutType
	}
	if status := c.QueryParam("status"); status != "" {
		filter["status"] = models.PayoutStatus(status)
	}
	if rng, err := parseDateRange(c); err == nil {
		applyDateRange(filter, rng)
	}

	cursor, err := config.GetCollection(ag.db, "agency_payouts").Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load payouts",
		})
	}
	defer cursor.Close(ctx)

	payouts := []models.AgencyPayout{}
	if err := cursor.All(ctx, &payouts); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode payouts",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payouts retrieved",
		Data:    payouts,
	})
}

// CodeQR renders the agency's join code as a QR PNG for recruitment
// flyers and in-app sharing.
func (ag *AgencyController) CodeQR(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	agencyID, err := primitive.ObjectIDFromHex(c.Param("agencyId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid agency ID format",
		})
	}

	var agency models.Agency
	err = config.GetCollection(ag.db, "agencies").FindOne(ctx, bson.M{"_id": agencyID}).Decode(&agency)
	if err == mongo.ErrNoDocuments {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Agency not found",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load agency",
		})
	}

	qrCode, err := qr.Encode(agency.Code, qr.M, qr.Auto)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate QR code",
		})
	}

	scaled, err := barcode.Scale(qrCode, 200, 200)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to scale QR code",
		})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to encode QR code",
		})
	}

	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

func parseDateRange(c echo.Context) (models.DateRange, error) {
	rng := models.DateRange{}
	if start := c.QueryParam("startDate"); start != "" {
		parsed, err := time.Parse("2006-01-02", start)
		if err != nil {
			return rng, err
		}
		rng.From = parsed
	}
	if end := c.QueryParam("endDate"); end != "" {
		parsed, err := time.Parse("2006-01-02", end)
		if err != nil {
			return rng, err
		}
		rng.To = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return rng, nil
}

func applyDateRange(filter bson.M, rng models.DateRange) {
	created := bson.M{}
	if !rng.From.IsZero() {
		created["$gte"] = rng.From
	}
	if !rng.To.IsZero() {
		created["$lte"] = rng.To
	}
	if len(created) > 0 {
		filter["createdAt"] = created
	}
}
