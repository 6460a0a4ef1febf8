// controllers/admin_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/models"
	"github.com/jakejheack/pony/services"
	"github.com/jakejheack/pony/websocket"
)

// AdminController is the back-office surface: platform stats, user and
// agency listings, account blocking and payout decisions.
type AdminController struct {
	db     *mongo.Client
	agency *services.AgencyService
	mailer *services.Mailer
	hub    *websocket.Hub
}

func NewAdminController(db *mongo.Client, agency *services.AgencyService, mailer *services.Mailer, hub *websocket.Hub) *AdminController {
	return &AdminController{db: db, agency: agency, mailer: mailer, hub: hub}
}

// Stats returns platform-wide headline numbers plus the latest signups.
func (a *AdminController) Stats(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	usersCollection := config.GetCollection(a.db, "users")

	totalUsers, err := usersCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to count users",
		})
	}
	blockedUsers, err := usersCollection.CountDocuments(ctx, bson.M{"status": "blocked"})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to count users",
		})
	}
	vipUsers, err := usersCollection.CountDocuments(ctx, bson.M{"vipLevel": bson.M{"$gt": 0}})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to count users",
		})
	}
	totalHosts, err := config.GetCollection(a.db, "agency_hosts").CountDocuments(ctx, bson.M{})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to count hosts",
		})
	}
	totalAgencies, err := config.GetCollection(a.db, "agencies").CountDocuments(ctx, bson.M{})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to count agencies",
		})
	}
	pendingPayouts, err := config.GetCollection(a.db, "agency_payouts").CountDocuments(ctx, bson.M{"status": models.PayoutPending})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to count payouts",
		})
	}

	cursor, err := usersCollection.Find(ctx, bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetLimit(10).
			SetProjection(bson.M{"password": 0}))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load recent users",
		})
	}
	defer cursor.Close(ctx)

	recentUsers := []models.User{}
	if err := cursor.All(ctx, &recentUsers); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode recent users",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Stats retrieved",
		Data: bson.M{
			"totalUsers":     totalUsers,
			"blockedUsers":   blockedUsers,
			"vipUsers":       vipUsers,
			"totalHosts":     totalHosts,
			"totalAgencies":  totalAgencies,
			"pendingPayouts": pendingPayouts,
			"recentUsers":    recentUsers,
		},
	})
}

// Users lists accounts with optional role/status filters and a search term.
func (a *AdminController) Users(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if role := c.QueryParam("role"); role != "" {
		filter["role"] = role
	}
	if status := c.QueryParam("status"); status != "" {
		filter["status"] = status
	}
	if search := c.QueryParam("search"); search != "" {
		regex := bson.M{"$regex": search, "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"name": regex},
			bson.M{"username": regex},
			bson.M{"email": regex},
			bson.M{"uniqueId": regex},
		}
	}

	cursor, err := config.GetCollection(a.db, "users").Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}}).
			SetLimit(100).
			SetProjection(bson.M{"password": 0}))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load users",
		})
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode users",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Users retrieved",
		Data:    users,
	})
}

// Agencies lists all agencies with their owners.
func (a *AdminController) Agencies(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "users", "localField": "userId", "foreignField": "_id", "as": "owner",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$owner", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{
			"name": 1, "code": 1, "commission": 1, "earnings": 1,
			"hostsCount": 1, "status": 1, "createdAt": 1,
			"ownerName":  "$owner.name",
			"ownerEmail": "$owner.email",
		}}},
	}

	cursor, err := config.GetCollection(a.db, "agencies").Aggregate(ctx, pipeline)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load agencies",
		})
	}
	defer cursor.Close(ctx)

	agencies := []bson.M{}
	if err := cursor.All(ctx, &agencies); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode agencies",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Agencies retrieved",
		Data:    agencies,
	})
}

// SetUserStatus blocks or reactivates an account. Blocked accounts keep
// their balance; only the ability to log in and transfer is suspended.
func (a *AdminController) SetUserStatus(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req struct {
		UserID string `json:"userId" validate:"required"`
		Status string `json:"status" validate:"required,oneof=active blocked"`
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
			Message: "Status must be active or blocked",
		})
	}

	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	result, err := config.GetCollection(a.db, "users").UpdateByID(ctx, userID,
		bson.M{"$set": bson.M{"status": req.Status, "updatedAt": time.Now()}})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to update user",
		})
	}
	if result.MatchedCount == 0 {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Status updated",
	})
}

// Payouts lists payout requests across all agencies.
func (a *AdminController) Payouts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if status := c.QueryParam("status"); status != "" {
		filter["status"] = models.PayoutStatus(status)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "agencies", "localField": "agencyId", "foreignField": "_id", "as": "agency",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$agency", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{
			"agencyId": 1, "userId": 1, "type": 1, "amount": 1, "reference": 1,
			"status": 1, "declineReason": 1, "createdAt": 1, "processedAt": 1,
			"agencyName":     "$agency.name",
			"agencyEarnings": "$agency.earnings",
		}}},
	}

	cursor, err := config.GetCollection(a.db, "agency_payouts").Aggregate(ctx, pipeline)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load payouts",
		})
	}
	defer cursor.Close(ctx)

	payouts := []bson.M{}
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

// DecidePayout accepts or declines a pending payout. Acceptance debits the
// agency's accrued earnings; a request the earnings no longer cover is
// rejected with 400.
func (a *AdminController) DecidePayout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.PayoutDecisionRequest
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

	if err := a.agency.DecidePayout(ctx, req.PayoutID, req.Accept, req.DeclineReason); err != nil {
		return respondError(c, err)
	}

	go a.notifyPayoutDecision(req.PayoutID, req.Accept, req.DeclineReason)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Payout updated",
	})
}

func (a *AdminController) notifyPayoutDecision(payoutID string, accepted bool, reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id, err := primitive.ObjectIDFromHex(payoutID)
	if err != nil {
		return
	}

	var payout models.AgencyPayout
	if err := config.GetCollection(a.db, "agency_payouts").FindOne(ctx, bson.M{"_id": id}).Decode(&payout); err != nil {
		return
	}

	if a.hub != nil && !payout.UserID.IsZero() {
		a.hub.NotifyPayoutUpdate(payout.UserID, payout)
	}

	var user models.User
	if err := config.GetCollection(a.db, "users").FindOne(ctx, bson.M{"_id": payout.UserID}).Decode(&user); err != nil {
		return
	}
	if user.Email != "" {
		a.mailer.SendPayoutDecision(user.Email, user.Name, payout.Amount, accepted, reason)
	}
}

// HelpRequests lists submitted support complaints.
func (a *AdminController) HelpRequests(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if status := c.QueryParam("status"); status != "" {
		filter["status"] = status
	}

	cursor, err := config.GetCollection(a.db, "help_requests").Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load help requests",
		})
	}
	defer cursor.Close(ctx)

	requests := []models.HelpRequest{}
	if err := cursor.All(ctx, &requests); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode help requests",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Help requests retrieved",
		Data:    requests,
	})
}
