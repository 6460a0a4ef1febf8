// controllers/host_controller.go
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
)

// HostController is the host-side view of an agency membership.
type HostController struct {
	db     *mongo.Client
	agency *services.AgencyService
}

func NewHostController(db *mongo.Client, agency *services.AgencyService) *HostController {
	return &HostController{db: db, agency: agency}
}

// Dashboard returns the host's membership, their agency and lifetime
// earning counters.
func (h *HostController) Dashboard(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	var user models.User
	err = config.GetCollection(h.db, "users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found",
		})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load user",
		})
	}

	data := bson.M{
		"userId":        user.ID,
		"name":          user.Name,
		"uniqueId":      user.UniqueID,
		"avatar":        user.Avatar,
		"charm":         user.Charm,
		"receivedCoins": user.ReceivedCoins,
	}

	var membership models.AgencyHost
	err = config.GetCollection(h.db, "agency_hosts").FindOne(ctx, bson.M{"userId": userID}).Decode(&membership)
	if err == nil {
		var agency models.Agency
		if err := config.GetCollection(h.db, "agencies").FindOne(ctx, bson.M{"_id": membership.AgencyID}).Decode(&agency); err == nil {
			data["agency"] = bson.M{
				"id":   agency.ID,
				"name": agency.Name,
				"code": agency.Code,
			}
			data["joinedAt"] = membership.JoinedAt
		}
	} else if err != mongo.ErrNoDocuments {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load membership",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Dashboard retrieved",
		Data:    data,
	})
}

// Invitations lists recruitment offers addressed to the host.
func (h *HostController) Invitations(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	filter := bson.M{"userId": userID}
	if status := c.QueryParam("status"); status != "" {
		filter["status"] = models.InvitationStatus(status)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "agencies", "localField": "agencyId", "foreignField": "_id", "as": "agency",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$agency", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{
			"agencyId": 1, "userId": 1, "status": 1, "createdAt": 1,
			"agencyName": "$agency.name",
			"agencyCode": "$agency.code",
		}}},
	}

	cursor, err := config.GetCollection(h.db, "agency_invitations").Aggregate(ctx, pipeline)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load invitations",
		})
	}
	defer cursor.Close(ctx)

	invitations := []bson.M{}
	if err := cursor.All(ctx, &invitations); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode invitations",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Invitations retrieved",
		Data:    invitations,
	})
}

// RespondToInvitation accepts or declines a pending invitation. Acceptance
// makes the host an active member of the inviting agency.
func (h *HostController) RespondToInvitation(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req struct {
		InvitationID string `json:"invitationId" validate:"required"`
		Accept       bool   `json:"accept"`
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

	if err := h.agency.RespondToInvitation(ctx, req.InvitationID, req.Accept); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Status updated",
	})
}

// Payouts lists payout requests filed on the host's behalf.
func (h *HostController) Payouts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	filter := bson.M{"userId": userID, "type": "host"}
	if status := c.QueryParam("status"); status != "" {
		filter["status"] = models.PayoutStatus(status)
	}

	cursor, err := config.GetCollection(h.db, "agency_payouts").Find(ctx, filter,
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
