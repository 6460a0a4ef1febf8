// controllers/help_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/models"
)

type HelpController struct {
	db *mongo.Client
}

func NewHelpController(db *mongo.Client) *HelpController {
	return &HelpController{db: db}
}

// Submit files a support complaint.
func (h *HelpController) Submit(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.SubmitHelpRequest
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

	request := models.HelpRequest{
		UserID:        userID,
		Complaint:     req.Complaint,
		ContactNumber: req.ContactNumber,
		Status:        "open",
		CreatedAt:     time.Now(),
	}

	result, err := config.GetCollection(h.db, "help_requests").InsertOne(ctx, request)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to submit request",
		})
	}
	request.ID = result.InsertedID.(primitive.ObjectID)

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "Request submitted",
		Data:    request,
	})
}
