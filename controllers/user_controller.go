// controllers/user_controller.go
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
	"github.com/jakejheack/pony/repositories"
)

type UserController struct {
	db    *mongo.Client
	users *repositories.UserRepository
}

func NewUserController(db *mongo.Client, users *repositories.UserRepository) *UserController {
	return &UserController{db: db, users: users}
}

// GetProfile returns the public profile plus the caller's own counters.
func (uc *UserController) GetProfile(c echo.Context) error {
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
	err = config.GetCollection(uc.db, "users").FindOne(ctx,
		bson.M{"_id": userID},
		options.FindOne().SetProjection(bson.M{"password": 0})).Decode(&user)
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

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile retrieved",
		Data:    user,
	})
}

// UpdateProfile applies the editable profile fields. Balance and counter
// fields are not editable through this endpoint.
func (uc *UserController) UpdateProfile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	if err := uc.users.UpdateProfile(ctx, c.Param("userId"), &req); err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile updated",
	})
}

// CoinHistory lists raw transaction records for the user, filtered to one
// side of the ledger: ?filter=income for received, ?filter=expense for
// sent, both when omitted.
func (uc *UserController) CoinHistory(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	userID, err := primitive.ObjectIDFromHex(c.Param("userId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid user ID format",
		})
	}

	var filter bson.M
	switch c.QueryParam("filter") {
	case "income":
		filter = bson.M{"receiverId": userID}
	case "expense":
		filter = bson.M{"senderId": userID}
	case "":
		filter = bson.M{"$or": bson.A{
			bson.M{"senderId": userID},
			bson.M{"receiverId": userID},
		}}
	default:
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Filter must be income or expense",
		})
	}

	cursor, err := config.GetCollection(uc.db, "coin_transactions").Find(ctx, filter,
		options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
			SetLimit(100))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load history",
		})
	}
	defer cursor.Close(ctx)

	transactions := []models.CoinTransaction{}
	if err := cursor.All(ctx, &transactions); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode history",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "History retrieved",
		Data:    transactions,
	})
}
