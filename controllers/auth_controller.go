// controllers/auth_controller.go
package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/middleware"
	"github.com/jakejheack/pony/models"
	"github.com/jakejheack/pony/utils"
)

type AuthController struct {
	db *mongo.Client
}

func NewAuthController(db *mongo.Client) *AuthController {
	return &AuthController{db: db}
}

// Register creates a new account with a fresh shareable unique id.
func (ac *AuthController) Register(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.RegisterRequest
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
			Data:    err.Error(),
		})
	}

	usersCollection := config.GetCollection(ac.db, "users")

	count, err := usersCollection.CountDocuments(ctx, bson.M{"email": req.Email})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to check existing users",
		})
	}
	if count > 0 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "User already exists",
		})
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to process password",
		})
	}

	username, err := utils.GenerateUsername(req.Name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate username",
		})
	}

	user := models.User{
		Name:      req.Name,
		Username:  username,
		Email:     req.Email,
		Password:  hashedPassword,
		Mobile:    req.Mobile,
		Role:      "user",
		Status:    "active",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	// The unique index on uniqueId backs the collision retry.
	var inserted *mongo.InsertOneResult
	for attempt := 0; attempt < 3; attempt++ {
		user.UniqueID, err = utils.GenerateUniqueID()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to generate unique id",
			})
		}
		inserted, err = usersCollection.InsertOne(ctx, user)
		if err == nil || !mongo.IsDuplicateKeyError(err) {
			break
		}
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to create user",
		})
	}

	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "User registered successfully",
		Data: bson.M{
			"userId":   inserted.InsertedID.(primitive.ObjectID).Hex(),
			"uniqueId": user.UniqueID,
			"username": user.Username,
		},
	})
}

// Login authenticates by email and password and issues a JWT.
func (ac *AuthController) Login(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.LoginRequest
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

	var user models.User
	err := config.GetCollection(ac.db, "users").FindOne(ctx, bson.M{"email": req.Email}).Decode(&user)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid credentials",
		})
	}

	if !utils.CheckPassword(user.Password, req.Password) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid credentials",
		})
	}

	token, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	user.Password = ""
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data:    models.LoginResponse{Token: token, User: user},
	})
}

// MobileLogin signs in by mobile number, creating the account on first
// use.
func (ac *AuthController) MobileLogin(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req models.MobileLoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Mobile number required",
		})
	}

	usersCollection := config.GetCollection(ac.db, "users")

	var user models.User
	err := usersCollection.FindOne(ctx, bson.M{"mobile": req.Mobile}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		uniqueID, err := utils.GenerateUniqueID()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to generate unique id",
			})
		}
		user = models.User{
			Name:      "New User",
			Username:  "user" + uniqueID,
			Mobile:    req.Mobile,
			UniqueID:  uniqueID,
			Role:      "user",
			Status:    "active",
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		inserted, err := usersCollection.InsertOne(ctx, user)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, models.Response{
				Status:  http.StatusInternalServerError,
				Message: "Failed to create user",
			})
		}
		user.ID = inserted.InsertedID.(primitive.ObjectID)
	} else if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to look up user",
		})
	}

	token, err := middleware.GenerateJWT(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	user.Password = ""
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data:    models.LoginResponse{Token: token, User: user},
	})
}
