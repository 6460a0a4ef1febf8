// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User model. Coins is the spendable balance; SentCoins/ReceivedCoins are
// lifetime counters and never decrease. Wealth advances with coins spent,
// Charm with coins received; both feed the level system.
type User struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	Username      string             `json:"username" bson:"username"`
	Email         string             `json:"email,omitempty" bson:"email,omitempty"`
	Password      string             `json:"password,omitempty" bson:"password,omitempty"`
	Mobile        string             `json:"mobile,omitempty" bson:"mobile,omitempty"`
	UniqueID      string             `json:"uniqueId" bson:"uniqueId"`
	Avatar        string             `json:"avatar,omitempty" bson:"avatar,omitempty"`
	Gender        string             `json:"gender,omitempty" bson:"gender,omitempty"`
	Age           int                `json:"age,omitempty" bson:"age,omitempty"`
	Country       string             `json:"country,omitempty" bson:"country,omitempty"`
	Bio           string             `json:"bio,omitempty" bson:"bio,omitempty"`
	Language      string             `json:"language,omitempty" bson:"language,omitempty"`
	Role          string             `json:"role" bson:"role"` // "user", "host", "agency", "bd", "admin"
	VIPLevel      int                `json:"vipLevel" bson:"vipLevel"`
	Status        string             `json:"status" bson:"status"` // "active" or "blocked"
	Coins         int64              `json:"coins" bson:"coins"`
	SentCoins     int64              `json:"sentCoins" bson:"sentCoins"`
	ReceivedCoins int64              `json:"receivedCoins" bson:"receivedCoins"`
	Wealth        int64              `json:"wealth" bson:"wealth"`
	Charm         int64              `json:"charm" bson:"charm"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Mobile   string `json:"mobile"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type MobileLoginRequest struct {
	Mobile string `json:"mobile" validate:"required"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type UpdateProfileRequest struct {
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Age      int    `json:"age,omitempty"`
	Gender   string `json:"gender,omitempty"`
	Country  string `json:"country,omitempty"`
	Bio      string `json:"bio,omitempty"`
	Language string `json:"language,omitempty"`
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
