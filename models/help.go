package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type HelpRequest struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID        primitive.ObjectID `json:"userId" bson:"userId"`
	Complaint     string             `json:"complaint" bson:"complaint"`
	ContactNumber string             `json:"contactNumber,omitempty" bson:"contactNumber,omitempty"`
	Status        string             `json:"status" bson:"status"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
}

type SubmitHelpRequest struct {
	UserID        string `json:"userId" validate:"required"`
	Complaint     string `json:"complaint" validate:"required"`
	ContactNumber string `json:"contactNumber"`
}
