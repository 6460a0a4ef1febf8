package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/models"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(client *mongo.Client) *UserRepository {
	return &UserRepository{
		collection: config.GetCollection(client, "users"),
	}
}

// UpdateProfile applies the non-empty fields of the request. Coin and
// counter fields are deliberately unreachable from here; only the ledger
// writes those.
func (r *UserRepository) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) error {
	objID, err := objectID(userID)
	if err != nil {
		return err
	}

	set := bson.M{"updatedAt": time.Now()}
	if req.Name != "" {
		set["name"] = req.Name
	}
	if req.Username != "" {
		set["username"] = req.Username
	}
	if req.Age > 0 {
		set["age"] = req.Age
	}
	if req.Gender != "" {
		set["gender"] = req.Gender
	}
	if req.Country != "" {
		set["country"] = req.Country
	}
	if req.Bio != "" {
		set["bio"] = req.Bio
	}
	if req.Language != "" {
		set["language"] = req.Language
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
