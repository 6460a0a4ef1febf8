// controllers/level_controller.go
package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jakejheack/pony/config"
	"github.com/jakejheack/pony/models"
)

const levelCacheTTL = time.Hour

// LevelController serves the wealth and charm ladders. Ladder definitions
// change rarely, so they are cached in Redis for an hour.
type LevelController struct {
	db    *mongo.Client
	redis *redis.Client
}

func NewLevelController(db *mongo.Client, redisClient *redis.Client) *LevelController {
	return &LevelController{db: db, redis: redisClient}
}

func levelCacheKey(kind string) string {
	return "levels:" + kind
}

func (lc *LevelController) ladder(ctx context.Context, kind string) ([]models.Level, error) {
	if lc.redis != nil {
		if cached, err := lc.redis.Get(ctx, levelCacheKey(kind)).Result(); err == nil {
			var levels []models.Level
			if json.Unmarshal([]byte(cached), &levels) == nil {
				return levels, nil
			}
		}
	}

	cursor, err := config.GetCollection(lc.db, "levels").Find(ctx,
		bson.M{"kind": kind},
		options.Find().SetSort(bson.D{{Key: "threshold", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	levels := []models.Level{}
	if err := cursor.All(ctx, &levels); err != nil {
		return nil, err
	}

	if lc.redis != nil {
		if encoded, err := json.Marshal(levels); err == nil {
			lc.redis.Set(ctx, levelCacheKey(kind), encoded, levelCacheTTL)
		}
	}
	return levels, nil
}

// Levels returns the full ladder for a kind ("wealth" or "charm").
func (lc *LevelController) Levels(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	kind := c.Param("kind")
	if kind != "wealth" && kind != "charm" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Unknown ladder kind",
		})
	}

	levels, err := lc.ladder(ctx, kind)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load levels",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Levels retrieved",
		Data:    levels,
	})
}

// Progress returns the user's position on both ladders: wealth tracks
// lifetime coins sent, charm tracks lifetime coins received.
func (lc *LevelController) Progress(c echo.Context) error {
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
	err = config.GetCollection(lc.db, "users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
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

	wealthLevels, err := lc.ladder(ctx, "wealth")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load levels",
		})
	}
	charmLevels, err := lc.ladder(ctx, "charm")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load levels",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Progress retrieved",
		Data: bson.M{
			"wealth": models.ProgressFor(wealthLevels, user.Wealth),
			"charm":  models.ProgressFor(charmLevels, user.Charm),
		},
	})
}
