// controllers/bd_controller.go
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
)

// BDController serves business-development staff: each BD oversees a
// portfolio of agencies linked to them by agency code.
type BDController struct {
	db *mongo.Client
}

func NewBDController(db *mongo.Client) *BDController {
	return &BDController{db: db}
}

// Dashboard aggregates portfolio-wide totals for the BD.
func (b *BDController) Dashboard(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bdID, err := primitive.ObjectIDFromHex(c.Param("bdId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid BD ID format",
		})
	}

	agenciesCollection := config.GetCollection(b.db, "agencies")

	totalAgencies, err := agenciesCollection.CountDocuments(ctx, bson.M{"bdId": bdID})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to count agencies",
		})
	}

	cursor, err := agenciesCollection.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"bdId": bdID}}},
		{{Key: "$group", Value: bson.M{
			"_id":      nil,
			"hosts":    bson.M{"$sum": "$hostsCount"},
			"earnings": bson.M{"$sum": "$earnings"},
		}}},
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to aggregate portfolio",
		})
	}
	defer cursor.Close(ctx)

	var grouped []struct {
		Hosts    int64 `bson:"hosts"`
		Earnings int64 `bson:"earnings"`
	}
	if err := cursor.All(ctx, &grouped); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to decode portfolio",
		})
	}

	stats := models.BDStats{TotalAgencies: totalAgencies}
	if len(grouped) > 0 {
		stats.TotalHosts = grouped[0].Hosts
		stats.TotalEarnings = grouped[0].Earnings
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Dashboard retrieved",
		Data:    stats,
	})
}

// Agencies lists the agencies linked to the BD, newest first.
func (b *BDController) Agencies(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bdID, err := primitive.ObjectIDFromHex(c.Param("bdId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid BD ID format",
		})
	}

	filter := bson.M{"bdId": bdID}
	if search := c.QueryParam("search"); search != "" {
		regex := bson.M{"$regex": search, "$options": "i"}
		filter["$or"] = bson.A{
			bson.M{"name": regex},
			bson.M{"code": regex},
		}
	}

	cursor, err := config.GetCollection(b.db, "agencies").Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load agencies",
		})
	}
	defer cursor.Close(ctx)

	agencies := []models.Agency{}
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

// Hosts lists all hosts under the BD's agencies.
func (b *BDController) Hosts(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bdID, err := primitive.ObjectIDFromHex(c.Param("bdId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid BD ID format",
		})
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"bdId": bdID}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "agency_hosts", "localField": "_id", "foreignField": "agencyId", "as": "host",
		}}},
		{{Key: "$unwind", Value: "$host"}},
		{{Key: "$lookup", Value: bson.M{
			"from": "users", "localField": "host.userId", "foreignField": "_id", "as": "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$sort", Value: bson.D{{Key: "host.joinedAt", Value: -1}}}},
		{{Key: "$project", Value: bson.M{
			"agencyId":   "$_id",
			"agencyName": "$name",
			"userId":     "$host.userId",
			"joinedAt":   "$host.joinedAt",
			"name":       "$user.name",
			"uniqueId":   "$user.uniqueId",
			"avatar":     "$user.avatar",
			"charm":      "$user.charm",
		}}},
	}

	cursor, err := config.GetCollection(b.db, "agencies").Aggregate(ctx, pipeline)
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

// LinkAgency attaches an agency, addressed by its join code, to the BD's
// portfolio.
func (b *BDController) LinkAgency(c echo.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var req struct {
		BDID       string `json:"bdId" validate:"required"`
		AgencyCode string `json:"agencyCode" validate:"required"`
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

	bdID, err := primitive.ObjectIDFromHex(req.BDID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid BD ID format",
		})
	}

	// Only claim agencies that are not already in a portfolio.
	result, err := config.GetCollection(b.db, "agencies").UpdateOne(ctx,
		bson.M{"code": req.AgencyCode, "bdId": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"bdId": bdID}})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to link agency",
		})
	}
	if result.MatchedCount == 0 {
		count, err := config.GetCollection(b.db, "agencies").CountDocuments(ctx, bson.M{"code": req.AgencyCode})
		if err == nil && count > 0 {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "Agency already linked to a BD",
			})
		}
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Agency not found",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Agency linked successfully",
	})
}
