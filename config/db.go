// config/db.go
package config

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectDB establishes connection to MongoDB
func ConnectDB() *mongo.Client {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = os.Getenv("MONGODB_URI")
	}

	// Only use a local fallback in development
	if mongoURI == "" {
		env := os.Getenv("ENV")
		if env == "development" || env == "dev" {
			mongoURI = "mongodb://localhost:27017"
		} else {
			log.Fatal("MONGO_URI or MONGODB_URI environment variable is required for production")
		}
	}

	log.Printf("Connecting to MongoDB at: %s", maskMongoURI(mongoURI))

	clientOptions := options.Client().ApplyURI(mongoURI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Fatal("MongoDB connection error:", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("MongoDB ping error:", err)
	}

	log.Println("Connected to MongoDB")

	setupCollections(client)

	return client
}

// DatabaseName returns the configured database name.
func DatabaseName() string {
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "pony"
	}
	return dbName
}

// GetCollection returns MongoDB collection
func GetCollection(client *mongo.Client, collectionName string) *mongo.Collection {
	return client.Database(DatabaseName()).Collection(collectionName)
}

// setupCollections ensures the indexes the ledger relies on exist. The
// unique index on users.uniqueId is what makes the transfer addressing key
// trustworthy; the rest are query-shape indexes.
func setupCollections(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := client.Database(DatabaseName())

	indexes := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "uniqueId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "mobile", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		"coin_transactions": {
			{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "receiverId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		"agencies": {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "bdId", Value: 1}}},
		},
		"agency_hosts": {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "agencyId", Value: 1}, {Key: "joinedAt", Value: -1}}},
		},
		"host_applications": {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "agencyId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		"agency_invitations": {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "agencyId", Value: 1}, {Key: "status", Value: 1}}},
		},
		"agency_transactions": {
			{Keys: bson.D{{Key: "agencyId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		"agency_payouts": {
			{Keys: bson.D{{Key: "agencyId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		"levels": {
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "level", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			log.Printf("Warning: failed to create indexes for %s: %v", name, err)
		}
	}
}

// maskMongoURI hides credentials in log output
func maskMongoURI(uri string) string {
	if at := strings.Index(uri, "@"); at != -1 {
		if scheme := strings.Index(uri, "://"); scheme != -1 {
			return uri[:scheme+3] + "***:***" + uri[at:]
		}
	}
	return uri
}
