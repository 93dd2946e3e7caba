package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Connect establishes a connection to MongoDB
func Connect(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	clientOptions := options.Client().ApplyURI(uri)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	mongoDB := &MongoDB{
		Client:   client,
		Database: client.Database(dbName),
	}

	if err := mongoDB.CreateIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return mongoDB, nil
}

// CreateIndexes creates all necessary indexes for the application
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	coupons := m.Database.Collection("coupons")

	// Codes are stored uppercase, so the unique index gives us the
	// case-insensitive uniqueness guarantee.
	codeIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("coupon_code_unique"),
	}
	if _, err := coupons.Indexes().CreateOne(ctx, codeIndex); err != nil {
		return fmt.Errorf("failed to create coupon code index: %w", err)
	}

	// Speeds up the per-user ledger lookups inside the conditional
	// redemption update.
	ledgerIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "used_by_users.user_id", Value: 1}},
		Options: options.Index().SetName("coupon_ledger_user_index"),
	}
	if _, err := coupons.Indexes().CreateOne(ctx, ledgerIndex); err != nil {
		return fmt.Errorf("failed to create ledger user index: %w", err)
	}

	return nil
}

// Disconnect closes the MongoDB connection
func (m *MongoDB) Disconnect(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
