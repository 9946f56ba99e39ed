package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type IndexConfig struct {
	CollectionName string
	IndexModel     mongo.IndexModel
}

var requiredIndexes = []IndexConfig{
	// Users: login lookup and duplicate email detection
	{
		CollectionName: usersCollection,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_user_email_unique"),
		},
	},

	// Books
	{
		CollectionName: booksCollection,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "category", Value: 1}},
			Options: options.Index().SetName("idx_category"),
		},
	},
	{
		CollectionName: booksCollection,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{
				{Key: "title", Value: 1},
				{Key: "author", Value: 1},
			},
			Options: options.Index().SetName("idx_title_author"),
		},
	},

	// Orders: per-user history, newest first
	{
		CollectionName: ordersCollection,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_user_orders"),
		},
	},
	// Orders: admin listing filtered by status
	{
		CollectionName: ordersCollection,
		IndexModel: mongo.IndexModel{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_status_orders"),
		},
	},
	// Orders: sales report unwinds items per book
	{
		CollectionName: ordersCollection,
		IndexModel: mongo.IndexModel{
			Keys:    bson.D{{Key: "order_items.book_id", Value: 1}},
			Options: options.Index().SetName("idx_order_books"),
		},
	},
}

func (d *DB) EnsureIndexes(ctx context.Context) error {
	for _, idxConfig := range requiredIndexes {
		indexName, err := d.Collection(idxConfig.CollectionName).Indexes().CreateOne(ctx, idxConfig.IndexModel)
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idxConfig.CollectionName, err)
		}
		slog.Debug("index ready", "index", indexName, "collection", idxConfig.CollectionName)
	}
	slog.Info("mongo indexes ensured", "count", len(requiredIndexes))
	return nil
}
