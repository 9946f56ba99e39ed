package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	booksCollection  = "books"
	ordersCollection = "orders"
	usersCollection  = "users"
)

// DB bundles the client with the application database
type DB struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect creates the client and verifies the server is reachable
func Connect(ctx context.Context, uri, database string) (*DB, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)

	clientOptions := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)
	client, err := mongo.Connect(clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create MongoDB client: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	slog.Info("connected to MongoDB", "database", database)
	return &DB{client: client, db: client.Database(database)}, nil
}

func (d *DB) Collection(name string) *mongo.Collection {
	return d.db.Collection(name)
}

func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx, readpref.Primary())
}

func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

func (d *DB) Books() *BookRepo {
	return &BookRepo{coll: d.Collection(booksCollection)}
}

func (d *DB) Orders() *OrderRepo {
	return &OrderRepo{coll: d.Collection(ordersCollection), books: d.Collection(booksCollection)}
}

func (d *DB) Users() *UserRepo {
	return &UserRepo{coll: d.Collection(usersCollection)}
}
