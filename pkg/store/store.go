// Package store declares the persistence contracts used by the services.
// pkg/mongo and pkg/redis provide the production implementations and
// pkg/memory the in-process ones.
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
)

// BookStore is the catalog
type BookStore interface {
	Create(ctx context.Context, b *models.Book) error
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Book, error)
	// FindByIDs returns the books that exist; missing ids are simply absent
	FindByIDs(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]*models.Book, error)
	Search(ctx context.Context, f models.BookFilter) ([]models.Book, error)
	Update(ctx context.Context, id bson.ObjectID, req *models.UpdateBookRequest) (*models.Book, error)
	Delete(ctx context.Context, id bson.ObjectID) (*models.Book, error)
	// AdjustStock adds delta to the stock. A negative delta is applied only
	// if the stock stays non-negative, otherwise ErrInsufficientStock.
	AdjustStock(ctx context.Context, id bson.ObjectID, delta int) (*models.Book, error)
}

// CartStore holds one cart per user. Get returns (nil, nil) when the user
// has no cart.
type CartStore interface {
	Get(ctx context.Context, userID bson.ObjectID) (*models.Cart, error)
	UpsertLineItem(ctx context.Context, userID, bookID bson.ObjectID, qty int) (*models.Cart, error)
	SetQuantity(ctx context.Context, userID, bookID bson.ObjectID, qty int) (*models.Cart, error)
	RemoveLineItem(ctx context.Context, userID, bookID bson.ObjectID) (*models.Cart, error)
	Delete(ctx context.Context, userID bson.ObjectID) error
}

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Order, error)
	FindByUser(ctx context.Context, userID bson.ObjectID, p models.Page) ([]models.Order, int64, error)
	FindAll(ctx context.Context, f models.OrderFilter, p models.Page) ([]models.Order, int64, error)
	// UpdateStatus moves the order from -> to only if its status is still
	// from. ErrConflict is returned when another writer got there first.
	UpdateStatus(ctx context.Context, id bson.ObjectID, from, to models.OrderStatus) (*models.Order, error)
	Summary(ctx context.Context, topN int) (*models.SalesSummary, error)
}

type UserStore interface {
	// Create fails with ErrConflict when the email is taken
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id bson.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Update(ctx context.Context, u *models.User) error
	SetRefreshToken(ctx context.Context, id bson.ObjectID, token string) error
	Delete(ctx context.Context, id bson.ObjectID) error
}

// BookCache is a read-through cache in front of BookStore.FindByID. Get
// returns (nil, nil) on a miss.
type BookCache interface {
	Get(ctx context.Context, id bson.ObjectID) (*models.Book, error)
	Set(ctx context.Context, b *models.Book) error
	Invalidate(ctx context.Context, ids ...bson.ObjectID) error
}

// IdempotencyStore guards order placement against client retries. Keys
// expire after a TTL fixed by the implementation.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	Release(ctx context.Context, scope, key string) error
}

// Pinger is implemented by backends that can report their health
type Pinger interface {
	Ping(ctx context.Context) error
}
