// Package memory implements the store contracts in process. It backs the
// "memory" store driver and the service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
)

// Store is the shared state behind every in-memory repository. A single
// mutex covers all collections.
type Store struct {
	mu     sync.RWMutex
	books  map[bson.ObjectID]models.Book
	orders map[bson.ObjectID]models.Order
	users  map[bson.ObjectID]models.User
	carts  map[bson.ObjectID]*models.Cart
	idemp  map[string]idempEntry
	now    func() time.Time
}

type idempEntry struct {
	value   string
	expires time.Time
}

func NewStore() *Store {
	return &Store{
		books:  make(map[bson.ObjectID]models.Book),
		orders: make(map[bson.ObjectID]models.Order),
		users:  make(map[bson.ObjectID]models.User),
		carts:  make(map[bson.ObjectID]*models.Cart),
		idemp:  make(map[string]idempEntry),
		now:    time.Now,
	}
}

func (s *Store) Books() *Books             { return &Books{s: s} }
func (s *Store) Orders() *Orders           { return &Orders{s: s} }
func (s *Store) Users() *Users             { return &Users{s: s} }
func (s *Store) Carts() *Carts             { return &Carts{s: s} }
func (s *Store) Idempotency(ttl time.Duration) *Idempotency {
	return &Idempotency{s: s, ttl: ttl}
}

func (s *Store) Ping(context.Context) error { return nil }
