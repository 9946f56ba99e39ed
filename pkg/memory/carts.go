package memory

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

type Carts struct{ s *Store }

var _ store.CartStore = (*Carts)(nil)

func (r *Carts) Get(ctx context.Context, userID bson.ObjectID) (*models.Cart, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.carts[userID].Clone(), nil
}

func (r *Carts) UpsertLineItem(ctx context.Context, userID, bookID bson.ObjectID, qty int) (*models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok {
		c = &models.Cart{UserID: userID}
		r.s.carts[userID] = c
	}
	c.Upsert(bookID, qty)
	return c.Clone(), nil
}

func (r *Carts) SetQuantity(ctx context.Context, userID, bookID bson.ObjectID, qty int) (*models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok || !c.SetQuantity(bookID, qty) {
		return nil, models.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *Carts) RemoveLineItem(ctx context.Context, userID, bookID bson.ObjectID) (*models.Cart, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.carts[userID]
	if !ok || !c.Remove(bookID) {
		return nil, models.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *Carts) Delete(ctx context.Context, userID bson.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.carts, userID)
	return nil
}
