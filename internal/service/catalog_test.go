package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/memory"
	"bookhaven.ca/bookstore/api/pkg/models"
)

type mapCache struct {
	mu    sync.Mutex
	books map[bson.ObjectID]models.Book
	fail  bool
}

func newMapCache() *mapCache {
	return &mapCache{books: make(map[bson.ObjectID]models.Book)}
}

func (c *mapCache) Get(_ context.Context, id bson.ObjectID) (*models.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, errors.New("cache down")
	}
	b, ok := c.books[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (c *mapCache) Set(_ context.Context, b *models.Book) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.books[b.ID] = *b
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, ids ...bson.ObjectID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.books, id)
	}
	return nil
}

func TestCatalog_ReadThroughCache(t *testing.T) {
	ctx := context.Background()
	cache := newMapCache()
	catalog := NewCatalogService(memory.NewStore().Books(), cache)
	price, stock := 9.99, 4
	b, err := catalog.Create(ctx, &models.CreateBookRequest{Title: "Emma", Price: &price, Stock: &stock})
	require.NoError(t, err)

	_, cached, err := catalog.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, cached)
	_, cached, err = catalog.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, cached)

	_, err = catalog.AdjustStock(ctx, b.ID, -1)
	require.NoError(t, err)
	got, cached, err := catalog.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 3, got.Stock)

	cache.fail = true
	got, cached, err = catalog.Get(ctx, b.ID)
	require.NoError(t, err, "cache errors fall through to the store")
	assert.False(t, cached)
	assert.Equal(t, "Emma", got.Title)
}

func TestCatalog_CreateAndUpdateValidation(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalogService(memory.NewStore().Books(), nil)

	_, err := catalog.Create(ctx, &models.CreateBookRequest{Title: "No Price"})
	assert.ErrorIs(t, err, models.ErrValidation)

	negative := -1.0
	_, err = catalog.Create(ctx, &models.CreateBookRequest{Title: "Negative", Price: &negative})
	assert.ErrorIs(t, err, models.ErrValidation)

	price := 5.0
	b, err := catalog.Create(ctx, &models.CreateBookRequest{Title: "Ok", Price: &price})
	require.NoError(t, err)
	assert.Equal(t, 0, b.Stock)

	_, err = catalog.Update(ctx, b.ID, &models.UpdateBookRequest{})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = catalog.Update(ctx, bson.NewObjectID(), &models.UpdateBookRequest{Title: ptr("x")})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCartService_ViewAndErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.user(t, "reader@example.com")
	a := f.book(t, "A", 10, 5)
	b := f.book(t, "B", 2.5, 5)

	_, err := f.carts.Get(ctx, user.UserID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = f.carts.Add(ctx, user.UserID, &models.AddToCartRequest{BookID: "nope", Quantity: 1})
	assert.ErrorIs(t, err, models.ErrValidation)
	_, err = f.carts.Add(ctx, user.UserID, &models.AddToCartRequest{BookID: bson.NewObjectID().Hex(), Quantity: 1})
	assert.ErrorIs(t, err, models.ErrNotFound)

	f.addToCart(t, user, a, 1)
	f.addToCart(t, user, b, 2)
	f.addToCart(t, user, a, 2)

	view, err := f.carts.Get(ctx, user.UserID)
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	assert.Equal(t, "A", view.Items[0].Book.Title)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, 5, view.ItemCount)
	assert.Equal(t, 35.0, view.TotalValue)

	_, err = f.carts.UpdateQuantity(ctx, user.UserID, bson.NewObjectID(), &models.UpdateCartItemRequest{Quantity: 1})
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.carts.UpdateQuantity(ctx, user.UserID, a.ID, &models.UpdateCartItemRequest{Quantity: 0})
	assert.ErrorIs(t, err, models.ErrValidation)

	view, err = f.carts.Remove(ctx, user.UserID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, view.TotalValue)
}

type stubNarrator struct {
	text string
	err  error
}

func (s stubNarrator) Enabled() bool { return true }

func (s stubNarrator) SalesNarrative(context.Context, *models.SalesSummary) (string, error) {
	return s.text, s.err
}

func TestReportService_Sales(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.user(t, "reader@example.com")
	a := f.book(t, "A", 10, 10)
	f.addToCart(t, user, a, 3)
	_, err := f.orders.CreateOrder(ctx, user.UserID, address(), "")
	require.NoError(t, err)

	plain, err := NewReportService(f.store.Orders(), nil, 0).Sales(ctx, true)
	require.NoError(t, err)
	assert.False(t, plain.AIEnabled)
	assert.Equal(t, int64(1), plain.Summary.TotalOrders)
	assert.Equal(t, 30.0, plain.Summary.Revenue)
	require.Len(t, plain.Summary.TopBooks, 1)
	assert.Equal(t, "A", plain.Summary.TopBooks[0].Title)

	withAI, err := NewReportService(f.store.Orders(), stubNarrator{text: "Sales are steady."}, 5).Sales(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "Sales are steady.", withAI.AIInsights)

	failed, err := NewReportService(f.store.Orders(), stubNarrator{err: errors.New("quota")}, 5).Sales(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, failed.AIInsights)
	assert.Contains(t, failed.AIError, "quota")
}

func ptr[T any](v T) *T { return &v }
