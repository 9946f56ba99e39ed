package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCartStore_UpsertKeepsInsertionOrderAndMergesQuantity(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestClient(t)
	carts := NewCartStore(rdb, time.Hour)
	user := bson.NewObjectID()
	a, b := bson.NewObjectID(), bson.NewObjectID()

	got, err := carts.Get(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = carts.UpsertLineItem(ctx, user, a, 2)
	require.NoError(t, err)
	_, err = carts.UpsertLineItem(ctx, user, b, 1)
	require.NoError(t, err)
	cart, err := carts.UpsertLineItem(ctx, user, a, 3)
	require.NoError(t, err)

	require.Len(t, cart.Items, 2)
	assert.Equal(t, a, cart.Items[0].BookID)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, b, cart.Items[1].BookID)
	assert.Equal(t, 1, cart.Items[1].Quantity)
	assert.False(t, cart.UpdatedAt.IsZero())
}

func TestCartStore_SetRemoveDelete(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestClient(t)
	carts := NewCartStore(rdb, time.Hour)
	user := bson.NewObjectID()
	a, b := bson.NewObjectID(), bson.NewObjectID()

	_, err := carts.SetQuantity(ctx, user, a, 4)
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = carts.UpsertLineItem(ctx, user, a, 1)
	require.NoError(t, err)
	_, err = carts.UpsertLineItem(ctx, user, b, 1)
	require.NoError(t, err)

	cart, err := carts.SetQuantity(ctx, user, a, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	cart, err = carts.RemoveLineItem(ctx, user, a)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, b, cart.Items[0].BookID)

	_, err = carts.RemoveLineItem(ctx, user, a)
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, carts.Delete(ctx, user))
	cart, err = carts.Get(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, cart)
}

func TestCartStore_ConcurrentAddsAreNotLost(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestClient(t)
	carts := NewCartStore(rdb, time.Hour)
	user, book := bson.NewObjectID(), bson.NewObjectID()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := carts.UpsertLineItem(ctx, user, book, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart, err := carts.Get(ctx, user)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestCartStore_Expires(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestClient(t)
	carts := NewCartStore(rdb, time.Minute)
	user := bson.NewObjectID()

	_, err := carts.UpsertLineItem(ctx, user, bson.NewObjectID(), 1)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	cart, err := carts.Get(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, cart)
}

func TestBookCache_RoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	_, rdb := newTestClient(t)
	cache := NewBookCache(rdb, time.Hour)
	book := &models.Book{ID: bson.NewObjectID(), Title: "Middlemarch", Price: 9.99, Stock: 3}

	got, err := cache.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.Set(ctx, book))
	got, err = cache.Get(ctx, book.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Middlemarch", got.Title)
	assert.Equal(t, 3, got.Stock)

	require.NoError(t, cache.Invalidate(ctx, book.ID))
	got, err = cache.Get(ctx, book.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIdempotencyStore(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newTestClient(t)
	idem := NewIdempotencyStore(rdb, time.Minute)

	ok, err := idem.TryLock(ctx, "order", "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = idem.TryLock(ctx, "order", "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	_, found, err := idem.Recall(ctx, "order", "abc")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, idem.Remember(ctx, "order", "abc", "65f0c0ffee"))
	val, found, err := idem.Recall(ctx, "order", "abc")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "65f0c0ffee", val)

	require.NoError(t, idem.Release(ctx, "order", "abc"))
	ok, err = idem.TryLock(ctx, "order", "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, found, err = idem.Recall(ctx, "order", "abc")
	require.NoError(t, err)
	assert.False(t, found)
}
