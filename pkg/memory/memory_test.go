package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
)

func TestAdjustStock_GuardedDecrementUnderContention(t *testing.T) {
	ctx := context.Background()
	books := NewStore().Books()
	b := &models.Book{Title: "Dune", Price: 12.5, Stock: 10}
	require.NoError(t, books.Create(ctx, b))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		denied int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := books.AdjustStock(ctx, b.ID, -1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if errors.Is(err, models.ErrInsufficientStock) {
				denied++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	assert.Equal(t, 15, denied)
	got, err := books.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestAdjustStock_ReportsAvailableAndRequested(t *testing.T) {
	ctx := context.Background()
	books := NewStore().Books()
	b := &models.Book{Title: "Emma", Stock: 2}
	require.NoError(t, books.Create(ctx, b))

	_, err := books.AdjustStock(ctx, b.ID, -3)
	var ise *models.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, 2, ise.Available)
	assert.Equal(t, 3, ise.Requested)
	assert.Equal(t, "Emma", ise.Title)

	_, err = books.AdjustStock(ctx, bson.NewObjectID(), 1)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSearch_CaseInsensitiveSubstring(t *testing.T) {
	ctx := context.Background()
	books := NewStore().Books()
	require.NoError(t, books.Create(ctx, &models.Book{Title: "The Hobbit", Author: "J.R.R. Tolkien", Category: "Fantasy"}))
	require.NoError(t, books.Create(ctx, &models.Book{Title: "Hyperion", Author: "Dan Simmons", Category: "Science Fiction"}))

	got, err := books.Search(ctx, models.BookFilter{Title: "hob"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "The Hobbit", got[0].Title)

	got, err = books.Search(ctx, models.BookFilter{Category: "FICTION"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Hyperion", got[0].Title)

	got, err = books.Search(ctx, models.BookFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestOrders_UpdateStatusIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	orders := NewStore().Orders()
	o := &models.Order{UserID: bson.NewObjectID(), Status: models.StatusPending, Items: []models.OrderItem{{BookID: bson.NewObjectID(), Quantity: 1}}}
	require.NoError(t, orders.Create(ctx, o))

	got, err := orders.UpdateStatus(ctx, o.ID, models.StatusPending, models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.NotNil(t, got.Timeline.CancelledAt)

	_, err = orders.UpdateStatus(ctx, o.ID, models.StatusPending, models.StatusCancelled)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestOrders_PaginationNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	user := bson.NewObjectID()
	orders := s.Orders()
	for i := 0; i < 15; i++ {
		o := &models.Order{UserID: user, Status: models.StatusPending, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, orders.Create(ctx, o))
	}

	page1, total, err := orders.FindByUser(ctx, user, models.NewPage(1, 10))
	require.NoError(t, err)
	assert.EqualValues(t, 15, total)
	require.Len(t, page1, 10)
	assert.True(t, page1[0].CreatedAt.After(page1[9].CreatedAt))

	page2, _, err := orders.FindByUser(ctx, user, models.NewPage(2, 10))
	require.NoError(t, err)
	assert.Len(t, page2, 5)

	none, _, err := orders.FindByUser(ctx, bson.NewObjectID(), models.NewPage(1, 10))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestUsers_DuplicateEmailConflict(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()
	require.NoError(t, users.Create(ctx, &models.User{Email: "Ada@Example.com", Role: models.RoleUser}))
	err := users.Create(ctx, &models.User{Email: "ada@example.com ", Role: models.RoleUser})
	assert.ErrorIs(t, err, models.ErrConflict)

	u, err := users.FindByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
}

func TestIdempotency_LockExpires(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	idem := s.Idempotency(time.Minute)

	ok, err := idem.TryLock(ctx, "order", "k1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = idem.TryLock(ctx, "order", "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, idem.Remember(ctx, "order", "k1", "abc"))
	v, found, err := idem.Recall(ctx, "order", "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abc", v)

	now = now.Add(2 * time.Minute)
	ok, err = idem.TryLock(ctx, "order", "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	_, found, _ = idem.Recall(ctx, "order", "k1")
	assert.False(t, found)
}
