package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

// BookCache stores single books as JSON under book:{id}
type BookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewBookCache(rdb *redis.Client, ttl time.Duration) *BookCache {
	return &BookCache{rdb: rdb, ttl: ttl}
}

var _ store.BookCache = (*BookCache)(nil)

func (c *BookCache) Get(ctx context.Context, id bson.ObjectID) (*models.Book, error) {
	raw, err := c.rdb.Get(ctx, bookKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read book %s from cache: %w", id.Hex(), err)
	}
	var book models.Book
	if err := json.Unmarshal(raw, &book); err != nil {
		return nil, fmt.Errorf("failed to unmarshal book: %w", err)
	}
	return &book, nil
}

func (c *BookCache) Set(ctx context.Context, b *models.Book) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal book %s: %w", b.ID.Hex(), err)
	}
	if err := c.rdb.Set(ctx, bookKey(b.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache book %s: %w", b.ID.Hex(), err)
	}
	return nil
}

func (c *BookCache) Invalidate(ctx context.Context, ids ...bson.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, bookKey(id))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to remove books from cache: %w", err)
	}
	return nil
}
