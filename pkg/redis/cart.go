package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

// CartStore keeps carts in Redis hashes. Mutations run under WATCH so two
// concurrent adds for the same user never lose an update.
type CartStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCartStore(rdb *redis.Client, ttl time.Duration) *CartStore {
	return &CartStore{rdb: rdb, ttl: ttl}
}

var _ store.CartStore = (*CartStore)(nil)

func (s *CartStore) Get(ctx context.Context, userID bson.ObjectID) (*models.Cart, error) {
	fields, err := s.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	order, err := s.rdb.LRange(ctx, cartOrderKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load cart order: %w", err)
	}
	return decodeCart(userID, fields, order), nil
}

func decodeCart(userID bson.ObjectID, fields map[string]string, order []string) *models.Cart {
	cart := &models.Cart{UserID: userID, Items: make([]models.CartItem, 0, len(order))}
	if ts, ok := fields[cartUpdatedField]; ok {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			cart.UpdatedAt = t
		}
	}
	seen := make(map[bson.ObjectID]bool, len(order))
	for _, hex := range order {
		id, err := bson.ObjectIDFromHex(hex)
		if err != nil || seen[id] {
			continue
		}
		qty, err := strconv.Atoi(fields[cartItemField(id)])
		if err != nil || qty <= 0 {
			continue
		}
		seen[id] = true
		cart.Items = append(cart.Items, models.CartItem{BookID: id, Quantity: qty})
	}
	// items missing from the order list are appended so nothing is dropped
	for field, raw := range fields {
		id, ok := parseCartItemField(field)
		if !ok || seen[id] {
			continue
		}
		if qty, err := strconv.Atoi(raw); err == nil && qty > 0 {
			cart.Items = append(cart.Items, models.CartItem{BookID: id, Quantity: qty})
		}
	}
	return cart
}

// mutate runs fn inside WATCH on the cart keys, retrying when another
// client changed the cart between read and commit.
func (s *CartStore) mutate(ctx context.Context, userID bson.ObjectID, fn func(tx *redis.Tx) (func(redis.Pipeliner), error)) error {
	key, orderKey := cartKey(userID), cartOrderKey(userID)
	txf := func(tx *redis.Tx) error {
		queue, err := fn(tx)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			queue(pipe)
			pipe.HSet(ctx, key, cartUpdatedField, time.Now().UTC().Format(time.RFC3339Nano))
			if s.ttl > 0 {
				pipe.Expire(ctx, key, s.ttl)
				pipe.Expire(ctx, orderKey, s.ttl)
			}
			return nil
		})
		return err
	}
	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key, orderKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: cart update for %s kept racing", models.ErrConflict, userID.Hex())
}

func (s *CartStore) UpsertLineItem(ctx context.Context, userID, bookID bson.ObjectID, qty int) (*models.Cart, error) {
	field := cartItemField(bookID)
	err := s.mutate(ctx, userID, func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		exists, err := tx.HExists(ctx, cartKey(userID), field).Result()
		if err != nil {
			return nil, err
		}
		return func(pipe redis.Pipeliner) {
			pipe.HIncrBy(ctx, cartKey(userID), field, int64(qty))
			if !exists {
				pipe.RPush(ctx, cartOrderKey(userID), bookID.Hex())
			}
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add to cart: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *CartStore) SetQuantity(ctx context.Context, userID, bookID bson.ObjectID, qty int) (*models.Cart, error) {
	field := cartItemField(bookID)
	err := s.mutate(ctx, userID, func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		exists, err := tx.HExists(ctx, cartKey(userID), field).Result()
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, models.ErrNotFound
		}
		return func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, cartKey(userID), field, qty)
		}, nil
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *CartStore) RemoveLineItem(ctx context.Context, userID, bookID bson.ObjectID) (*models.Cart, error) {
	field := cartItemField(bookID)
	err := s.mutate(ctx, userID, func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		exists, err := tx.HExists(ctx, cartKey(userID), field).Result()
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, models.ErrNotFound
		}
		return func(pipe redis.Pipeliner) {
			pipe.HDel(ctx, cartKey(userID), field)
			pipe.LRem(ctx, cartOrderKey(userID), 0, bookID.Hex())
		}, nil
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to remove cart item: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *CartStore) Delete(ctx context.Context, userID bson.ObjectID) error {
	if err := s.rdb.Del(ctx, cartKey(userID), cartOrderKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
