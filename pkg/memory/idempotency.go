package memory

import (
	"context"
	"time"

	"bookhaven.ca/bookstore/api/pkg/store"
)

// Idempotency mirrors the Redis key layout so both drivers behave the same
type Idempotency struct {
	s   *Store
	ttl time.Duration
}

var _ store.IdempotencyStore = (*Idempotency)(nil)

func lockKey(scope, key string) string { return "idemp:" + scope + ":" + key }
func mapKey(scope, key string) string  { return "idemp:map:" + scope + ":" + key }

func (r *Idempotency) live(k string) (idempEntry, bool) {
	e, ok := r.s.idemp[k]
	if !ok {
		return e, false
	}
	if !e.expires.IsZero() && !r.s.now().Before(e.expires) {
		return e, false
	}
	return e, true
}

func (r *Idempotency) put(k, v string) {
	e := idempEntry{value: v}
	if r.ttl > 0 {
		e.expires = r.s.now().Add(r.ttl)
	}
	r.s.idemp[k] = e
}

func (r *Idempotency) TryLock(ctx context.Context, scope, key string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, held := r.live(lockKey(scope, key)); held {
		return false, nil
	}
	r.put(lockKey(scope, key), "1")
	return true, nil
}

func (r *Idempotency) Remember(ctx context.Context, scope, key, value string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.put(mapKey(scope, key), value)
	return nil
}

func (r *Idempotency) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.live(mapKey(scope, key))
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (r *Idempotency) Release(ctx context.Context, scope, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.idemp, lockKey(scope, key))
	return nil
}
