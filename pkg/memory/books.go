package memory

import (
	"context"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

type Books struct{ s *Store }

var _ store.BookStore = (*Books)(nil)

func (r *Books) Create(ctx context.Context, b *models.Book) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = bson.NewObjectID()
	}
	b.SetTimestamps()
	r.s.books[b.ID] = *b
	return nil
}

func (r *Books) FindByID(ctx context.Context, id bson.ObjectID) (*models.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.books[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &b, nil
}

func (r *Books) FindByIDs(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]*models.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[bson.ObjectID]*models.Book, len(ids))
	for _, id := range ids {
		if b, ok := r.s.books[id]; ok {
			cp := b
			out[id] = &cp
		}
	}
	return out, nil
}

func (r *Books) Search(ctx context.Context, f models.BookFilter) ([]models.Book, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Book, 0)
	for _, b := range r.s.books {
		if f.Matches(&b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (r *Books) Update(ctx context.Context, id bson.ObjectID, req *models.UpdateBookRequest) (*models.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.books[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	req.Apply(&b)
	r.s.books[id] = b
	return &b, nil
}

func (r *Books) Delete(ctx context.Context, id bson.ObjectID) (*models.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.books[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	delete(r.s.books, id)
	return &b, nil
}

func (r *Books) AdjustStock(ctx context.Context, id bson.ObjectID, delta int) (*models.Book, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.books[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if b.Stock+delta < 0 {
		return nil, &models.InsufficientStockError{BookID: id, Title: b.Title, Available: b.Stock, Requested: -delta}
	}
	b.Stock += delta
	b.UpdatedAt = r.s.now()
	r.s.books[id] = b
	return &b, nil
}
