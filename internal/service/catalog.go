package service

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/internal/logging"
	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

// CatalogService manages books and keeps the read cache coherent with
// every write, including stock adjustments made by orders.
type CatalogService struct {
	books store.BookStore
	cache store.BookCache
}

// NewCatalogService accepts a nil cache, in which case reads always hit the store
func NewCatalogService(books store.BookStore, cache store.BookCache) *CatalogService {
	return &CatalogService{books: books, cache: cache}
}

func (s *CatalogService) Create(ctx context.Context, req *models.CreateBookRequest) (*models.Book, error) {
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	book := req.ToBook()
	if err := s.books.Create(ctx, book); err != nil {
		return nil, err
	}
	return book, nil
}

// Get returns the book and whether it was served from cache. Cache failures
// are logged and fall through to the store.
func (s *CatalogService) Get(ctx context.Context, id bson.ObjectID) (*models.Book, bool, error) {
	log := logging.FromCtx(ctx)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, id)
		if err != nil {
			log.Warn("book cache read failed", "book_id", id.Hex(), "err", err)
		} else if cached != nil {
			bookCacheLookups.WithLabelValues("hit").Inc()
			return cached, true, nil
		}
		bookCacheLookups.WithLabelValues("miss").Inc()
	}

	book, err := s.books.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, book); err != nil {
			log.Warn("book cache write failed", "book_id", id.Hex(), "err", err)
		}
	}
	return book, false, nil
}

func (s *CatalogService) Search(ctx context.Context, f models.BookFilter) ([]models.Book, error) {
	return s.books.Search(ctx, f)
}

func (s *CatalogService) FindByIDs(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]*models.Book, error) {
	return s.books.FindByIDs(ctx, ids)
}

func (s *CatalogService) Update(ctx context.Context, id bson.ObjectID, req *models.UpdateBookRequest) (*models.Book, error) {
	if req.Empty() {
		return nil, models.Invalid("body", "at least one field must be provided")
	}
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	book, err := s.books.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return book, nil
}

func (s *CatalogService) Delete(ctx context.Context, id bson.ObjectID) (*models.Book, error) {
	book, err := s.books.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return book, nil
}

// AdjustStock applies a guarded stock change and drops the cached copy
func (s *CatalogService) AdjustStock(ctx context.Context, id bson.ObjectID, delta int) (*models.Book, error) {
	book, err := s.books.AdjustStock(ctx, id, delta)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return book, nil
}

func (s *CatalogService) invalidate(ctx context.Context, ids ...bson.ObjectID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		logging.FromCtx(ctx).Warn("book cache invalidation failed", "count", len(ids), "err", err)
	}
}
