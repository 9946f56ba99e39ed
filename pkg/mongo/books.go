package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

type BookRepo struct {
	coll *mongo.Collection
}

var _ store.BookStore = (*BookRepo)(nil)

func (r *BookRepo) Create(ctx context.Context, b *models.Book) error {
	if b.ID.IsZero() {
		b.ID = bson.NewObjectID()
	}
	b.SetTimestamps()
	if _, err := r.coll.InsertOne(ctx, b); err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

func (r *BookRepo) FindByID(ctx context.Context, id bson.ObjectID) (*models.Book, error) {
	var book models.Book
	if err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&book); err != nil {
		return nil, notFound(err)
	}
	return &book, nil
}

func (r *BookRepo) FindByIDs(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]*models.Book, error) {
	out := make(map[bson.ObjectID]*models.Book, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	books, err := findAll[models.Book](ctx, r.coll, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return nil, fmt.Errorf("failed to load books: %w", err)
	}
	for i := range books {
		out[books[i].ID] = &books[i]
	}
	return out, nil
}

func (r *BookRepo) Search(ctx context.Context, f models.BookFilter) ([]models.Book, error) {
	filter := bson.D{}
	if f.Title != "" {
		filter = append(filter, bson.E{Key: "title", Value: containsInsensitive(f.Title)})
	}
	if f.Author != "" {
		filter = append(filter, bson.E{Key: "author", Value: containsInsensitive(f.Author)})
	}
	if f.Category != "" {
		filter = append(filter, bson.E{Key: "category", Value: containsInsensitive(f.Category)})
	}
	books, err := findAll[models.Book](ctx, r.coll, filter, options.Find().SetSort(bson.D{{Key: "title", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to search books: %w", err)
	}
	return books, nil
}

func (r *BookRepo) Update(ctx context.Context, id bson.ObjectID, req *models.UpdateBookRequest) (*models.Book, error) {
	set := bson.D{{Key: "updated_at", Value: time.Now()}}
	if req.Title != nil {
		set = append(set, bson.E{Key: "title", Value: *req.Title})
	}
	if req.Author != nil {
		set = append(set, bson.E{Key: "author", Value: *req.Author})
	}
	if req.Description != nil {
		set = append(set, bson.E{Key: "description", Value: *req.Description})
	}
	if req.Price != nil {
		set = append(set, bson.E{Key: "price", Value: *req.Price})
	}
	if req.Stock != nil {
		set = append(set, bson.E{Key: "stock", Value: *req.Stock})
	}
	if req.Category != nil {
		set = append(set, bson.E{Key: "category", Value: *req.Category})
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var book models.Book
	err := r.coll.FindOneAndUpdate(ctx, bson.D{{Key: "_id", Value: id}}, bson.D{{Key: "$set", Value: set}}, opts).Decode(&book)
	if err != nil {
		return nil, notFound(err)
	}
	return &book, nil
}

func (r *BookRepo) Delete(ctx context.Context, id bson.ObjectID) (*models.Book, error) {
	var book models.Book
	if err := r.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&book); err != nil {
		return nil, notFound(err)
	}
	return &book, nil
}

// AdjustStock applies $inc in a single document update. Decrements carry a
// stock >= quantity guard so concurrent orders can never oversell.
func (r *BookRepo) AdjustStock(ctx context.Context, id bson.ObjectID, delta int) (*models.Book, error) {
	filter := bson.D{{Key: "_id", Value: id}}
	if delta < 0 {
		filter = append(filter, bson.E{Key: "stock", Value: bson.D{{Key: "$gte", Value: -delta}}})
	}
	update := bson.D{
		{Key: "$inc", Value: bson.D{{Key: "stock", Value: delta}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: time.Now()}}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var book models.Book
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&book)
	if err == nil {
		return &book, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	// the guard or the id did not match; tell the two apart
	current, ferr := r.FindByID(ctx, id)
	if ferr != nil {
		return nil, ferr
	}
	return nil, &models.InsufficientStockError{BookID: id, Title: current.Title, Available: current.Stock, Requested: -delta}
}
