package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Book represents a title in the store catalog
type Book struct {
	ID          bson.ObjectID `json:"id" bson:"_id,omitempty"`
	Title       string        `json:"title" bson:"title" validate:"required,max=300"`
	Author      string        `json:"author" bson:"author" validate:"max=200"`
	Description string        `json:"description" bson:"description" validate:"max=4000"`
	Price       float64       `json:"price" bson:"price" validate:"gte=0"`
	Stock       int           `json:"stock" bson:"stock" validate:"gte=0"`
	Category    string        `json:"category" bson:"category" validate:"max=100"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" bson:"updated_at"`
}

// SetTimestamps sets created_at on first call and always updates updated_at
func (b *Book) SetTimestamps() {
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// InStock reports whether qty copies can be taken from the current stock
func (b *Book) InStock(qty int) bool {
	return b.Stock >= qty
}

// Summary returns the display fields embedded in cart and order responses
func (b *Book) Summary() *BookSummary {
	return &BookSummary{
		ID:       b.ID,
		Title:    b.Title,
		Author:   b.Author,
		Category: b.Category,
		Price:    b.Price,
	}
}

// BookSummary is the reduced book shape used when enriching orders
type BookSummary struct {
	ID       bson.ObjectID `json:"id"`
	Title    string        `json:"title"`
	Author   string        `json:"author"`
	Category string        `json:"category"`
	Price    float64       `json:"price"`
}

// CreateBookRequest is the payload for adding a book. Price is a pointer so a
// missing price can be told apart from a free book.
type CreateBookRequest struct {
	Title       string   `json:"title" validate:"required,max=300"`
	Author      string   `json:"author" validate:"max=200"`
	Description string   `json:"description" validate:"max=4000"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	Category    string   `json:"category" validate:"max=100"`
}

func (req *CreateBookRequest) ToBook() *Book {
	book := &Book{
		ID:          bson.NewObjectID(),
		Title:       strings.TrimSpace(req.Title),
		Author:      strings.TrimSpace(req.Author),
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
	}
	if req.Price != nil {
		book.Price = *req.Price
	}
	if req.Stock != nil {
		book.Stock = *req.Stock
	}
	book.SetTimestamps()
	return book
}

// UpdateBookRequest is a partial update; nil fields are left untouched
type UpdateBookRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=1,max=300"`
	Author      *string  `json:"author" validate:"omitempty,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=4000"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	Category    *string  `json:"category" validate:"omitempty,max=100"`
}

// Empty reports whether the request changes nothing
func (req *UpdateBookRequest) Empty() bool {
	return req.Title == nil && req.Author == nil && req.Description == nil &&
		req.Price == nil && req.Stock == nil && req.Category == nil
}

// Apply copies the set fields onto b
func (req *UpdateBookRequest) Apply(b *Book) {
	if req.Title != nil {
		b.Title = strings.TrimSpace(*req.Title)
	}
	if req.Author != nil {
		b.Author = strings.TrimSpace(*req.Author)
	}
	if req.Description != nil {
		b.Description = *req.Description
	}
	if req.Price != nil {
		b.Price = *req.Price
	}
	if req.Stock != nil {
		b.Stock = *req.Stock
	}
	if req.Category != nil {
		b.Category = strings.TrimSpace(*req.Category)
	}
	b.SetTimestamps()
}

// BookFilter narrows catalog searches. Empty fields match everything and
// matching is a case-insensitive substring test.
type BookFilter struct {
	Title    string `form:"title"`
	Author   string `form:"author"`
	Category string `form:"category"`
}

func (f BookFilter) Matches(b *Book) bool {
	return containsFold(b.Title, f.Title) &&
		containsFold(b.Author, f.Author) &&
		containsFold(b.Category, f.Category)
}

func containsFold(s, sub string) bool {
	if sub == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
