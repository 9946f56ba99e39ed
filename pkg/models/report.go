package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// BookSales aggregates the copies sold of one book
type BookSales struct {
	BookID   bson.ObjectID `json:"book_id" bson:"_id"`
	Title    string        `json:"title" bson:"title"`
	Quantity int           `json:"quantity" bson:"quantity"`
	Orders   int           `json:"orders" bson:"orders"`
}

// SalesSummary is the raw data behind the sales report. Revenue and top books
// only count orders that were not cancelled.
type SalesSummary struct {
	TotalOrders  int64                 `json:"total_orders"`
	StatusCounts map[OrderStatus]int64 `json:"status_counts"`
	Revenue      float64               `json:"revenue"`
	TopBooks     []BookSales           `json:"top_books"`
}

// SalesReport wraps the summary with an optional AI narrative
type SalesReport struct {
	Summary     SalesSummary `json:"summary"`
	AIInsights  string       `json:"ai_insights,omitempty"`
	AIEnabled   bool         `json:"ai_enabled"`
	AIError     string       `json:"ai_error,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
}
