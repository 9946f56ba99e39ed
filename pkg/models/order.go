package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order
var OrderStatuses = []OrderStatus{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

type CreateOrderRequest struct {
	ShippingAddress ShippingAddress `json:"shipping_address" validate:"required"`
}

// OrderItem is the quantity snapshot taken from the cart at checkout
type OrderItem struct {
	BookID   bson.ObjectID `json:"book_id" bson:"book_id"`
	Quantity int           `json:"quantity" bson:"quantity" validate:"gte=1"`
}

// ShippingAddress represents where an order is delivered
type ShippingAddress struct {
	Address    string `json:"address" bson:"address" validate:"required"`
	City       string `json:"city" bson:"city" validate:"required"`
	PostalCode string `json:"postal_code" bson:"postal_code" validate:"required"`
	Country    string `json:"country" bson:"country" validate:"required"`
}

// Timeline tracks when an order entered each status
type Timeline struct {
	OrderedAt    time.Time  `json:"ordered_at" bson:"ordered_at"`
	ProcessingAt *time.Time `json:"processing_at,omitempty" bson:"processing_at,omitempty"`
	ShippedAt    *time.Time `json:"shipped_at,omitempty" bson:"shipped_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

// Order represents a placed order. Only Status, Timeline and UpdatedAt change
// after creation.
type Order struct {
	ID              bson.ObjectID   `json:"id" bson:"_id,omitempty"`
	UserID          bson.ObjectID   `json:"user_id" bson:"user_id"`
	Items           []OrderItem     `json:"order_items" bson:"order_items" validate:"required,min=1,dive"`
	ShippingAddress ShippingAddress `json:"shipping_address" bson:"shipping_address"`
	TotalAmount     float64         `json:"total_amount" bson:"total_amount" validate:"gte=0"`
	Status          OrderStatus     `json:"status" bson:"status"`
	Timeline        Timeline        `json:"timeline" bson:"timeline"`
	CreatedAt       time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" bson:"updated_at"`
}

// SetTimestamps sets created_at and updated_at timestamps
func (o *Order) SetTimestamps() {
	now := time.Now()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
		o.Timeline.OrderedAt = now
	}
	o.UpdatedAt = now
}

// ApplyStatus sets the status and stamps the matching timeline entry
func (o *Order) ApplyStatus(status OrderStatus, at time.Time) {
	o.Status = status
	o.UpdatedAt = at
	o.Timeline.Stamp(status, at)
}

// Stamp records the first time the order entered status
func (t *Timeline) Stamp(status OrderStatus, at time.Time) {
	switch status {
	case StatusProcessing:
		if t.ProcessingAt == nil {
			t.ProcessingAt = &at
		}
	case StatusShipped:
		if t.ShippedAt == nil {
			t.ShippedAt = &at
		}
	case StatusDelivered:
		if t.DeliveredAt == nil {
			t.DeliveredAt = &at
		}
	case StatusCancelled:
		if t.CancelledAt == nil {
			t.CancelledAt = &at
		}
	}
}

// TimelineField is the bson path stamped when entering status, or "" for pending
func TimelineField(status OrderStatus) string {
	switch status {
	case StatusProcessing:
		return "timeline.processing_at"
	case StatusShipped:
		return "timeline.shipped_at"
	case StatusDelivered:
		return "timeline.delivered_at"
	case StatusCancelled:
		return "timeline.cancelled_at"
	}
	return ""
}

// GetItemCount returns the total number of copies in the order
func (o *Order) GetItemCount() int {
	var count int
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	out := *o
	out.Items = append([]OrderItem(nil), o.Items...)
	return &out
}

// OrderItemView is an order item enriched with book display fields. Book is
// nil when the book has since been removed from the catalog.
type OrderItemView struct {
	BookID   bson.ObjectID `json:"book_id"`
	Book     *BookSummary  `json:"book"`
	Quantity int           `json:"quantity"`
}

// OrderView is the enriched order returned to clients
type OrderView struct {
	ID              bson.ObjectID   `json:"id"`
	User            *UserSummary    `json:"user"`
	Items           []OrderItemView `json:"order_items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	TotalAmount     float64         `json:"total_amount"`
	Status          OrderStatus     `json:"status"`
	Timeline        Timeline        `json:"timeline"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" validate:"required"`
}

// OrderFilter narrows admin order listings
type OrderFilter struct {
	Status OrderStatus
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps (page-1)*limit within int
	MaxPage = math.MaxInt / MaxLimit
)

// Page is a normalized page request
type Page struct {
	Page  int
	Limit int
}

// NewPage applies defaults, clamps limit to 1..MaxLimit and page to 1..MaxPage
func NewPage(page, limit int) Page {
	if page < 1 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) Skip() int {
	return (p.Page - 1) * p.Limit
}

// Pagination is returned alongside every paged listing
type Pagination struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalOrders int64 `json:"total_orders"`
	Limit       int   `json:"limit"`
}

func NewPagination(p Page, total int64) Pagination {
	return Pagination{
		CurrentPage: p.Page,
		TotalPages:  int(math.Ceil(float64(total) / float64(p.Limit))),
		TotalOrders: total,
		Limit:       p.Limit,
	}
}

// OrderPage is a page of enriched orders
type OrderPage struct {
	Orders     []OrderView `json:"orders"`
	Pagination Pagination  `json:"pagination"`
}
