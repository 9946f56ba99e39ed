package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Cart models for Redis-backed per-user storage

type CartItem struct {
	BookID   bson.ObjectID `json:"book_id"`
	Quantity int           `json:"quantity"`
}

// Cart is keyed by its owner; items keep insertion order
type Cart struct {
	UserID    bson.ObjectID `json:"user_id"`
	Items     []CartItem    `json:"items"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (c *Cart) indexOf(bookID bson.ObjectID) int {
	for i := range c.Items {
		if c.Items[i].BookID == bookID {
			return i
		}
	}
	return -1
}

// Upsert adds qty to an existing line or appends a new one
func (c *Cart) Upsert(bookID bson.ObjectID, qty int) {
	if i := c.indexOf(bookID); i >= 0 {
		c.Items[i].Quantity += qty
	} else {
		c.Items = append(c.Items, CartItem{BookID: bookID, Quantity: qty})
	}
	c.UpdatedAt = time.Now()
}

// SetQuantity replaces the quantity of an existing line
func (c *Cart) SetQuantity(bookID bson.ObjectID, qty int) bool {
	i := c.indexOf(bookID)
	if i < 0 {
		return false
	}
	c.Items[i].Quantity = qty
	c.UpdatedAt = time.Now()
	return true
}

// Remove drops the line for bookID
func (c *Cart) Remove(bookID bson.ObjectID) bool {
	i := c.indexOf(bookID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.UpdatedAt = time.Now()
	return true
}

func (c *Cart) BookIDs() []bson.ObjectID {
	ids := make([]bson.ObjectID, 0, len(c.Items))
	for _, it := range c.Items {
		ids = append(ids, it.BookID)
	}
	return ids
}

func (c *Cart) ItemCount() int {
	var n int
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// Clone returns a deep copy so stores never hand out shared slices
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = append([]CartItem(nil), c.Items...)
	return &out
}

// CartLineView is a cart line joined with its book
type CartLineView struct {
	Book     *Book   `json:"book"`
	Quantity int     `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

type CartView struct {
	UserID     bson.ObjectID  `json:"user_id"`
	Items      []CartLineView `json:"items"`
	ItemCount  int            `json:"item_count"`
	TotalValue float64        `json:"total_value"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

type AddToCartRequest struct {
	BookID   string `json:"book_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}
