// Package events publishes order lifecycle notifications.
package events

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
)

type Type string

const (
	OrderCreated       Type = "order.created"
	OrderCancelled     Type = "order.cancelled"
	OrderStatusUpdated Type = "order.status_updated"
)

// OrderEvent is the message body. Items are the quantity snapshot so
// consumers can follow stock movements without reading the catalog.
type OrderEvent struct {
	Type           Type               `json:"type"`
	OrderID        bson.ObjectID      `json:"order_id"`
	UserID         bson.ObjectID      `json:"user_id"`
	Status         models.OrderStatus `json:"status"`
	PreviousStatus models.OrderStatus `json:"previous_status,omitempty"`
	TotalAmount    float64            `json:"total_amount"`
	Items          []models.OrderItem `json:"order_items"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

func NewOrderEvent(t Type, o *models.Order, previous models.OrderStatus) OrderEvent {
	return OrderEvent{
		Type:           t,
		OrderID:        o.ID,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: previous,
		TotalAmount:    o.TotalAmount,
		Items:          o.Items,
		OccurredAt:     time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e OrderEvent) error
	Close() error
}

// LogPublisher writes events to the log when no broker is configured
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher(l *slog.Logger) *LogPublisher {
	return &LogPublisher{log: l}
}

func (p *LogPublisher) Publish(ctx context.Context, e OrderEvent) error {
	p.log.InfoContext(ctx, "order event",
		"type", e.Type,
		"order_id", e.OrderID.Hex(),
		"status", e.Status,
		"previous_status", e.PreviousStatus,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
