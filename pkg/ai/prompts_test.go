package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"bookhaven.ca/bookstore/api/pkg/models"
)

func TestFormatSalesSummaryPrompt(t *testing.T) {
	s := &models.SalesSummary{
		TotalOrders: 3,
		Revenue:     52.5,
		StatusCounts: map[models.OrderStatus]int64{
			models.StatusPending:   2,
			models.StatusCancelled: 1,
		},
		TopBooks: []models.BookSales{
			{BookID: bson.NewObjectID(), Title: "Dune", Quantity: 4, Orders: 2},
			{BookID: bson.NewObjectID(), Quantity: 1, Orders: 1},
		},
	}

	got := formatSalesSummaryPrompt(s)
	assert.Contains(t, got, "Total orders: 3")
	assert.Contains(t, got, "Revenue (excluding cancelled): 52.50")
	assert.Contains(t, got, "- pending: 2")
	assert.Contains(t, got, "- shipped: 0")
	assert.Contains(t, got, "1. Dune: 4 copies across 2 orders")
	assert.Contains(t, got, "(removed from catalog)")
}

func TestDisabledClient(t *testing.T) {
	c := NewClient("", "", "")
	assert.False(t, c.Enabled())

	_, err := c.SalesNarrative(context.Background(), &models.SalesSummary{})
	var aiErr *AIError
	require.ErrorAs(t, err, &aiErr)
	assert.Equal(t, "AI service is not enabled", aiErr.Message)
}
