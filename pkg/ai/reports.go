package ai

import (
	"context"

	"bookhaven.ca/bookstore/api/pkg/models"
)

// SalesNarrative asks the model to interpret a sales summary
func (c *Client) SalesNarrative(ctx context.Context, summary *models.SalesSummary) (string, error) {
	return c.complete(ctx, SalesReportSystemPrompt, formatSalesSummaryPrompt(summary))
}
