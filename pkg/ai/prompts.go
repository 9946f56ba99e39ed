package ai

import (
	"fmt"
	"strings"

	"bookhaven.ca/bookstore/api/pkg/models"
)

const SalesReportSystemPrompt = `You are a retail analyst for an independent online bookstore.
Given order totals, status counts and best selling titles, write a short briefing that covers:
- how healthy the order pipeline is (pending vs shipped vs cancelled)
- which titles drive sales and what that says about demand
- one or two concrete actions for the store manager
Keep it to 2-3 short paragraphs in plain language.`

// formatSalesSummaryPrompt renders the summary as the user message
func formatSalesSummaryPrompt(s *models.SalesSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total orders: %d\n", s.TotalOrders)
	fmt.Fprintf(&b, "Revenue (excluding cancelled): %.2f\n", s.Revenue)

	b.WriteString("Orders by status:\n")
	for _, st := range models.OrderStatuses {
		fmt.Fprintf(&b, "- %s: %d\n", st, s.StatusCounts[st])
	}

	if len(s.TopBooks) == 0 {
		b.WriteString("No books sold yet.\n")
		return b.String()
	}
	b.WriteString("Best selling books:\n")
	for i, bs := range s.TopBooks {
		title := bs.Title
		if title == "" {
			title = "(removed from catalog) " + bs.BookID.Hex()
		}
		fmt.Fprintf(&b, "%d. %s: %d copies across %d orders\n", i+1, title, bs.Quantity, bs.Orders)
	}
	return b.String()
}
