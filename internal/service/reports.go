package service

import (
	"context"
	"time"

	"bookhaven.ca/bookstore/api/internal/logging"
	"bookhaven.ca/bookstore/api/pkg/models"
	"bookhaven.ca/bookstore/api/pkg/store"
)

// Narrator writes prose about a sales summary. *ai.Client implements it.
type Narrator interface {
	Enabled() bool
	SalesNarrative(ctx context.Context, summary *models.SalesSummary) (string, error)
}

type ReportService struct {
	orders   store.OrderStore
	narrator Narrator
	topBooks int
}

func NewReportService(orders store.OrderStore, narrator Narrator, topBooks int) *ReportService {
	if topBooks <= 0 {
		topBooks = 5
	}
	return &ReportService{orders: orders, narrator: narrator, topBooks: topBooks}
}

// Sales builds the sales report. With withAI set and a configured narrator
// the AI commentary is attached; an AI failure is reported in the body and
// never fails the report.
func (s *ReportService) Sales(ctx context.Context, withAI bool) (*models.SalesReport, error) {
	summary, err := s.orders.Summary(ctx, s.topBooks)
	if err != nil {
		return nil, err
	}
	report := &models.SalesReport{
		Summary:     *summary,
		AIEnabled:   s.narrator != nil && s.narrator.Enabled(),
		GeneratedAt: time.Now().UTC(),
	}
	if !withAI || !report.AIEnabled {
		return report, nil
	}

	insights, err := s.narrator.SalesNarrative(ctx, summary)
	if err != nil {
		logging.FromCtx(ctx).Warn("AI sales narrative failed", "err", err)
		report.AIError = "AI analysis failed: " + err.Error()
		return report, nil
	}
	report.AIInsights = insights
	return report, nil
}
