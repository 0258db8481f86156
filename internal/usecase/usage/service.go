package usage

import (
	"context"
	"time"

	"github.com/kailas-cloud/recall/internal/domain"
)

// Service reports embedding token consumption against the configured budget.
type Service struct {
	br BudgetReader
}

// New creates a Service. br can be nil (unlimited mode).
func New(br BudgetReader) *Service {
	return &Service{br: br}
}

// GetReport builds a usage report for the given period. Periods are UTC
// calendar windows; ResetsAt is the start of the next one.
func (s *Service) GetReport(_ context.Context, period domain.Period) domain.UsageReport {
	now := time.Now().UTC()

	var start, end time.Time
	var limit, used, remaining int64

	switch period {
	case domain.PeriodMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
		if s.br != nil {
			limit = s.br.MonthlyLimit()
			used = s.br.MonthlyUsed()
			remaining = s.br.RemainingMonthly()
		}
	default:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		end = start.Add(24 * time.Hour)
		period = domain.PeriodDay
		if s.br != nil {
			limit = s.br.DailyLimit()
			used = s.br.DailyUsed()
			remaining = s.br.RemainingDaily()
		}
	}

	if limit == 0 {
		remaining = -1
	}

	return domain.UsageReport{
		Period:      period,
		PeriodStart: start,
		PeriodEnd:   end,
		Tokens:      used,
		Budget: domain.BudgetStatus{
			TokensLimit:     limit,
			TokensRemaining: remaining,
			Exhausted:       limit > 0 && remaining <= 0,
			ResetsAt:        end,
		},
	}
}
