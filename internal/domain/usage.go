package domain

import "time"

// Period selects the aggregation window for usage reports.
type Period string

// Usage report periods.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// UsageReport summarizes embedding token spend over one period. The service
// spends tokens only on embedding calls, so one counter covers the whole
// provider bill.
type UsageReport struct {
	Period      Period
	PeriodStart time.Time
	PeriodEnd   time.Time
	Tokens      int64
	Budget      BudgetStatus
}

// BudgetStatus describes the token quota state for the report period.
// A zero TokensLimit means no quota is configured; TokensRemaining is -1 in
// that case.
type BudgetStatus struct {
	TokensLimit     int64
	TokensRemaining int64
	Exhausted       bool
	ResetsAt        time.Time
}
