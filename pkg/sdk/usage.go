package sdk

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// UsagePeriod is the aggregation granularity for usage reports.
type UsagePeriod string

// UsagePeriod constants.
const (
	PeriodDay   UsagePeriod = "day"
	PeriodMonth UsagePeriod = "month"
)

// BudgetStatus tracks token quota state. TokensRemaining is -1 when the
// service has no limit configured for the period.
type BudgetStatus struct {
	TokensLimit     int64     `json:"tokens_limit"`
	TokensRemaining int64     `json:"tokens_remaining"`
	Exhausted       bool      `json:"exhausted"`
	ResetsAt        time.Time `json:"resets_at"`
}

// UsageReport contains embedding token usage for one period.
type UsageReport struct {
	Period        string       `json:"period"`
	PeriodStartAt time.Time    `json:"period_start_at"`
	PeriodEndAt   time.Time    `json:"period_end_at"`
	Tokens        int64        `json:"tokens"`
	Budget        BudgetStatus `json:"budget"`
}

// Usage returns the embedding token usage report. An empty period asks for
// the service default (month).
func (c *Client) Usage(ctx context.Context, period UsagePeriod) (report UsageReport, err error) {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, err) }()

	path := "/api/v1/usage"
	if period != "" {
		path += "?period=" + url.QueryEscape(string(period))
	}
	err = c.doJSON(ctx, http.MethodGet, path, nil, &report)
	return report, err
}
