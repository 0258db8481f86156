package sdk

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew_NoBaseURL(t *testing.T) {
	_, err := New("")
	if err == nil {
		t.Fatal("expected error when no base url provided")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c, err := New("http://localhost:8080/")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.baseURL != "http://localhost:8080" {
		t.Errorf("baseURL = %q, want trailing slash trimmed", c.baseURL)
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithAPIKey("secret").apply(cfg)
	if cfg.apiKey != "secret" {
		t.Errorf("apiKey = %q, want secret", cfg.apiKey)
	}

	WithUserAgent("recall-test/1").apply(cfg)
	if cfg.userAgent != "recall-test/1" {
		t.Errorf("userAgent = %q, want recall-test/1", cfg.userAgent)
	}

	cfg2 := &clientConfig{}
	hc := &http.Client{}
	WithHTTPClient(hc).apply(cfg2)
	if cfg2.httpClient != hc {
		t.Error("expected httpClient to be set")
	}

	WithTimeout(5 * time.Second).apply(cfg2)
	if cfg2.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", cfg2.timeout)
	}

	cfg3 := &clientConfig{}
	logger := slog.Default()
	WithLogger(logger).apply(cfg3)
	if cfg3.logger != logger {
		t.Error("expected logger to be set")
	}

	reg := prometheus.NewRegistry()
	WithPrometheus(reg).apply(cfg3)
	if cfg3.metricsReg != reg {
		t.Error("expected metricsReg to be set")
	}
}

func TestRequestHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q, want Bearer test-key", got)
		}
		if got := r.Header.Get("User-Agent"); got != "recall-test/1" {
			t.Errorf("user agent = %q, want recall-test/1", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Stats{TotalCollections: 2})
	}))
	defer server.Close()

	c, err := New(server.URL, WithAPIKey("test-key"), WithUserAgent("recall-test/1"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	stats, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalCollections != 2 {
		t.Errorf("total collections = %d, want 2", stats.TotalCollections)
	}
}

func TestAPIError_CodeMapping(t *testing.T) {
	cases := []struct {
		code   string
		status int
		want   error
	}{
		{"bad_request", http.StatusBadRequest, ErrBadRequest},
		{"validation_failed", http.StatusBadRequest, ErrValidationFailed},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"collection_not_found", http.StatusNotFound, ErrCollectionNotFound},
		{"isolation_violation", http.StatusInternalServerError, ErrIsolationViolation},
		{"embedding_quota_exceeded", http.StatusPaymentRequired, ErrQuotaExceeded},
		{"embedding_provider_error", http.StatusBadGateway, ErrEmbeddingProvider},
		{"embedder_not_configured", http.StatusNotImplemented, ErrEmbedderNotConfigured},
		{"index_unavailable", http.StatusServiceUnavailable, ErrIndexUnavailable},
		{"internal_error", http.StatusInternalServerError, ErrInternal},
		{"some_future_code", http.StatusTeapot, ErrInternal},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				json.NewEncoder(w).Encode(errorResponse{Code: tc.code, Message: "boom"})
			}))
			defer server.Close()

			c, err := New(server.URL)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			_, err = c.Stats(context.Background())
			if !errors.Is(err, tc.want) {
				t.Errorf("errors.Is(err, %v) = false, err = %v", tc.want, err)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if apiErr.StatusCode != tc.status {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tc.status)
			}
			if apiErr.Message != "boom" {
				t.Errorf("message = %q, want boom", apiErr.Message)
			}
		})
	}
}

func TestAPIError_Format(t *testing.T) {
	err := &APIError{
		StatusCode: 404,
		Code:       "collection_not_found",
		Message:    "collection not found",
	}
	want := "recall api: collection not found (collection_not_found, http 404)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAPIError_NonEnvelopeBody(t *testing.T) {
	// Прокси и балансировщики отдают не-JSON тела.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.Stats(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "Bad Gateway" {
		t.Errorf("message = %q, want status text fallback", apiErr.Message)
	}
	if !errors.Is(err, ErrInternal) {
		t.Errorf("empty code should map to ErrInternal, got %v", err)
	}
}

func TestUsage_PeriodParam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/usage" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("period"); got != "day" {
			t.Errorf("period = %q, want day", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(UsageReport{
			Period: "day",
			Tokens: 1234,
			Budget: BudgetStatus{TokensLimit: 10000, TokensRemaining: 8766},
		})
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := c.Usage(context.Background(), PeriodDay)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if report.Tokens != 1234 {
		t.Errorf("tokens = %d, want 1234", report.Tokens)
	}
	if report.Budget.TokensRemaining != 8766 {
		t.Errorf("remaining = %d, want 8766", report.Budget.TokensRemaining)
	}
}

func TestUsage_DefaultPeriod(t *testing.T) {
	// Пустой период не попадает в query string.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "" {
			t.Errorf("expected no query string, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(UsageReport{Period: "month"})
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	report, err := c.Usage(context.Background(), "")
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if report.Period != "month" {
		t.Errorf("period = %q, want month", report.Period)
	}
}

func TestHealth_DegradedStillParses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(HealthStatus{
			Status: "degraded",
			Checks: map[string]string{"index": "error"},
		})
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	status, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health on 503 with report body: %v", err)
	}
	if status.Status != "degraded" {
		t.Errorf("status = %q, want degraded", status.Status)
	}
	if status.Checks["index"] != "error" {
		t.Errorf("checks = %v, want index error", status.Checks)
	}
}

func TestObserver_NilSafe(t *testing.T) {
	// nil observer should not panic.
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("search", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("search", time.Now(), errors.New("fail"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected metrics to be registered")
	}

	// Verify operations counter has both ok and error.
	found := false
	for _, f := range families {
		if f.GetName() == "recall_sdk_operations_total" {
			found = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 metric samples, got %d",
					len(f.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("recall_sdk_operations_total not found")
	}
}

func TestObserver_SharedRegistry(t *testing.T) {
	// Два клиента на одном registry переиспользуют коллекторы.
	reg := prometheus.NewRegistry()
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("first newObserver: %v", err)
	}
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("second newObserver: %v", err)
	}
}

func TestObserver_WithLogger(t *testing.T) {
	// Проверяем что логгер не паникует при вызове.
	logger := slog.Default()
	obs, err := newObserver(logger, nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}
	obs.observe("test.op", time.Now(), nil)
	obs.observe("test.op", time.Now(), errors.New("test error"))
}
