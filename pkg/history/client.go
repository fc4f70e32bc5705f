// Package history provides a client for the payment history persistence API.
package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/speedrun-hq/paydesk/pkg/circuitbreaker"
	"github.com/speedrun-hq/paydesk/pkg/logger"
	"github.com/speedrun-hq/paydesk/pkg/metrics"
	"github.com/speedrun-hq/paydesk/pkg/models"
)

// ErrCircuitOpen is returned while the history API circuit breaker is open
var ErrCircuitOpen = errors.New("history API circuit open")

// APIResponse represents the structure of a history listing response
type APIResponse struct {
	Records    []models.HistoryRecord `json:"records,omitempty"`
	Data       []models.HistoryRecord `json:"data,omitempty"`    // Some deployments use "data" as the key
	Results    []models.HistoryRecord `json:"results,omitempty"` // Some deployments use "results" as the key
	Page       int                    `json:"page"`
	PageSize   int                    `json:"page_size"`
	TotalCount int                    `json:"total_count"`
	TotalPages int                    `json:"total_pages"`
}

// Client represents a history API client
type Client struct {
	endpoint   string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	logger     logger.Logger
}

// New creates a new history API client. breaker may be nil.
func New(endpoint string, breaker *circuitbreaker.CircuitBreaker, log logger.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: createHTTPClient(),
		breaker:    breaker,
		logger:     log,
	}
}

// Breaker returns the circuit breaker guarding the API, nil when unguarded
func (c *Client) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}

// Record stores a committed payment. It must only be called after the
// payment transaction settled successfully.
func (c *Client) Record(ctx context.Context, record models.HistoryRecord) error {
	if c.breaker != nil && c.breaker.IsOpen() {
		metrics.HistoryWrites.WithLabelValues("skipped").Inc()
		return ErrCircuitOpen
	}

	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode history record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/v1/history", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req, http.StatusOK, http.StatusCreated)
	if err != nil {
		c.recordFailure()
		metrics.HistoryWrites.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to record payment %s: %w", record.PaymentID, err)
	}

	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	metrics.HistoryWrites.WithLabelValues("success").Inc()
	c.logger.DebugWithScope(logger.History, "Recorded payment %s (tx %s)", record.PaymentID, record.TxHash)
	return nil
}

// List returns the stored history of address
func (c *Client) List(ctx context.Context, address string) ([]models.HistoryRecord, error) {
	if c.breaker != nil && c.breaker.IsOpen() {
		return nil, ErrCircuitOpen
	}

	u := c.endpoint + "/api/v1/history?address=" + url.QueryEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	bodyBytes, err := c.do(req, http.StatusOK)
	if err != nil {
		c.recordFailure()
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}

	return decodeRecords(bodyBytes, c.logger)
}

func (c *Client) recordFailure() {
	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
}

func (c *Client) do(req *http.Request, expected ...int) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.logger.ErrorWithScope(logger.History, "Failed to close response body: %v", err)
		}
	}(resp.Body)

	// Read the response body regardless of status code
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	for _, code := range expected {
		if resp.StatusCode == code {
			return bodyBytes, nil
		}
	}
	return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
}

// decodeRecords accepts either a wrapped listing or a bare array
func decodeRecords(bodyBytes []byte, log logger.Logger) ([]models.HistoryRecord, error) {
	var apiResp APIResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		var records []models.HistoryRecord
		if err := json.Unmarshal(bodyBytes, &records); err != nil {
			return nil, fmt.Errorf("failed to decode history: %v, body: %s", err, string(bodyBytes))
		}
		return records, nil
	}

	switch {
	case len(apiResp.Records) > 0:
		return apiResp.Records, nil
	case len(apiResp.Data) > 0:
		return apiResp.Data, nil
	case len(apiResp.Results) > 0:
		return apiResp.Results, nil
	}

	log.DebugWithScope(logger.History, "No history records found (page %d/%d, total count: %d)",
		apiResp.Page, apiResp.TotalPages, apiResp.TotalCount)
	return []models.HistoryRecord{}, nil
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
