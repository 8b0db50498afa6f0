package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/speedwagon-io/threshold-console/internal/config"
	"github.com/speedwagon-io/threshold-console/internal/lib/logger/sl"
	"github.com/speedwagon-io/threshold-console/internal/model"
)

type HTTPClient struct {
	log         *slog.Logger
	baseURL     string
	token       string
	client      *http.Client
	maxAttempts int
	backoff     *ExponentialBackoff
}

func NewHTTPClient(log *slog.Logger, cfg *config.BackendConfig) *HTTPClient {
	attempts := cfg.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &HTTPClient{
		log:     log,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxAttempts: attempts,
		backoff:     NewExponentialBackoff(cfg.Retry.InitialDelay, cfg.Retry.MaxDelay),
	}
}

func (c *HTTPClient) List(ctx context.Context) ([]model.Threshold, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, "/thresholds", nil)
	if err != nil {
		return nil, err
	}

	var items []model.Threshold
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal thresholds: %w", err)
	}
	return items, nil
}

func (c *HTTPClient) Get(ctx context.Context, id int64) (*model.Threshold, error) {
	body, err := c.doWithRetry(ctx, http.MethodGet, fmt.Sprintf("/thresholds/%d", id), nil)
	if err != nil {
		return nil, err
	}
	return decodeThreshold(body)
}

func (c *HTTPClient) Apply(ctx context.Context, m *model.Mutation) (*model.Threshold, error) {
	var (
		method string
		path   string
		data   []byte
		err    error
	)

	switch m.Op {
	case model.OpCreate:
		method, path = http.MethodPost, "/thresholds"
	case model.OpUpdate:
		method, path = http.MethodPut, fmt.Sprintf("/thresholds/%d", m.ThresholdID)
	case model.OpDelete:
		method, path = http.MethodDelete, fmt.Sprintf("/thresholds/%d", m.ThresholdID)
	default:
		return nil, fmt.Errorf("unknown mutation op %q", m.Op)
	}

	if m.Op != model.OpDelete {
		data, err = json.Marshal(m.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal threshold: %w", err)
		}
	}

	body, err := c.doWithRetry(ctx, method, path, data)
	if err != nil {
		return nil, err
	}

	if m.Op == model.OpDelete {
		return nil, nil
	}
	return decodeThreshold(body)
}

func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// doWithRetry repeats transport failures, 5xx answers, 408 and 429. Other 4xx
// answers are returned at once.
func (c *HTTPClient) doWithRetry(ctx context.Context, method, path string, data []byte) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, err := c.do(ctx, method, path, data)
		if err == nil {
			return body, nil
		}

		if _, rejected := IsRejected(err); rejected {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		c.log.Warn("backend request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.maxAttempts),
			sl.Err(err),
		)

		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff.NextDelay(attempt - 1)):
			}
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, c.maxAttempts, lastErr)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, data []byte) ([]byte, error) {
	var reqBody io.Reader
	if data != nil {
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

func decodeThreshold(body []byte) (*model.Threshold, error) {
	var t model.Threshold
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal threshold: %w", err)
	}
	return &t, nil
}
