// Package backend talks to the REST service that owns threshold records.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/speedwagon-io/threshold-console/internal/model"
)

var (
	ErrNotFound    = errors.New("threshold not found")
	ErrUnavailable = errors.New("backend unavailable")
)

type Client interface {
	List(ctx context.Context) ([]model.Threshold, error)
	Get(ctx context.Context, id int64) (*model.Threshold, error)
	// Apply performs m against the backend. Deletes return a nil threshold.
	Apply(ctx context.Context, m *model.Mutation) (*model.Threshold, error)
	Health(ctx context.Context) error
}

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Permanent reports whether repeating the request cannot succeed. Request
// timeouts and throttling are 4xx answers that a later attempt can pass.
func (e *StatusError) Permanent() bool {
	switch e.Code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.Code >= 400 && e.Code < 500
}

// Message extracts a human readable reason from the body.
func (e *StatusError) Message() string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(e.Body), &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		return body
	}
	return http.StatusText(e.Code)
}

// Temporary reports whether err may clear up on its own, so the mutation
// that caused it should be kept for a later attempt.
func Temporary(err error) bool {
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && !se.Permanent()
}

// IsRejected reports whether err is a 4xx answer, returning it if so.
func IsRejected(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) && se.Permanent() {
		return se, true
	}
	return nil, false
}
