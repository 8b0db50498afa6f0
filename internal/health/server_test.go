package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/speedwagon-io/threshold-console/internal/backend"
	"github.com/speedwagon-io/threshold-console/internal/lib/logger/sl"
	"github.com/speedwagon-io/threshold-console/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// offlineClient is a backend that never answers.
type offlineClient struct {
	*backend.MemoryClient
}

func (offlineClient) Health(context.Context) error {
	return errors.New("connection refused")
}

// fakeOutbox reports fixed counters.
type fakeOutbox struct {
	pending, dead int64
	err           error
}

func (f fakeOutbox) Store(context.Context, *model.Mutation) error { return nil }

func (f fakeOutbox) GetPending(context.Context, int) ([]*model.Mutation, error) { return nil, nil }

func (f fakeOutbox) MarkSent(context.Context, []string) error { return nil }

func (f fakeOutbox) Cleanup(context.Context, time.Duration) error { return nil }

func (f fakeOutbox) Count(context.Context) (int64, error) { return f.pending, f.err }

func (f fakeOutbox) DeadCount(context.Context) (int64, error) { return f.dead, nil }

func (f fakeOutbox) Close() error { return nil }

func getHealth(t *testing.T, s *Server) (int, Report) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	return rec.Code, report
}

func getStatus(s *Server, path string) int {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func TestHealth_AllHealthy(t *testing.T) {
	s := NewServer(sl.Discard(), ":0", "volume",
		NewBackendCheck(backend.NewMemoryClient(sl.Discard())),
		NewOutboxCheck(fakeOutbox{pending: 3}, 0),
	)

	code, report := getHealth(t, s)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "volume", report.Schema)
	require.Len(t, report.Components, 2)
	assert.Equal(t, "backend", report.Components[0].Name)
	assert.Equal(t, "outbox", report.Components[1].Name)
}

func TestHealth_BackendDownIsDegraded(t *testing.T) {
	s := NewServer(sl.Discard(), ":0", "base", NewBackendCheck(offlineClient{}))

	code, report := getHealth(t, s)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "connection refused", report.Components[0].Message)
	assert.Equal(t, http.StatusOK, getStatus(s, "/ready"))
}

func TestOutboxCheck(t *testing.T) {
	tests := []struct {
		name    string
		outbox  fakeOutbox
		limit   int64
		want    Status
		message string
	}{
		{"empty", fakeOutbox{}, 0, StatusHealthy, ""},
		{"at limit", fakeOutbox{pending: 10}, 10, StatusHealthy, ""},
		{"backlog", fakeOutbox{pending: 11}, 10, StatusDegraded, "11 writes pending"},
		{"default limit", fakeOutbox{pending: DefaultBacklogLimit + 1}, 0, StatusDegraded, "1001 writes pending"},
		{"dead letters", fakeOutbox{pending: 2, dead: 1}, 0, StatusDegraded, "1 undecodable writes set aside, 2 pending"},
		{"unreadable", fakeOutbox{err: errors.New("database is locked")}, 0, StatusUnhealthy, "database is locked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := NewOutboxCheck(tt.outbox, tt.limit).Check(context.Background())
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.message, message)
		})
	}
}

func TestHealth_WorstComponentWins(t *testing.T) {
	s := NewServer(sl.Discard(), ":0", "base",
		NewBackendCheck(offlineClient{}),
		NewOutboxCheck(fakeOutbox{err: errors.New("database is locked")}, 0),
	)

	code, report := getHealth(t, s)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, StatusDegraded, report.Components[0].Status)

	assert.Equal(t, http.StatusServiceUnavailable, getStatus(s, "/ready"))
	assert.Equal(t, http.StatusOK, getStatus(s, "/live"))
}

func TestStartAndStop(t *testing.T) {
	s := NewServer(sl.Discard(), "127.0.0.1:0", "base")
	require.NoError(t, s.Start())
	assert.NoError(t, s.Stop(context.Background()))

	bad := NewServer(sl.Discard(), "256.0.0.1:1", "base")
	assert.Error(t, bad.Start())
}
