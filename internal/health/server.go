// Package health reports whether the console can still take threshold writes.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/speedwagon-io/threshold-console/internal/lib/logger/sl"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// worse orders statuses so a report takes the worst of its components.
func (s Status) worse(than Status) bool {
	rank := map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}
	return rank[s] > rank[than]
}

type ComponentHealth struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"durationNs"`
}

type Report struct {
	Status     Status            `json:"status"`
	Schema     string            `json:"schema,omitempty"`
	Components []ComponentHealth `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) (Status, string)
}

type Server struct {
	log      *slog.Logger
	address  string
	schema   string
	timeout  time.Duration
	server   *http.Server
	checkers []Checker
}

// NewServer builds the health endpoint for a console running schema.
func NewServer(log *slog.Logger, address, schema string, checkers ...Checker) *Server {
	return &Server{
		log:      log.With(slog.String("component", "health")),
		address:  address,
		schema:   schema,
		timeout:  5 * time.Second,
		checkers: checkers,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)

	return r
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info("starting health server", slog.String("address", ln.Addr().String()))

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("health server error", sl.Err(err))
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Run checks every component concurrently. Components keep their
// registration order in the report.
func (s *Server) Run(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report := Report{
		Status:     StatusHealthy,
		Schema:     s.schema,
		Components: make([]ComponentHealth, len(s.checkers)),
		Timestamp:  time.Now().UTC(),
	}

	var wg sync.WaitGroup
	for i, checker := range s.checkers {
		i, checker := i, checker
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			status, message := checker.Check(ctx)
			report.Components[i] = ComponentHealth{
				Name:     checker.Name(),
				Status:   status,
				Message:  message,
				Duration: time.Since(start),
			}
		}()
	}
	wg.Wait()

	for _, c := range report.Components {
		if c.Status.worse(report.Status) {
			report.Status = c.Status
		}
	}

	return report
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Run(r.Context())

	code := http.StatusOK
	if report.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}

	s.writeReport(w, code, report)
}

// handleReady fails only when a component is unhealthy. A degraded backend
// still lets the console validate and queue writes.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.Run(r.Context()).Status == StatusUnhealthy {
		http.Error(w, "NOT READY", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) writeReport(w http.ResponseWriter, code int, report Report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(report); err != nil {
		s.log.Error("failed to encode health report", sl.Err(err))
	}
}
