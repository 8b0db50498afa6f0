// Package api serves the threshold console over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/speedwagon-io/threshold-console/internal/backend"
	"github.com/speedwagon-io/threshold-console/internal/config"
	"github.com/speedwagon-io/threshold-console/internal/lib/logger/sl"
	"github.com/speedwagon-io/threshold-console/internal/outbox"
	"github.com/speedwagon-io/threshold-console/internal/replay"
	"github.com/speedwagon-io/threshold-console/internal/threshold"
)

type Replayer interface {
	ReplayOnce(ctx context.Context) (replay.Result, error)
}

type Server struct {
	log       *slog.Logger
	cfg       *config.HTTPConfig
	validator *threshold.Validator
	client    backend.Client
	outbox    outbox.Outbox
	replayer  Replayer
	server    *http.Server

	// writeMu orders threshold writes against the outbox.
	writeMu sync.Mutex
}

// NewServer wires the console routes. ob and rp may be nil when writes are
// not queued.
func NewServer(
	log *slog.Logger,
	cfg *config.HTTPConfig,
	v *threshold.Validator,
	client backend.Client,
	ob outbox.Outbox,
	rp Replayer,
) *Server {
	return &Server{
		log:       log.With(slog.String("component", "api")),
		cfg:       cfg,
		validator: v,
		client:    client,
		outbox:    ob,
		replayer:  rp,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Route("/api/thresholds", func(r chi.Router) {
		r.Get("/constraints", s.handleConstraints)
		r.Get("/default", s.handleDefault)
		r.Post("/validate", s.handleValidate)
		r.Get("/export", s.handleExport)

		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)

		r.Get("/{id:[0-9]+}", s.handleGet)
		r.Put("/{id:[0-9]+}", s.handleUpdate)
		r.Delete("/{id:[0-9]+}", s.handleDelete)
	})

	r.Get("/api/outbox", s.handleOutboxStatus)
	r.Post("/api/outbox/replay", s.handleReplay)

	return r
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info("starting api server",
		slog.String("address", ln.Addr().String()),
		slog.String("schema", s.validator.Schema().String()),
	)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("api server error", sl.Err(err))
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
