// Package server exposes the HTTP boundary: hunt triggers, lead and run
// listings, the live event stream and stats.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hunterpro/hunter-cli/internal/config"
	"github.com/hunterpro/hunter-cli/internal/events"
	"github.com/hunterpro/hunter-cli/internal/hunt"
	"github.com/hunterpro/hunter-cli/internal/model"
	"github.com/hunterpro/hunter-cli/internal/monitoring"
	"github.com/hunterpro/hunter-cli/internal/store"
)

// Store is the read side of the lead store the handlers use.
type Store interface {
	ListLeads(ctx context.Context, filter store.LeadFilter) ([]model.Lead, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.HuntRun, error)
	ListEvents(ctx context.Context, limit int) ([]model.AuditEvent, error)
}

// Submitter enqueues hunt passes.
type Submitter interface {
	Submit(intent model.SearchIntent) (hunt.Ticket, error)
}

// StatsCollector produces monitoring snapshots.
type StatsCollector interface {
	Collect(ctx context.Context, lookbackHours int) (*monitoring.Snapshot, error)
}

// Deps are the collaborators behind the handlers.
type Deps struct {
	Store  Store
	Hunts  Submitter
	Hub    *events.Hub
	Stats  StatsCollector
	Limits *ActorLimiter
}

// Server wraps the HTTP listener.
type Server struct {
	httpServer *http.Server
	h          *handlers
}

// New builds the router and server from cfg.
func New(cfg config.ServerConfig, d Deps) *Server {
	if d.Limits == nil {
		d.Limits = NewActorLimiter(cfg.SubmitPerMin, cfg.SubmitBurst)
	}
	if d.Hub == nil {
		d.Hub = events.NewHub()
	}
	h := &handlers{deps: d, recentLimit: cfg.EventsBacklog, now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, LoggerMiddleware, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", h.health)
	r.Route("/api", func(r chi.Router) {
		r.Post("/hunts", h.submitHunt)
		r.Get("/leads", h.listLeads)
		r.Get("/runs", h.listRuns)
		r.Get("/events", h.streamEvents)
		r.Get("/events/recent", h.recentEvents)
		r.Post("/extract-phones", h.extractPhones)
		r.Get("/stats", h.stats)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		h: h,
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	zap.L().Info("server: listening", zap.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	zap.L().Info("server: stopping")
	return s.httpServer.Shutdown(ctx)
}
