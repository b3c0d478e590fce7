// Package server exposes the analytics engine over HTTP: a JSON query API,
// cost estimates, cache invalidation, the websocket ingest endpoint and the
// usual health/status/metrics surface.
package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"market-analytics-lab/internal/engine"
	"market-analytics-lab/internal/eventstore"
	"market-analytics-lab/internal/ingestion"
	"market-analytics-lab/internal/observability"
	"market-analytics-lab/internal/querycache"
)

// Server wires the engine and event store into an HTTP handler.
type Server struct {
	engine  *engine.Engine
	store   *eventstore.Store
	cache   *querycache.Cache
	metrics *observability.Metrics
	ingest  *ingestion.WSIngestor
	log     zerolog.Logger
	started time.Time

	// defaultBudgetUSD applies when a request carries no budget of its
	// own. Zero means unlimited.
	defaultBudgetUSD float64
}

// Options configures a Server.
type Options struct {
	Engine           *engine.Engine
	Store            *eventstore.Store
	Cache            *querycache.Cache
	Metrics          *observability.Metrics
	DefaultBudgetUSD float64
}

// New creates a Server. Metrics may be nil.
func New(opts Options) *Server {
	return &Server{
		engine:           opts.Engine,
		store:            opts.Store,
		cache:            opts.Cache,
		metrics:          opts.Metrics,
		ingest:           ingestion.NewWSIngestor(opts.Store, opts.Metrics),
		log:              observability.NewLogger("server"),
		started:          time.Now().UTC(),
		defaultBudgetUSD: opts.DefaultBudgetUSD,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/query", s.handleQuery)
	mux.HandleFunc("/estimate", s.handleEstimate)
	mux.HandleFunc("/invalidate", s.handleInvalidate)
	mux.Handle("/ingest", s.ingest)
	mux.Handle("/metrics", observability.Handler())

	return mux
}
