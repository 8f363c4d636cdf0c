package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/botkeeper/internal/observe"
	"github.com/psantana5/botkeeper/internal/supervisor"
	"github.com/psantana5/botkeeper/pkg/auth"
	"github.com/psantana5/botkeeper/pkg/bandwidth"
	"github.com/psantana5/botkeeper/pkg/logging"
	"github.com/psantana5/botkeeper/pkg/ratelimit"
	"github.com/psantana5/botkeeper/pkg/store"
	"github.com/psantana5/botkeeper/pkg/tracing"
)

// Config tunes the status API
type Config struct {
	Listen     string
	APIKeyHash string // empty disables auth
	RateLimit  float64
	RateBurst  int
	TLSCert    string
	TLSKey     string
}

// Server is the daemon's local status API: a read surface over the
// supervisor plus a single write operation (restart the child).
type Server struct {
	cfg     Config
	sup     *supervisor.Supervisor
	store   store.Store
	sampler *observe.Sampler
	log     *logging.Logger
	hub     *EventHub
	bw      *bandwidth.Monitor
	tracer  *tracing.Provider

	httpServer *http.Server
	startTime  time.Time
}

// New creates a status API server. sampler, bw, and tracer are optional.
func New(cfg Config, sup *supervisor.Supervisor, st store.Store, sampler *observe.Sampler,
	bw *bandwidth.Monitor, tracer *tracing.Provider, log *logging.Logger) *Server {
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	return &Server{
		cfg:       cfg,
		sup:       sup,
		store:     st,
		sampler:   sampler,
		log:       log,
		hub:       NewEventHub(log),
		bw:        bw,
		tracer:    tracer,
		startTime: time.Now(),
	}
}

// Hub returns the websocket event hub so the daemon can wire the
// supervisor's event hook into it
func (s *Server) Hub() *EventHub {
	return s.hub
}

// Router builds the mux router with the middleware chain applied
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	// Liveness stays open: probes should not need credentials
	r.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	r.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	authed := r.NewRoute().Subrouter()
	authed.Use(auth.Middleware(s.cfg.APIKeyHash))
	authed.HandleFunc("/status", s.handleStatus).Methods("GET")
	authed.HandleFunc("/api/cycles", s.handleCycles).Methods("GET")
	authed.HandleFunc("/api/events", s.handleEvents).Methods("GET")
	authed.HandleFunc("/api/restart", s.handleRestart).Methods("POST")
	authed.HandleFunc("/ws/events", s.hub.HandleWS)

	var handler http.Handler = r

	if s.tracer != nil {
		handler = tracing.HTTPMiddleware(s.tracer)(handler)
	}

	limiter := ratelimit.NewLimiter(s.cfg.RateLimit, s.cfg.RateBurst)
	handler = limiter.Middleware(ratelimit.IPKeyFunc)(handler)

	if s.bw != nil {
		handler = s.bw.Middleware(handler)
	}

	return handler
}

// Start serves the API until Shutdown is called
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // websocket streams stay open
		IdleTimeout:  120 * time.Second,
	}

	s.log.Info("status API listening", map[string]interface{}{"addr": s.cfg.Listen})

	var err error
	if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
		err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("status API failed: %w", err)
	}
	return nil
}

// Shutdown stops the server and disconnects websocket clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
