// Package api exposes the RAD status HTTP server: a health endpoint, the
// current pipeline status, and Prometheus metrics. It is read-only; the
// pipeline is driven from the CLI, not over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clivendon/RAD/internal/db"
	"github.com/clivendon/RAD/internal/logging"
	"github.com/clivendon/RAD/internal/metrics"
)

// Server timeout constants.
const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 10 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Status is the pipeline snapshot served on /status.
type Status struct {
	State      string       `json:"state"`
	Target     string       `json:"target"`
	WatchFile  string       `json:"watch_file"`
	PortsSoFar []int        `json:"ports_so_far"`
	LastRun    *db.ReconRun `json:"last_run,omitempty"`
	Uptime     string       `json:"uptime"`
}

// StatusProvider supplies the current pipeline snapshot.
type StatusProvider interface {
	Status() Status
}

// Server is the status HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	provider   StatusProvider
	logger     *logging.Logger
	startTime  time.Time
}

// New creates a status server listening on addr.
func New(addr string, provider StatusProvider) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		provider:  provider,
		logger:    logging.Default().WithComponent("api"),
		startTime: time.Now(),
	}

	s.setupRoutes()

	handler := handlers.RecoveryHandler()(s.router)
	handler = handlers.CombinedLoggingHandler(os.Stdout, handler)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(
		metrics.GetGlobalMetrics().Registry(),
		promhttp.HandlerOpts{},
	)).Methods(http.MethodGet)
}

// Handler returns the routed handler; used by tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the server until the context is canceled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting status server", "address", s.httpServer.Addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Stop()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.logger.Info("stopping status server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.provider == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "no pipeline attached",
		})
		return
	}

	status := s.provider.Status()
	status.Uptime = time.Since(s.startTime).String()
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode response", "error", err)
	}
}
