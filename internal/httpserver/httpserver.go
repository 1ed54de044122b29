// Package httpserver serves the ops endpoints: Prometheus metrics and the
// health of the gateway connection and its backing stores.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Hongsc0125/donggle-bot/internal/gateway"
	"github.com/Hongsc0125/donggle-bot/internal/logger"
)

var (
	ErrStart    = errors.New("failed to start ops server")
	ErrShutdown = errors.New("failed to shutdown ops server")
)

const (
	checkTimeout    = 3 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// Health is the /healthz response body.
type Health struct {
	Status       string            `json:"status"`
	Gateway      gateway.Snapshot  `json:"gateway"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// NewRouter builds the ops router. gatherer may be nil to use the default
// registry.
func NewRouter(health *gateway.HealthState, checks map[string]Check, gatherer prometheus.Gatherer, log *logger.Logger) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/healthz", healthHandler(health, checks, log))
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// healthHandler returns 200 only when the gateway is connected and every
// dependency answers.
func healthHandler(health *gateway.HealthState, checks map[string]Check, log *logger.Logger) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		body := Health{Status: "ok", Gateway: health.Snapshot()}
		healthy := body.Gateway.State == gateway.StateConnected

		if len(names) > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()

			results := make([]error, len(names))
			var wg sync.WaitGroup
			for i, name := range names {
				wg.Go(func() { results[i] = checks[name](ctx) })
			}
			wg.Wait()

			body.Dependencies = make(map[string]string, len(names))
			for i, name := range names {
				if results[i] != nil {
					healthy = false
					body.Dependencies[name] = results[i].Error()
					log.WarnCtx(r.Context(), "dependency unhealthy",
						logger.Field{Key: "dependency", Value: name},
						logger.Field{Key: "error", Value: results[i]})
					continue
				}
				body.Dependencies[name] = "ok"
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
			body.Status = "unavailable"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Server runs the ops router until its context is cancelled.
type Server struct {
	srv    *http.Server
	logger *logger.Logger
}

func New(addr string, handler http.Handler, log *logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		logger: log.Component("httpserver"),
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()
	s.logger.Info("ops server started", logger.Field{Key: "addr", Value: s.srv.Addr})

	var runErr error
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return errors.Join(ErrShutdown, err)
		}
		runErr = <-errCh
	case runErr = <-errCh:
	}

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		return errors.Join(ErrStart, runErr)
	}
	s.logger.Info("ops server stopped")
	return nil
}
