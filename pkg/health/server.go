package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/speedrun-hq/paydesk/pkg/circuitbreaker"
	"github.com/speedrun-hq/paydesk/pkg/dashboard"
	"github.com/speedrun-hq/paydesk/pkg/logger"
)

// StatusSource reports the state of the dashboard service
type StatusSource interface {
	Snapshot() dashboard.Snapshot
}

// Server represents a health check HTTP server
type Server struct {
	port            string
	source          StatusSource
	circuitBreakers map[string]*circuitbreaker.CircuitBreaker
	metricsAPIKey   string
	logger          logger.Logger
	mux             *http.ServeMux
}

// NewServer creates a new health check server. circuitBreakers is keyed by breaker name.
func NewServer(port, metricsAPIKey string, source StatusSource, circuitBreakers map[string]*circuitbreaker.CircuitBreaker, log logger.Logger) *Server {
	s := &Server{
		port:            port,
		source:          source,
		circuitBreakers: circuitBreakers,
		metricsAPIKey:   metricsAPIKey,
		logger:          log,
		mux:             http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// metricsAuthMiddleware is a middleware that checks for a valid API key
func (s *Server) metricsAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip auth if no API key is configured
		if s.metricsAPIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		if parts[1] != s.metricsAPIKey {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Ready once a ledger client is live for the connected identity
	s.mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if !s.source.Snapshot().Connected {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Ledger client not connected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Ready"))
	})

	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/circuit/reset", s.handleCircuitReset)

	// Expose Prometheus metrics with API key authentication
	s.mux.Handle("/metrics", s.metricsAuthMiddleware(promhttp.Handler()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	circuits := make(map[string]circuitbreaker.State, len(s.circuitBreakers))
	for name, cb := range s.circuitBreakers {
		circuits[name] = cb.GetState()
	}

	status := map[string]interface{}{
		"session":  s.source.Snapshot(),
		"circuits": circuits,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.logger.ErrorWithScope(logger.Health, "Error encoding status JSON: %v", err)
	}
}

// handleCircuitReset closes the named breaker, or every breaker when no name is given
func (s *Server) handleCircuitReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		names := make([]string, 0, len(s.circuitBreakers))
		for n, cb := range s.circuitBreakers {
			cb.Reset()
			names = append(names, n)
		}
		sort.Strings(names)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(fmt.Sprintf("Circuit breakers reset: %s", strings.Join(names, ", "))))
		return
	}

	cb, ok := s.circuitBreakers[name]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(fmt.Sprintf("No circuit breaker named %s", name)))
		return
	}

	cb.Reset()
	s.logger.InfoWithScope(logger.Health, "Circuit breaker %s reset by admin request", name)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(fmt.Sprintf("Circuit breaker %s reset", name)))
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoWithScope(logger.Health, "Starting health and metrics server on port %s", s.port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("health server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health server shutdown: %w", err)
	}
	return nil
}
