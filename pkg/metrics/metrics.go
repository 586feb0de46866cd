// Package metrics exposes the Prometheus metrics of the isbndb packages.
// All metrics are defined in their respective packages (client, keys,
// ratelimit, cache, pagination) and registered via promauto.
//
// This package provides the HTTP endpoint and the reference list.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the default Prometheus registry used by the isbndb packages.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// shutdownTimeout bounds the graceful shutdown of the metrics server.
const shutdownTimeout = 5 * time.Second

// Handler returns the /metrics handler for the default gatherer, with its
// own request metrics registered on Registry.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(
		Registry,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}),
	)
}

// NewMux serves /metrics and /health.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", healthHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// Server is a metrics HTTP server bound to an address.
type Server struct {
	listener net.Listener
	server   *http.Server
	logger   zerolog.Logger
}

// Listen binds addr and returns a server ready to Serve.
func Listen(addr string, logger zerolog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Server{
		listener: ln,
		server: &http.Server{
			Handler:           NewMux(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Serve runs until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.Addr()).Msg("Serving metrics")
		errCh <- s.server.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - isbndb_requests_total{status} (Counter): Page requests by HTTP status
//   - isbndb_request_duration_seconds (Histogram): Page request duration
//   - isbndb_errors_total{class} (Counter): Page errors by class (client, server, network, decode, api, key_limit, request)
//
// Key Metrics (pkg/keys):
//   - isbndb_key_selections_total{key_label} (Counter): Keys selected by the rotator
//   - isbndb_keys_exhausted_total (Counter): Times the key set ran out
//
// Quota Metrics (pkg/ratelimit):
//   - isbndb_key_requests_remaining{key_label} (Gauge): Calls left today per key, from keystats
//   - isbndb_key_spent_total{key_label} (Counter): Observations of a key at or below the threshold
//
// Cache Metrics (pkg/cache):
//   - isbndb_cache_hits_total (Counter): Page cache hits
//   - isbndb_cache_misses_total (Counter): Page cache misses
//   - isbndb_cache_size_bytes (Gauge): Bytes of page data written by this process
//   - isbndb_cache_errors_total{operation} (Counter): Cache operation errors
//
// Harvest Metrics (pkg/pagination):
//   - isbndb_pages_total{outcome} (Counter): Pages by outcome
//   - isbndb_records_total (Counter): Records appended to the collection
//   - isbndb_key_rotations_total{reason} (Counter): Rotations by reason (rejected, quota)
//   - isbndb_harvest_duration_seconds (Histogram): Full run duration
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(isbndb_cache_hits_total[5m])) /
//   (sum(rate(isbndb_cache_hits_total[5m])) + sum(rate(isbndb_cache_misses_total[5m])))
//
//   # Keys close to their daily limit
//   isbndb_key_requests_remaining < 50
//
//   # Failed page ratio
//   rate(isbndb_pages_total{outcome="recoverable"}[5m]) / rate(isbndb_pages_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(isbndb_request_duration_seconds_bucket[5m]))
