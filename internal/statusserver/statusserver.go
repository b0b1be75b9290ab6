// Package statusserver provides the optional per-worker debug/status HTTP
// endpoint named in SPEC_FULL.md's AMBIENT STACK expansion of spec.md §6's
// "--debugAddr=host:port" option: /healthz, /metrics (Prometheus), and
// /status (JSON run counters).
package statusserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusFunc returns the current run status as a JSON-marshalable value.
type StatusFunc func() any

// New builds the status router, grounded on the teacher's cmd/arx/main.go
// chi.NewRouter() + chimiddleware setup, repurposed from a building-data
// REST API into a read-only operational endpoint.
func New(registry *prometheus.Registry, status StatusFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(5 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return r
}

// Serve starts an HTTP server bound to addr. It blocks until the server
// stops; callers typically run it in its own goroutine, matching the
// teacher's "start server in goroutine, wait for signal" pattern in
// cmd/arx/main.go.
func Serve(addr string, handler http.Handler) error {
	server := &http.Server{Addr: addr, Handler: handler}
	return server.ListenAndServe()
}
