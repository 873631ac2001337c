package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danslapman/kolibri-go/internal/exec"
	"github.com/danslapman/kolibri-go/internal/metrics"
	"github.com/danslapman/kolibri-go/internal/models"
	"github.com/danslapman/kolibri-go/internal/state"
	"github.com/danslapman/kolibri-go/internal/stub"
)

// Server is the kolibri HTTP server: a single execution endpoint plus a
// Prometheus metrics endpoint.
type Server struct {
	httpServer *http.Server
	states     *state.Store
}

// Config holds server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer builds a Server over the loaded catalogue, wiring the
// resolver and execution handler it is served through.
func NewServer(cfg Config, catalogue []*models.Stub) *Server {
	states := state.New()
	resolver := stub.New(catalogue, states)
	execHandler := exec.New(resolver, states)

	byScope := make(map[models.Scope]int, 3)
	for _, s := range catalogue {
		byScope[s.Scope]++
	}
	for _, scope := range models.ScopePriority {
		metrics.SetStubsCount(string(scope), byScope[scope])
	}

	router := NewRouter()
	router.ANY("/api/kolibri/exec/*path", NewExecHandler(execHandler).ServeHTTP)
	router.GET("/metrics", promhttp.Handler().ServeHTTP)

	handler := Recoverer(Logger(router))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		states: states,
	}
}

// Start runs the server until it errors or is shut down.
func (s *Server) Start() error {
	log.Printf("kolibri running on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// States returns the shared state store (for testing).
func (s *Server) States() *state.Store {
	return s.states
}
