package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediashelf/internal/catalog"
	"mediashelf/internal/logging"
	"mediashelf/internal/services"
)

// maxLimit caps a single listing page.
const maxLimit = 1000

// Catalog is the read-only store surface the server needs.
type Catalog interface {
	Ping(ctx context.Context) error
	Listing(ctx context.Context, q catalog.ListingQuery) ([]catalog.ListingEntry, error)
}

// Server is the catalog listing HTTP server.
type Server struct {
	bind    string
	catalog Catalog
	logger  *slog.Logger
	handler http.Handler

	listener net.Listener
	server   *http.Server
}

// NewServer builds a Server bound to bind. reg receives the request counters
// and is exposed at /metrics; a fresh registry is used when reg is nil.
func NewServer(bind string, cat Catalog, reg *prometheus.Registry, logger *slog.Logger) (*Server, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, services.Wrap(services.ErrConfiguration, "api", "bind", "API bind address not configured; set paths.api_bind", nil)
	}
	if cat == nil {
		return nil, errors.New("api server requires a catalog")
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	metrics, err := newRequestMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register api metrics: %w", err)
	}

	srv := &Server{
		bind:    bind,
		catalog: cat,
		logger:  logging.NewComponentLogger(logger, "api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/videos", srv.handleVideos)
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv.handler = srv.withRequestID(metrics.wrap(mux))

	srv.server = &http.Server{
		Handler:           srv.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the bind address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := catalog.ListingQuery{Title: r.URL.Query().Get("q")}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		query.Limit = min(limit, maxLimit)
	}

	entries, err := s.catalog.Listing(r.Context(), query)
	if err != nil {
		logging.WithContext(r.Context(), s.logger).Error("listing failed", logging.Error(err))
		s.writeError(w, r, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	s.writeJSON(w, r, http.StatusOK, FromListing(entries))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.catalog.Ping(r.Context()); err != nil {
		s.writeJSON(w, r, http.StatusServiceUnavailable, Health{Status: "unavailable", Error: err.Error()})
		return
	}
	s.writeJSON(w, r, http.StatusOK, Health{Status: "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.WithContext(r.Context(), s.logger).Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, r, status, map[string]string{"error": message})
}
