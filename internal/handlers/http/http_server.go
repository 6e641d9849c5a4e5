package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/redis-developer/beats-by-redis/internal/app/dto"
	"github.com/redis-developer/beats-by-redis/internal/domain/useCases"
	"github.com/redis-developer/beats-by-redis/internal/handlers/websocket"
)

// ResetFunc clears all derived state and re-primes the log if it is empty.
type ResetFunc func(ctx context.Context) error

// Server exposes the aggregation queries, the websocket endpoint, the
// administrative reset and the metrics/health endpoints.
type Server struct {
	queries     useCases.PurchaseQueries
	broadcaster *websocket.WebSocketBroadcaster
	reset       ResetFunc
	logger      *slog.Logger
	mux         *http.ServeMux
	server      *http.Server
}

// NewServer creates a new HTTP server with configured routes
func NewServer(addr string, queries useCases.PurchaseQueries, broadcaster *websocket.WebSocketBroadcaster, reset ResetFunc, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	server := &Server{
		queries:     queries,
		broadcaster: broadcaster,
		reset:       reset,
		logger:      logger,
		mux:         mux,
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	server.registerRoutes()

	return server
}

// registerRoutes configures all HTTP routes
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/purchase/purchases", s.handleRecentPurchases)
	s.mux.HandleFunc("/purchase/history", s.handleHistory)
	s.mux.HandleFunc("/purchase/top-sellers", s.handleTopSellers)
	s.mux.HandleFunc("/purchase/search", s.handleSearch)
	s.mux.HandleFunc("/reset", s.handleReset)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ws", s.broadcaster.Handler())
	s.mux.Handle("/metrics", promhttp.Handler())
}

// handleRecentPurchases returns the ten most recent purchases.
func (s *Server) handleRecentPurchases(w http.ResponseWriter, r *http.Request) {
	n := 10
	if raw := r.URL.Query().Get("count"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			n = parsed
		}
	}

	purchases, err := s.queries.RecentPurchases(r.Context(), n)
	if err != nil {
		http.Error(w, "failed to get purchases", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, dto.FromModels(purchases))
}

// handleHistory returns the sales counts of the trailing hour.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	points, err := s.queries.History(r.Context(), time.Hour)
	if err != nil {
		http.Error(w, "failed to get history", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, points)
}

// handleTopSellers returns the five top sellers.
func (s *Server) handleTopSellers(w http.ResponseWriter, r *http.Request) {
	top, err := s.queries.TopSellers(r.Context(), 5)
	if err != nil {
		http.Error(w, "failed to get top sellers", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, top)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("term")
	purchases, err := s.queries.Search(r.Context(), term)
	if err != nil {
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, dto.FromModels(purchases))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if s.reset == nil {
		http.Error(w, "reset not configured", http.StatusNotImplemented)
		return
	}
	if err := s.reset(r.Context()); err != nil {
		s.logger.Error("reset failed", "error", err)
		http.Error(w, "reset failed", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, map[string]string{"message": "Database reset successfully"})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
