// Package server exposes the orchestrator's manual trigger surface over
// HTTP: status queries, check triggers and per-component enable/disable.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"git.home.luguber.info/inful/plugwatch/internal/history"
	"git.home.luguber.info/inful/plugwatch/internal/updater"
)

// Server is the admin HTTP server.
type Server struct {
	service *updater.Service
	store   *history.Store
	metrics http.Handler
	logger  *slog.Logger
	httpSrv *http.Server
}

// New creates an admin server around the orchestrator. store and
// metricsHandler are optional.
func New(service *updater.Service, store *history.Store, metricsHandler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{service: service, store: store, metrics: metricsHandler, logger: logger}
}

// Handler assembles the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}

	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/check", s.handleCheckAll)
	mux.HandleFunc("/api/components/", s.handleComponent)
	if s.store != nil {
		mux.HandleFunc("/api/history", s.handleHistory)
	}

	return mux
}

// Start begins serving on addr in the background.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		s.logger.Info("Admin server listening", "addr", addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Admin server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  string(s.service.State()),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.service.Status())
}

func (s *Server) handleCheckAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// The cycle runs in the background; the caller polls /api/status. It
	// runs under the orchestrator's run context so Stop cancels it like
	// any scheduled cycle.
	go s.service.CheckAll(s.service.RunContext())
	writeJSON(w, http.StatusAccepted, map[string]string{"result": "check cycle started"})
}

// handleComponent routes /api/components/{name}/{action}.
func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/components/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" {
		http.Error(w, "expected /api/components/{name}/{check|enable|disable}", http.StatusBadRequest)
		return
	}
	name, action := parts[0], parts[1]

	switch action {
	case "check":
		if err := s.service.CheckOne(r.Context(), name); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"result": fmt.Sprintf("checked %s", name)})
	case "enable":
		s.service.Enable(name)
		writeJSON(w, http.StatusOK, map[string]string{"result": fmt.Sprintf("enabled %s", name)})
	case "disable":
		s.service.Disable(name)
		writeJSON(w, http.StatusOK, map[string]string{"result": fmt.Sprintf("disabled %s", name)})
	default:
		http.Error(w, "unknown action "+action, http.StatusBadRequest)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entries, err := s.store.Recent(r.Context(), 100)
	if err != nil {
		s.logger.Error("History query failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
