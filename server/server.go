// Package server exposes the orchestrator over HTTP: the public matching
// endpoint, health checks, a read-only config/diagnostics endpoint, and a
// small set of admin operations over the resilience layer (spec.md §6).
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bapt252/supersmartmatch/core"
	"github.com/bapt252/supersmartmatch/monitor"
	"github.com/bapt252/supersmartmatch/orchestrator"
	"github.com/bapt252/supersmartmatch/resilience"
	"github.com/bapt252/supersmartmatch/types"

	"github.com/google/uuid"
)

// Server wraps the orchestrator behind an http.Server, wiring the same
// recovery/logging middleware stack the teacher framework uses.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux

	orch       *orchestrator.Orchestrator
	resilience *resilience.Manager
	monitor    *monitor.Monitor
	logger     core.Logger

	serviceName string
	version     string
}

// New builds a Server listening on cfg.Port, wiring every route spec.md §6 names.
func New(cfg core.Config, orch *orchestrator.Orchestrator, resilienceMgr *resilience.Manager, mon *monitor.Monitor, version string) *Server {
	logger := cfg.Logger()
	if aware, ok := logger.(core.ComponentAwareLogger); ok {
		logger = aware.WithComponent("server")
	}

	s := &Server{
		mux:         http.NewServeMux(),
		orch:        orch,
		resilience:  resilienceMgr,
		monitor:     mon,
		logger:      logger,
		serviceName: cfg.Name,
		version:     version,
	}

	s.registerRoutes()

	var handler http.Handler = s.mux
	handler = core.RecoveryMiddleware(logger)(handler)
	handler = core.LoggingMiddleware(logger, cfg.Development.Enabled)(handler)
	handler = requestIDMiddleware(handler)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/match", s.handleMatch)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/v2/health", s.handleHealthV2)
	s.mux.HandleFunc("/config", s.handleConfig)

	s.mux.HandleFunc("/admin/circuit/force-open", s.handleForceOpen)
	s.mux.HandleFunc("/admin/circuit/force-close", s.handleForceClose)
	s.mux.HandleFunc("/admin/ab-test/compare", s.handleABCompare)
}

// Start blocks serving HTTP until the server is stopped or fails.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", map[string]interface{}{
		"address": s.httpServer.Addr,
		"service": s.serviceName,
	})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req types.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	resp, err := s.orch.Handle(r.Context(), req)
	if err != nil {
		if core.IsClientError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.logger.ErrorWithContext(r.Context(), "match request failed", map[string]interface{}{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": s.serviceName})
}

func (s *Server) handleHealthV2(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":  "healthy",
		"service": s.serviceName,
		"version": s.version,
	}
	if s.resilience != nil {
		snapshots := s.resilience.Snapshots()
		breakers := make(map[string]string, len(snapshots))
		for _, snap := range snapshots {
			breakers[string(snap.Algorithm)] = string(snap.State)
		}
		body["circuit_breakers"] = breakers
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"service": s.serviceName, "version": s.version}
	if s.resilience != nil {
		body["circuit_breakers"] = s.resilience.Snapshots()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleForceOpen(w http.ResponseWriter, r *http.Request) {
	s.handleForce(w, r, s.resilience.ForceOpen)
}

func (s *Server) handleForceClose(w http.ResponseWriter, r *http.Request) {
	s.handleForce(w, r, s.resilience.ForceClose)
}

func (s *Server) handleForce(w http.ResponseWriter, r *http.Request, apply func(types.AlgorithmID, string) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.resilience == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "resilience manager not wired"})
		return
	}

	var body struct {
		Algorithm string `json:"algorithm"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	if err := apply(types.AlgorithmID(body.Algorithm), body.Reason); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleABCompare(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "monitor not wired"})
		return
	}
	a := types.AlgorithmID(r.URL.Query().Get("a"))
	b := types.AlgorithmID(r.URL.Query().Get("b"))
	if a == "" || b == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query params a and b are required"})
		return
	}
	writeJSON(w, http.StatusOK, s.monitor.Compare(a, b))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}
