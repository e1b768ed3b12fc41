// Package api implements the engine's control surface: setConfig,
// start, stop, getStatus (spec §6), plus an observer websocket and a
// markdown docs endpoint for the plugin catalog. Structurally this
// follows the teacher's internal/api/server.go: one Server holding a
// *http.Server, a withLogging wrapper, and writeJSON/errorResponse
// helpers — the request/response framing itself is explicitly a
// Non-goal of the core engine (spec §1), so this package is the
// "external collaborator" the spec names but does not constrain.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nugget/pipelined/internal/buildinfo"
	"github.com/nugget/pipelined/internal/history"
	"github.com/nugget/pipelined/internal/manifest"
	"github.com/nugget/pipelined/internal/observer"
	"github.com/nugget/pipelined/internal/pipeline"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP control API.
type Server struct {
	address string
	port    int

	manager *pipeline.Manager
	hub     *observer.Hub
	catalog *manifest.Catalog
	history *history.Store

	logger *slog.Logger
	server *http.Server
}

// New constructs a Server. catalog and historyStore may be nil: the
// node-docs and run-history endpoints respond 503 in that case rather
// than panicking.
func New(address string, port int, manager *pipeline.Manager, hub *observer.Hub, catalog *manifest.Catalog, historyStore *history.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address: address,
		port:    port,
		manager: manager,
		hub:     hub,
		catalog: catalog,
		history: historyStore,
		logger:  logger,
	}
}

// Start begins serving HTTP requests. Blocks until the server stops
// (Shutdown is called or ListenAndServe errors).
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/status", s.handleGetStatus)
	mux.HandleFunc("PUT /v1/config", s.handleSetConfig)
	mux.HandleFunc("POST /v1/start", s.handleStart)
	mux.HandleFunc("POST /v1/stop", s.handleStop)
	mux.HandleFunc("GET /v1/observe", s.handleObserve)
	mux.HandleFunc("GET /v1/nodes", s.handleListNodes)
	mux.HandleFunc("GET /v1/nodes/{kind}/docs", s.handleNodeDocs)
	mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /v1/runs/{id}/executions", s.handleListNodeExecutions)
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", addr, s.port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	s.logger.Info("starting control API", "address", addr, "port", s.port)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]string{"error": message}, s.logger)
}

// --- Lifecycle ---

type statusResponse struct {
	Status       string `json:"status"`
	HasConfig    bool   `json:"has_config"`
	ConfigLength int    `json:"config_length"`
	Observers    int    `json:"observer_count"`
	Build        string `json:"build"`
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	observers := 0
	if s.hub != nil {
		observers = s.hub.Count()
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, statusResponse{
		Status:       string(s.manager.Status()),
		HasConfig:    s.manager.HasConfig(),
		ConfigLength: s.manager.ConfigLength(),
		Observers:    observers,
		Build:        buildinfo.Version,
	}, s.logger)
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var desc []pipeline.Descriptor
	if err := json.NewDecoder(r.Body).Decode(&desc); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.manager.SetConfig(desc); err != nil {
		s.writeStateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": string(s.manager.Status())}, s.logger)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Start(); err != nil {
		s.writeStateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": string(s.manager.Status())}, s.logger)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := s.manager.StopWithContext(ctx); err != nil {
		s.writeStateError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": string(s.manager.Status())}, s.logger)
}

func (s *Server) writeStateError(w http.ResponseWriter, err error) {
	if _, ok := err.(*pipeline.InvalidStateError); ok {
		s.errorResponse(w, http.StatusConflict, err.Error())
		return
	}
	s.errorResponse(w, http.StatusInternalServerError, err.Error())
}

// --- Observer stream ---

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "observer hub not configured")
		return
	}
	id := r.RemoteAddr + "-" + fmt.Sprint(time.Now().UnixNano())
	if err := observer.Upgrade(s.hub, id, w, r, s.logger); err != nil {
		s.logger.Warn("observer: upgrade failed", "error", err)
	}
}

// --- Plugin catalog ---

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "plugin catalog not configured")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, s.catalog.List(), s.logger)
}

func (s *Server) handleNodeDocs(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "plugin catalog not configured")
		return
	}
	kind := r.PathValue("kind")
	entry, ok := s.catalog.Get(kind)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, "unknown node kind: "+kind)
		return
	}
	html, err := manifest.RenderDocsHTML(entry)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

// --- Run history ---

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	runs, err := s.history.ListRuns(100)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, runs, s.logger)
}

func (s *Server) handleListNodeExecutions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "history store not configured")
		return
	}
	execs, err := s.history.ListNodeExecutions(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, execs, s.logger)
}

// --- Misc ---

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.RuntimeInfo(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}
