package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ospfatlas/internal/atlas/service"
	"ospfatlas/pkg/config"
	"ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

// Server exposes the HTTP/JSON API and the websocket progress stream.
type Server struct {
	svc    *service.Service
	cfg    *config.Config
	http   *http.Server
	logger *logger.Logger
}

// New creates the API server with its routes registered.
func New(svc *service.Service, cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		svc:    svc,
		cfg:    cfg,
		logger: log.WithField("component", "api-server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/jobs", s.handleSubmitJob)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /api/jobs/{id}/stream", s.handleStreamJob)
	mux.HandleFunc("POST /api/jobs/{id}/stop", s.handleStopJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleDeleteJob)

	mux.HandleFunc("GET /api/devices", s.handleListDevices)

	mux.HandleFunc("POST /api/topology/build", s.handleBuildTopology)
	mux.HandleFunc("GET /api/topology/baseline", s.handleBaseline)
	mux.HandleFunc("POST /api/topology/draft", s.handleCreateDraft)
	mux.HandleFunc("GET /api/topology/draft", s.handleGetDraft)
	mux.HandleFunc("DELETE /api/topology/draft", s.handleDeleteDraft)
	mux.HandleFunc("PUT /api/topology/draft/edge", s.handleUpdateDraftEdge)
	mux.HandleFunc("POST /api/impact", s.handleImpact)

	s.http = &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      s.logging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming endpoints manage their own deadlines
	}
	return s
}

// Start serves until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("api server listening", "address", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("api server shutting down")
	return s.http.Shutdown(ctx)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request handled", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// writeJSON encodes a success payload.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	case errors.IsConflict(err):
		status = http.StatusConflict
	case errors.IsConfiguration(err), errors.Is(err, errors.ErrNoDevices), errors.Is(err, errors.ErrInvalidJobSpec):
		status = http.StatusBadRequest
	case errors.Is(err, errors.ErrJobNotRunning), errors.Is(err, errors.ErrJobNotTerminal):
		status = http.StatusConflict
	case errors.Is(err, errors.ErrExecutorDrained):
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) decode(r *http.Request, into interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return errors.NewConfigError("request", "body", err)
	}
	return nil
}
