// Package api serves stored run artifacts and reports over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"goencode/domain/core"
	"goencode/internal"
	"goencode/internal/errors"
	"goencode/internal/report"
	"goencode/ports"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the read-only results API
type Server struct {
	router  *chi.Mux
	ledger  ports.LedgerReaderPort
	reports *report.Builder
	logger  *internal.Logger
}

// NewServer wires routes over a ledger reader
func NewServer(ledger ports.LedgerReaderPort, reports *report.Builder, logger *internal.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		ledger:  ledger,
		reports: reports,
		logger:  internal.OrDefault(logger).With("api"),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/artifacts/{id}", s.handleGetArtifact)
	s.router.Route("/runs/{runID}", func(r chi.Router) {
		r.Get("/artifacts", s.handleRunArtifacts)
		r.Get("/manifest", s.handleManifest)
		r.Get("/report", s.handleReport)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := core.ParseArtifactID(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}
	artifact, err := s.ledger.GetArtifact(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// handleRunArtifacts lists a run's artifacts, optionally filtered by
// ?kind=, ?feature=, ?limit= and ?offset=.
func (s *Server) handleRunArtifacts(w http.ResponseWriter, r *http.Request) {
	runID, err := core.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}
	filters := ports.ArtifactFilters{RunID: &runID}

	q := r.URL.Query()
	if v := q.Get("kind"); v != "" {
		kind, err := core.ParseArtifactKind(v)
		if err != nil {
			s.writeError(w, badRequest(err))
			return
		}
		filters.Kind = &kind
	}
	if v := q.Get("feature"); v != "" {
		feature, err := core.ParseFeatureName(v)
		if err != nil {
			s.writeError(w, badRequest(err))
			return
		}
		filters.Feature = &feature
	}
	if filters.Limit, err = intParam(q.Get("limit")); err != nil {
		s.writeError(w, badRequest(err))
		return
	}
	if filters.Offset, err = intParam(q.Get("offset")); err != nil {
		s.writeError(w, badRequest(err))
		return
	}

	artifacts, err := s.ledger.ListArtifacts(r.Context(), filters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if artifacts == nil {
		artifacts = []core.Artifact{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":    runID,
		"count":     len(artifacts),
		"artifacts": artifacts,
	})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	runID, err := core.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}
	manifest, err := s.ledger.GetRunManifest(r.Context(), runID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

// handleReport renders HTML, or markdown with ?format=md
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	runID, err := core.ParseRunID(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, badRequest(err))
		return
	}
	if r.URL.Query().Get("format") == "md" {
		md, err := s.reports.Markdown(r.Context(), runID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(md))
		return
	}
	page, err := s.reports.HTML(r.Context(), runID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, core.NewValidationError("query", "expected a non-negative integer, got "+v)
	}
	return n, nil
}

func badRequest(err error) error {
	return errors.WithCode(errors.CodeInvalidInput, err)
}

func statusFor(code string) int {
	switch code {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidInput, errors.CodeInvalidInputShape, errors.CodeInsufficientSamples, errors.CodeValidationError:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if !errors.IsAppError(err) {
		code = errors.GetCode(errors.Wrap(err, "request failed"))
	}
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed: %v", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
