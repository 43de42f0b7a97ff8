// Package httpapi exposes stored analyses, on-demand scoring and single-probe
// proxy endpoints over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"DomainScore/internal/domain"
	"DomainScore/internal/ports"
	"DomainScore/internal/probe"
	"DomainScore/internal/scoring"
	"DomainScore/internal/usecase"
	"DomainScore/pkg/logger"
)

const (
	defaultBatchLimit = 50
	maxBodyBytes      = 1 << 20
)

// Scorer analyzes and persists domains on demand.
type Scorer interface {
	Rescore(ctx context.Context, name string, onProgress domain.ProgressFunc) (domain.DomainAnalysis, error)
	RescoreBatch(ctx context.Context, names []string) ([]domain.DomainAnalysis, error)
}

// ProbeRunner executes one probe in isolation.
type ProbeRunner interface {
	RunProbe(ctx context.Context, kind probe.Kind, name string) (any, error)
}

// Deps wires the server collaborators. Metrics may be nil.
type Deps struct {
	Repository ports.AnalysisRepository
	Scorer     Scorer
	Probes     ProbeRunner
	Metrics    http.Handler
	Logger     *slog.Logger
	// BatchLimit caps the number of domains per batch request.
	BatchLimit int
}

// Server holds the HTTP handlers.
type Server struct {
	repo       ports.AnalysisRepository
	scorer     Scorer
	probes     ProbeRunner
	metrics    http.Handler
	logger     *slog.Logger
	batchLimit int
}

// New builds a server.
func New(deps Deps) *Server {
	s := &Server{
		repo:       deps.Repository,
		scorer:     deps.Scorer,
		probes:     deps.Probes,
		metrics:    deps.Metrics,
		logger:     logger.Component(deps.Logger, "httpapi"),
		batchLimit: deps.BatchLimit,
	}
	if s.batchLimit <= 0 {
		s.batchLimit = defaultBatchLimit
	}
	return s
}

// Routes returns the router with all endpoints mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.logRequests, middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/domains", s.listDomains)
		r.Get("/domains/{domain}", s.getDomain)
		r.Post("/domains/{domain}/analyze", s.analyzeDomain)
		r.Get("/domains/{domain}/analyze/stream", s.streamAnalysis)
		r.Post("/analyze/batch", s.analyzeBatch)
		r.Get("/heuristic/{domain}", s.heuristic)
		r.Get("/proxy/{probe}", s.proxy)
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listDomains(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	items, err := s.repo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("list domains failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("could not list domains"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "limit": filter.Limit, "offset": filter.Offset})
}

func (s *Server) getDomain(w http.ResponseWriter, r *http.Request) {
	name, ok := domainParam(w, r)
	if !ok {
		return
	}

	a, err := s.repo.Get(r.Context(), name)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Errorf("%s has not been analyzed", name))
		return
	}
	if err != nil {
		s.logger.Error("get domain failed", "domain", name, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("could not load domain"))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) analyzeDomain(w http.ResponseWriter, r *http.Request) {
	name, ok := domainParam(w, r)
	if !ok {
		return
	}

	a, err := s.scorer.Rescore(r.Context(), name, nil)
	if err != nil {
		s.logger.Error("rescore failed", "domain", name, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("analysis could not be stored"))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// streamAnalysis reports progress as server-sent events and ends with the
// record ("result") or a store failure ("error").
func (s *Server) streamAnalysis(w http.ResponseWriter, r *http.Request) {
	name, ok := domainParam(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(event string, v any) {
		payload, err := json.Marshal(v)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
		flusher.Flush()
	}

	a, err := s.scorer.Rescore(r.Context(), name, func(ev domain.ProgressEvent) {
		send("progress", ev)
	})
	if err != nil {
		s.logger.Error("rescore failed", "domain", name, "error", err)
		send("error", map[string]string{"error": "analysis could not be stored"})
		return
	}
	send("result", a)
}

type batchRequest struct {
	Domains []string `json:"domains"`
}

func (s *Server) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if len(req.Domains) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("domains must not be empty"))
		return
	}
	if len(req.Domains) > s.batchLimit {
		writeError(w, http.StatusBadRequest, fmt.Errorf("at most %d domains per batch", s.batchLimit))
		return
	}

	results, err := s.scorer.RescoreBatch(r.Context(), req.Domains)
	if err != nil {
		s.logger.Error("batch rescore failed", "count", len(req.Domains), "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("some analyses could not be stored"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": results})
}

func (s *Server) heuristic(w http.ResponseWriter, r *http.Request) {
	name, ok := domainParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, scoring.Heuristic(name))
}

func (s *Server) proxy(w http.ResponseWriter, r *http.Request) {
	kind := probe.Kind(chi.URLParam(r, "probe"))
	raw := r.URL.Query().Get("domain")
	if strings.TrimSpace(raw) == "" {
		writeError(w, http.StatusBadRequest, errors.New("domain query parameter is required"))
		return
	}

	signal, err := s.probes.RunProbe(r.Context(), kind, raw)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, signal)
	case errors.Is(err, domain.ErrInvalidDomain):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, usecase.ErrUnknownProbe):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}

func domainParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	name, err := domain.Normalize(chi.URLParam(r, "domain"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return "", false
	}
	return name, true
}

func parseListFilter(r *http.Request) (ports.ListFilter, error) {
	q := r.URL.Query()
	f := ports.ListFilter{
		Query:  strings.TrimSpace(q.Get("q")),
		SortBy: q.Get("sort"),
		Desc:   true,
	}

	if raw := q.Get("status"); raw != "" {
		f.Status = domain.Status(strings.ToLower(raw))
		if !f.Status.Valid() {
			return f, fmt.Errorf("unknown status %q", raw)
		}
	}
	switch strings.ToLower(q.Get("order")) {
	case "", "desc":
	case "asc":
		f.Desc = false
	default:
		return f, fmt.Errorf("order must be asc or desc")
	}

	for _, p := range []struct {
		key string
		dst *int
	}{{"min_score", &f.MinScore}, {"limit", &f.Limit}, {"offset", &f.Offset}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%s must be a non-negative integer", p.key)
		}
		*p.dst = n
	}
	return f, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
