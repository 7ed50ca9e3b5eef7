package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/creature-etl/internal/clean"
	"github.com/JonMunkholm/creature-etl/internal/load"
	"github.com/JonMunkholm/creature-etl/internal/logging"
	"github.com/JonMunkholm/creature-etl/internal/pipeline"
)

// routes is the index served at GET /.
var routes = []string{
	"GET    /health",
	"GET    /metrics",
	"GET    /api/creatures?page=&per_page=",
	"GET    /api/creatures/{id}",
	"GET    /api/creatures/name/{name}",
	"GET    /api/creatures/type/{type}?secondary=true",
	"GET    /api/creatures/generation/{gen}",
	"GET    /api/creatures/legendary?limit=",
	"GET    /api/creatures/power?min=&max=",
	"GET    /api/creatures/search?q=",
	"POST   /api/creatures",
	"POST   /api/creatures/bulk",
	"PUT    /api/creatures/{id}",
	"DELETE /api/creatures/{id}",
	"GET    /api/statistics",
	"GET    /api/etl/info",
	"GET    /api/etl/status",
	"GET    /api/etl/runs?limit=",
	"POST   /api/etl/run",
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     "creature-etl",
		"database": s.repo != nil,
		"db_sink":  s.pipeline.HasStore(),
		"sinks":    pipeline.Sinks(),
		"routes":   routes,
	})
}

// handleHealth reports liveness and database reachability.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, db := "ok", "disabled"
	code := http.StatusOK

	if s.repo != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		db = "ok"
		if err := s.repo.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("health: database unreachable", "error", err)
			status, db = "degraded", "unreachable"
			code = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, code, map[string]any{
		"status":   status,
		"database": db,
		"runs":     s.limiter.Status(),
	})
}

// handleETLInfo previews the configured input file.
func (s *Server) handleETLInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.pipeline.Info("")
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleETLStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Status())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", 20)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	runs, err := s.repo.ListRuns(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": runs, "count": len(runs)})
}

// RunRequest is the optional body of POST /api/etl/run. The input path is
// not accepted over HTTP; runs always read the configured file.
type RunRequest struct {
	Limit       int      `json:"limit"`
	Sinks       []string `json:"sinks"`
	Timestamped *bool    `json:"timestamped"`
}

// RunResponse summarizes a finished run.
type RunResponse struct {
	RunID       string                `json:"run_id"`
	Status      string                `json:"status"`
	DurationsMS map[string]int64      `json:"durations_ms"`
	Report      clean.Report          `json:"report"`
	Summary     clean.Summary         `json:"summary"`
	Integrity   load.IntegrityResult  `json:"integrity"`
	Sinks       []pipeline.SinkResult `json:"sinks"`
	Sample      []map[string]string   `json:"sample"`
}

// handleETLRun runs the pipeline once. Concurrent runs are limited; a caller
// that cannot get a slot in time receives 429.
func (s *Server) handleETLRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if r.ContentLength != 0 && r.Body != http.NoBody {
		if err := decodeJSON(w, r, &req); err != nil {
			s.respondError(w, r, err)
			return
		}
	}

	logging.WithFields(r.Context(), "limit", req.Limit, "sinks", req.Sinks).Info("run requested")

	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	res, err := s.pipeline.Run(r.Context(), pipeline.RunOptions{
		Limit:       req.Limit,
		Sinks:       req.Sinks,
		Timestamped: req.Timestamped,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	durations := make(map[string]int64, len(res.Durations))
	for stage, d := range res.Durations {
		durations[stage] = d.Milliseconds()
	}
	status := http.StatusOK
	if !res.Succeeded() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, RunResponse{
		RunID:       res.RunID,
		Status:      res.Status,
		DurationsMS: durations,
		Report:      res.Report,
		Summary:     res.Summary,
		Integrity:   res.Integrity,
		Sinks:       res.Sinks,
		Sample:      res.Load.SampleRows,
	})
}
