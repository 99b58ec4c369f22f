package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"fdep/internal/history"
	"fdep/internal/security"

	"github.com/go-chi/chi/v5"
)

const (
	RecentRunsLimit = 10
	MaxRunsLimit    = 100
)

// HandleHealth lists the configured targets and the latest run of each.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":       "ok",
		"targets":      s.Registry.Names(),
		"target_count": s.Registry.Count(),
	}

	if s.History != nil {
		latest, err := s.History.LatestPerTarget(r.Context())
		if err != nil {
			s.Logger.Error("Failed to get latest runs", "error", err)
			s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch run history"})
			return
		}
		response["latest_runs"] = latest
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleStatus returns the run history of one target.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "target")

	if err := security.ValidateIdentifier("target", name); err != nil {
		s.Logger.Warn("Invalid target name in status request", "target", name, "error", err)
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("Invalid target name: %v", err)})
		return
	}

	if _, err := s.Registry.Get(name); err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown target"})
		return
	}

	if s.History == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "History not available"})
		return
	}

	status, err := s.History.Status(r.Context(), name, RecentRunsLimit)
	if err != nil {
		s.Logger.Error("Failed to get target status", "error", err, "target", name)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch run history"})
		return
	}

	s.respondJSON(w, http.StatusOK, status)
}

// HandleRuns returns the most recent runs of every target. The optional
// limit query parameter is capped at MaxRunsLimit.
func (s *Server) HandleRuns(w http.ResponseWriter, r *http.Request) {
	limit := RecentRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, MaxRunsLimit)
	}

	if s.History == nil {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "History not available"})
		return
	}

	runs, err := s.History.Recent(r.Context(), "", limit)
	if err != nil {
		s.Logger.Error("Failed to get recent runs", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to fetch run history"})
		return
	}
	if runs == nil {
		runs = []history.Record{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}
