package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nerrad567/gray-gate/internal/registry"
)

// healthProbeTimeout bounds each dependency check on the health endpoint.
const healthProbeTimeout = 2 * time.Second

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.health))
	healthy := true

	for name, checker := range s.health {
		ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
		if err := checker.HealthCheck(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
		cancel()
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"healthy": healthy,
		"version": s.version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"checks":  checks,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.Status())
}

func (s *Server) handleListRepresentations(w http.ResponseWriter, r *http.Request) {
	var (
		reps []registry.Representation
		err  error
	)
	if typeTag := r.URL.Query().Get("type"); typeTag != "" {
		reps, err = s.registry.ListByType(r.Context(), typeTag)
	} else {
		reps, err = s.registry.List(r.Context())
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list representations")
		return
	}

	if reps == nil {
		reps = []registry.Representation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"representations": reps,
		"count":           len(reps),
	})
}

func (s *Server) handleGetRepresentation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rep, err := s.registry.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "representation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load representation")
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.registry.GetStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     stats.Total,
		"by_type":   stats.ByType,
		"by_domain": stats.ByDomain,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
