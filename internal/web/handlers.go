package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/USFAkbari/Excel-Tools/internal/core"
	"github.com/USFAkbari/Excel-Tools/internal/dataset"
)

// handleRoot reports the service name and version.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": s.cfg.App.Name,
		"version": s.cfg.App.Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleStatus reports limiter counters and stored versions.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Status())
}

// handleAuditLog lists recent operations, optionally filtered by action
// and start time.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.AuditFilter{Action: core.AuditAction(q.Get("action"))}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			respondError(w, r, dataset.Validationf("audit-log", "limit must be a positive integer, got %q", v))
			return
		}
		filter.Limit = limit
	}
	if v := q.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, r, dataset.Validationf("audit-log", "since must be an RFC 3339 timestamp, got %q", v))
			return
		}
		filter.Since = since
	}

	entries, err := s.service.AuditLog(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
