package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/eclypse-bridge/internal/audit"
	"github.com/nerrad567/eclypse-bridge/internal/entry"
)

func (s *Server) entriesAvailable(w http.ResponseWriter) bool {
	if s.entries == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "entry store not configured")
		return false
	}
	return true
}

// handleListEntries returns every stored config entry. Passwords are never
// serialised.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	if !s.entriesAvailable(w) {
		return
	}
	entries, err := s.entries.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list config entries", "error", err)
		writeInternalError(w, "failed to list config entries")
		return
	}
	if entries == nil {
		entries = []entry.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleGetEntry returns one config entry.
func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	if !s.entriesAvailable(w) {
		return
	}
	e, err := s.entries.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, entry.ErrEntryNotFound) {
		writeNotFound(w, "config entry not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get config entry", "error", err)
		writeInternalError(w, "failed to get config entry")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// handleDeleteEntry removes a config entry. A running bridge keeps polling
// until restart.
func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if !s.entriesAvailable(w) {
		return
	}
	id := chi.URLParam(r, "id")
	err := s.entries.Delete(r.Context(), id)
	if errors.Is(err, entry.ErrEntryNotFound) {
		writeNotFound(w, "config entry not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete config entry", "entry_id", id, "error", err)
		writeInternalError(w, "failed to delete config entry")
		return
	}

	s.auditLog(audit.ActionEntryDeleted, audit.SourceAPI, map[string]any{"entry_id": id})
	w.WriteHeader(http.StatusNoContent)
}
