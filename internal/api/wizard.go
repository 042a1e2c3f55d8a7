package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/eclypse-bridge/internal/audit"
	"github.com/nerrad567/eclypse-bridge/internal/entry"
	"github.com/nerrad567/eclypse-bridge/internal/wizard"
)

// wizardAvailable writes a 503 and returns false when no wizard is wired.
func (s *Server) wizardAvailable(w http.ResponseWriter) bool {
	if s.wizard == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "setup wizard not configured")
		return false
	}
	return true
}

// handleWizardBegin starts a setup session.
func (s *Server) handleWizardBegin(w http.ResponseWriter, _ *http.Request) {
	if !s.wizardAvailable(w) {
		return
	}
	writeJSON(w, http.StatusCreated, s.wizard.Begin())
}

// handleWizardGet returns the current step of a session.
func (s *Server) handleWizardGet(w http.ResponseWriter, r *http.Request) {
	if !s.wizardAvailable(w) {
		return
	}
	v, err := s.wizard.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "wizard session not found")
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleWizardSubmit feeds the request body to the session's current step.
//
// Errors keep the session at its step and answer with the session view
// plus the error, so a client can redisplay the form.
func (s *Server) handleWizardSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.wizardAvailable(w) {
		return
	}

	var in wizard.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	v, err := s.wizard.Submit(r.Context(), chi.URLParam(r, "id"), in)
	switch {
	case errors.Is(err, wizard.ErrSessionNotFound):
		writeNotFound(w, "wizard session not found")
		return
	case errors.Is(err, wizard.ErrInvalidInput):
		writeJSON(w, http.StatusUnprocessableEntity, v)
		return
	case errors.Is(err, wizard.ErrDiscoveryFailed):
		writeJSON(w, http.StatusBadGateway, v)
		return
	case errors.Is(err, wizard.ErrFinished), errors.Is(err, entry.ErrEntryExists):
		writeJSON(w, http.StatusConflict, v)
		return
	case err != nil:
		s.logger.Error("wizard submit failed", "session", v.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, v)
		return
	}

	if v.State == wizard.StateDone && v.Entry != nil {
		s.logger.Info("config entry created", "entry_id", v.Entry.ID, "host", v.Entry.Host)
		s.auditLog(audit.ActionEntryCreated, audit.SourceWizard, map[string]any{
			"entry_id": v.Entry.ID,
			"host":     v.Entry.Host,
			"device":   v.Entry.DeviceName,
			"objects":  len(v.Entry.Objects),
		})
	}
	writeJSON(w, http.StatusOK, v)
}

// handleWizardCancel discards a session.
func (s *Server) handleWizardCancel(w http.ResponseWriter, r *http.Request) {
	if !s.wizardAvailable(w) {
		return
	}
	if !s.wizard.Cancel(chi.URLParam(r, "id")) {
		writeNotFound(w, "wizard session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
