package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/eclypse-bridge/internal/audit"
	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
	"github.com/nerrad567/eclypse-bridge/internal/bridges/eclypse"
)

// ObjectView is the API form of a tracked object and its cached values.
type ObjectView struct {
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Instance int            `json:"instance"`
	Href     string         `json:"href"`
	Values   map[string]any `json:"values"`
}

func newObjectView(obj *bacnet.Object) ObjectView {
	return ObjectView{
		Name:     obj.Name(),
		Type:     obj.Type(),
		Instance: obj.Instance(),
		Href:     obj.Href(),
		Values:   obj.Values(),
	}
}

// currentState returns every cached value keyed by object then property.
func (s *Server) currentState() map[string]map[string]any {
	out := make(map[string]map[string]any)
	s.bridge.Registry().Each(func(obj *bacnet.Object) {
		out[obj.Name()] = obj.Values()
	})
	return out
}

// handleListObjects returns the tracked objects in registry order.
//
// Query parameters:
//   - type: only objects of this BACnet type (e.g. analogValue)
func (s *Server) handleListObjects(w http.ResponseWriter, r *http.Request) {
	typeFilter := r.URL.Query().Get("type")

	objects := []ObjectView{}
	s.bridge.Registry().Each(func(obj *bacnet.Object) {
		if typeFilter != "" && obj.Type() != typeFilter {
			return
		}
		objects = append(objects, newObjectView(obj))
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"device":  s.bridge.Device(),
		"objects": objects,
		"count":   len(objects),
	})
}

// handleGetObject returns one tracked object. With ?live=true the object is
// fetched from the controller instead of the cache.
func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var (
		view  ObjectView
		found bool
	)
	s.bridge.Registry().Each(func(obj *bacnet.Object) {
		if obj.Name() == name {
			view, found = newObjectView(obj), true
		}
	})
	if !found {
		writeNotFound(w, "object not found")
		return
	}

	if r.URL.Query().Get("live") != "true" {
		writeJSON(w, http.StatusOK, view)
		return
	}

	live, err := s.bridge.Object(r.Context(), name)
	if err != nil {
		s.logger.Warn("live object fetch failed", "object", name, "error", err)
		writeControllerError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, live)
}

// handleTrend returns trend log records of an object by sequence number.
//
// Query parameters:
//   - start: first sequence number (required)
//   - end: last sequence number (required, >= start)
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.bridge.Registry().Has(name) {
		writeNotFound(w, "object not found")
		return
	}

	start, err := strconv.Atoi(r.URL.Query().Get("start"))
	if err != nil || start < 0 {
		writeBadRequest(w, "start must be a non-negative integer")
		return
	}
	end, err := strconv.Atoi(r.URL.Query().Get("end"))
	if err != nil || end < start {
		writeBadRequest(w, "end must be an integer not less than start")
		return
	}

	body, err := s.bridge.Trend(r.Context(), name, start, end)
	if err != nil {
		s.logger.Warn("trend fetch failed", "object", name, "error", err)
		writeControllerError(w, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(body)
}

// handleWriteProperty queues a value for one property and flushes it to the
// controller. The body has the same shape as an MQTT command:
// {"value": ..., "priority": 1-16}.
func (s *Server) handleWriteProperty(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	property := chi.URLParam(r, "property")

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}
	cmd, err := eclypse.ParseCommand(payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	res, err := s.bridge.Write(r.Context(), name, property, cmd.Value, cmd.WritePriority(), audit.SourceAPI)
	switch {
	case errors.Is(err, bacnet.ErrObjectNotFound), errors.Is(err, bacnet.ErrPropertyNotFound):
		writeNotFound(w, err.Error())
		return
	case err != nil:
		s.logger.Warn("property write failed", "object", name, "property", property, "error", err)
		writeControllerError(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"object":      name,
		"property":    property,
		"value":       cmd.Value,
		"written":     len(res.Written),
		"duration_ms": res.Duration.Milliseconds(),
	})
}

// handleRefresh forces a read of every tracked property.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.bridge.Refresh(r.Context())
	if err != nil {
		writeControllerError(w, err.Error())
		return
	}

	changes := res.Reconcile.Changes
	if changes == nil {
		changes = []bacnet.Change{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"requested":   res.Requested,
		"matched":     res.Reconcile.Matched,
		"dropped":     res.Reconcile.Dropped,
		"changes":     changes,
		"duration_ms": res.Duration.Milliseconds(),
	})
}

// handleEntities returns the Home Assistant read models built from the
// current cache.
func (s *Server) handleEntities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Entities())
}
