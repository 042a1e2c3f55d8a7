package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/objects", func(r chi.Router) {
			r.Use(s.requireBridge)
			r.Get("/", s.handleListObjects)
			r.Post("/refresh", s.handleRefresh)

			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetObject)
				r.Get("/trend", s.handleTrend)
				r.Put("/properties/{property}", s.handleWriteProperty)
			})
		})

		r.With(s.requireBridge).Get("/entities", s.handleEntities)

		r.Route("/wizard", func(r chi.Router) {
			r.Post("/", s.handleWizardBegin)
			r.Get("/{id}", s.handleWizardGet)
			r.Post("/{id}/submit", s.handleWizardSubmit)
			r.Delete("/{id}", s.handleWizardCancel)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Get("/{id}", s.handleGetEntry)
			r.Delete("/{id}", s.handleDeleteEntry)
		})

		r.Get("/audit", s.handleListAuditLogs)
	})

	r.Get(s.wsPath(), s.handleWebSocket)

	return r
}

// wsPath returns the configured WebSocket path.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.bridge != nil {
		m := s.bridge.GetMetrics()
		resp["bridge"] = map[string]any{
			"device": m.Device,
			"status": m.Status,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
