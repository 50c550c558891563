package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultWSPath is used when the websocket config leaves the path empty.
const defaultWSPath = "/ws"

// healthCheckTimeout bounds each dependency check in /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = defaultWSPath
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

		r.Get("/values", s.handleValues)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/status", s.handleStatus)

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", s.handleListEntities)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetEntity)
				r.Post("/command", s.handleCommand)
			})
		})

		r.Get("/audit", s.handleListAuditLogs)
		r.Get(wsPath, s.handleWebSocket)
	})

	return r
}

// handleHealth reports the panel session and each dependency check. The
// status is "ok" only when the panel is available and every check passes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.poller.Status()
	checks := map[string]string{}
	healthy := st.Available

	for name, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := c.HealthCheck(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"panel":   st,
		"checks":  checks,
	})
}
