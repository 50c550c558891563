package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/comfortclick-bridge/internal/comfortclick"
	"github.com/nerrad567/comfortclick-bridge/internal/coordinator"
)

// maxQueryParamLen bounds free-text query parameters.
const maxQueryParamLen = 256

// refreshTimeout bounds a manual poll once it no longer follows the request.
const refreshTimeout = 30 * time.Second

// handleValues returns the cached panel values. With ?name= it returns the
// single value matching the normalized name; a name missing from the cache
// is a 404 rather than a null value.
func (s *Server) handleValues(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		records := s.values.Snapshot()
		writeJSON(w, http.StatusOK, map[string]any{
			"values": records,
			"count":  len(records),
		})
		return
	}

	if len(name) > maxQueryParamLen {
		writeBadRequest(w, "name is too long")
		return
	}
	value, ok := s.values.Lookup(name)
	if !ok {
		writeNotFound(w, "no cached value for "+name)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":       name,
		"normalized": comfortclick.NormalizeName(name),
		"value":      value,
	})
}

// handleRefresh runs one poll immediately. A poll already running yields
// 409 and no second request is made to the panel. The poll is detached from
// the request, so a client hanging up does not count as a panel failure.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), refreshTimeout)
	defer cancel()

	err := s.poller.Refresh(ctx)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, s.poller.Status())
	case errors.Is(err, coordinator.ErrPollInFlight):
		writeError(w, http.StatusConflict, ErrCodeConflict, "a poll is already in flight")
	case errors.Is(err, coordinator.ErrNotReady):
		writeUnavailable(w, "panel session is not set up")
	default:
		writeError(w, http.StatusBadGateway, ErrCodePanel, err.Error())
	}
}

// handleStatus returns the coordinator status.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.poller.Status())
}
