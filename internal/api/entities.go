package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/comfortclick-bridge/internal/audit"
	"github.com/nerrad567/comfortclick-bridge/internal/entity"
)

// maxEntityIDLen bounds the {id} path parameter.
const maxEntityIDLen = 256

// EntityResponse is one entity with its last emitted state.
type EntityResponse struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Kind       entity.Kind    `json:"kind"`
	State      entity.State   `json:"state"`
	Options    []string       `json:"options,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// CommandRequest is the body of POST /entities/{id}/command.
type CommandRequest struct {
	Command string `json:"command"`
	Value   any    `json:"value,omitempty"`
}

func toEntityResponse(e entity.Entity) EntityResponse {
	resp := EntityResponse{
		ID:    e.UniqueID(),
		Name:  e.Name(),
		Kind:  e.Kind(),
		State: e.State(),
	}

	switch v := e.(type) {
	case interface{ Options() []string }:
		resp.Options = v.Options()
	case *entity.Thermostat:
		cfg := v.Config()
		resp.Attributes = map[string]any{
			"hvac_modes":              []string{"heat_cool"},
			"target_temperature_step": cfg.TargetTemperatureStep,
			"min_temp":                cfg.MinTemp,
			"max_temp":                cfg.MaxTemp,
			"temperature_unit":        "°C",
		}
	case *entity.UtilitySensor:
		d := v.Description()
		resp.Attributes = map[string]any{
			"device_class":        d.DeviceClass,
			"unit_of_measurement": d.Unit,
			"state_class":         d.StateClass,
		}
	case *entity.VentTempSensor:
		d := v.Description()
		resp.Attributes = map[string]any{
			"device_class":        d.DeviceClass,
			"unit_of_measurement": d.Unit,
			"state_class":         d.StateClass,
		}
	}
	return resp
}

// handleListEntities returns every entity in registration order.
func (s *Server) handleListEntities(w http.ResponseWriter, _ *http.Request) {
	all := s.entities.All()
	out := make([]EntityResponse, 0, len(all))
	for _, e := range all {
		out = append(out, toEntityResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entities": out,
		"count":    len(out),
	})
}

// handleGetEntity returns one entity.
func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxEntityIDLen {
		writeBadRequest(w, "invalid entity ID")
		return
	}
	e, ok := s.entities.Get(id)
	if !ok {
		writeNotFound(w, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, toEntityResponse(e))
}

// handleCommand dispatches a command to an entity and returns its state.
//
// Status codes:
//   - 400: malformed body, unsupported command, bad value or unknown option
//   - 404: unknown entity
//   - 502: the panel rejected the write
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxEntityIDLen {
		writeBadRequest(w, "invalid entity ID")
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "command is required")
		return
	}

	ctx := audit.WithSource(r.Context(), audit.SourceAPI)
	err := s.entities.Dispatch(ctx, id, entity.Command{Name: req.Command, Value: req.Value})
	switch {
	case err == nil:
	case errors.Is(err, entity.ErrNotFound):
		writeNotFound(w, "entity not found")
		return
	case errors.Is(err, entity.ErrUnsupportedCommand),
		errors.Is(err, entity.ErrUnknownOption),
		errors.Is(err, entity.ErrOutOfRange),
		errors.Is(err, entity.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	default:
		s.metrics.recordCommand(req.Command, err)
		s.logger.Warn("entity command failed", "entity_id", id, "command", req.Command, "error", err)
		writeError(w, http.StatusBadGateway, ErrCodePanel, err.Error())
		return
	}

	s.metrics.recordCommand(req.Command, nil)
	e, _ := s.entities.Get(id)
	writeJSON(w, http.StatusOK, toEntityResponse(e))
}
