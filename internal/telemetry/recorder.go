// Package telemetry turns emitted entity states into time-series points.
package telemetry

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/comfortclick-bridge/internal/devices"
	"github.com/nerrad567/comfortclick-bridge/internal/entity"
)

// PointWriter receives converted points. *influxdb.Client satisfies it.
type PointWriter interface {
	WriteEntityState(entityID, kind string, fields map[string]any, ts time.Time)
	WriteUtilityReading(entityID, deviceClass, unit string, value float64, ts time.Time)
}

// Recorder is an entity.Sink writing every state change to a PointWriter.
type Recorder struct {
	w         PointWriter
	utilities map[string]devices.SensorDescription
}

// NewRecorder creates a Recorder. Utility sensors found in entities also get
// a utility_meter reading per numeric state.
func NewRecorder(w PointWriter, entities []entity.Entity) *Recorder {
	r := &Recorder{w: w, utilities: make(map[string]devices.SensorDescription)}
	for _, e := range entities {
		if u, ok := e.(*entity.UtilitySensor); ok {
			r.utilities[u.UniqueID()] = u.Description()
		}
	}
	return r
}

// StateChanged implements entity.Sink.
func (r *Recorder) StateChanged(st entity.State) {
	ts := st.ChangedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	r.w.WriteEntityState(st.EntityID, string(st.Kind), Fields(st.Value), ts)

	if d, ok := r.utilities[st.EntityID]; ok {
		if v, ok := number(st.Value); ok {
			r.w.WriteUtilityReading(st.EntityID, d.DeviceClass, d.Unit, v, ts)
		}
	}
}

// Fields maps a state value to fields with one stable type per key:
// "on" bool, "state" string, "value" float, "raw" string, plus the
// thermostat and ventilation fields.
func Fields(value any) map[string]any {
	switch v := value.(type) {
	case nil:
		return nil
	case entity.ThermostatState:
		return map[string]any{
			"current_temperature": v.CurrentTemperature,
			"target_temperature":  v.TargetTemperature,
			"action":              string(v.Action),
			"mode":                v.Mode,
		}
	case entity.VentTemperature:
		fields := map[string]any{"mode": string(v.Mode)}
		if f, ok := number(v.Value); ok {
			fields["value"] = f
		}
		return fields
	case bool:
		return map[string]any{"on": v}
	case string:
		if f, ok := number(v); ok {
			return map[string]any{"value": f}
		}
		return map[string]any{"state": v}
	}
	if f, ok := number(value); ok {
		return map[string]any{"value": f}
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return map[string]any{"raw": string(data)}
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}
