package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementEntityState  = "entity_state"
	MeasurementUtilityMeter = "utility_meter"
)

// WriteEntityState records one emitted entity state.
//
// Parameters:
//   - entityID: The entity unique id
//   - kind: The entity kind (fan, climate, lock, select, sensor)
//   - fields: Field values; keys must keep a stable type per kind
//   - ts: When the state changed
func (c *Client) WriteEntityState(entityID, kind string, fields map[string]any, ts time.Time) {
	if len(fields) == 0 {
		return
	}
	c.WritePointWithTime(MeasurementEntityState,
		map[string]string{
			"entity_id": entityID,
			"kind":      kind,
		},
		fields, ts)
}

// WriteUtilityReading records a meter reading.
func (c *Client) WriteUtilityReading(entityID, deviceClass, unit string, value float64, ts time.Time) {
	c.WritePointWithTime(MeasurementUtilityMeter,
		map[string]string{
			"entity_id":    entityID,
			"device_class": deviceClass,
			"unit":         unit,
		},
		map[string]any{"value": value}, ts)
}

// WritePoint writes a point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp. It is a
// no-op while disconnected.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
