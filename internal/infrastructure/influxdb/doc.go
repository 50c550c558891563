// Package influxdb writes entity history to InfluxDB v2.
//
// Two measurements are written:
//
//	entity_state   tags: entity_id, kind       one point per emitted state
//	utility_meter  tags: entity_id, device_class, unit   numeric meter readings
//
// Writes use the non-blocking batched write API (batch_size, flush_interval
// from config). Write failures surface through SetOnError; connection and
// health check errors are returned directly.
package influxdb
