// Package homeassistant exposes the bridge's entities over MQTT using the
// Home Assistant discovery convention.
//
// A Publisher announces a retained discovery config per entity, mirrors every
// emitted entity state onto retained state topics, keeps the panel
// availability topic in step with the coordinator, and routes command topic
// messages to the entity registry.
//
// Topic layout (prefixes configurable):
//
//	homeassistant/<component>/<object_id>/config     discovery, retained
//	comfortclick/<component>/<object_id>/state       state, retained
//	comfortclick/<component>/<object_id>/set         commands
//	comfortclick/climate/<object_id>/<attr>          climate sub-states
//	comfortclick/status                              bridge status JSON (LWT)
//	comfortclick/panel/availability                  online | offline
//
// Entities are only available to Home Assistant while both the bridge and
// the panel are online (availability_mode "all").
package homeassistant
