package mqtt

import (
	"fmt"
	"strings"
)

// Topic defaults.
const (
	DefaultTopicPrefix     = "comfortclick"
	DefaultDiscoveryPrefix = "homeassistant"
)

// Topics builds the bridge's topic names.
//
// State and command topics live under Prefix; discovery configs live under
// DiscoveryPrefix:
//
//	topics := mqtt.Topics{Prefix: "comfortclick", DiscoveryPrefix: "homeassistant"}
//	topics.State("lock", "front_door")     // comfortclick/lock/front_door/state
//	topics.Discovery("lock", "front_door") // homeassistant/lock/front_door/config
type Topics struct {
	Prefix          string
	DiscoveryPrefix string
}

// NewTopics returns Topics with empty prefixes replaced by the defaults.
func NewTopics(prefix, discoveryPrefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if discoveryPrefix == "" {
		discoveryPrefix = DefaultDiscoveryPrefix
	}
	return Topics{
		Prefix:          strings.TrimSuffix(prefix, "/"),
		DiscoveryPrefix: strings.TrimSuffix(discoveryPrefix, "/"),
	}
}

// Status is the bridge process status topic (JSON payload, LWT).
//
// Example: comfortclick/status
func (t Topics) Status() string {
	return t.Prefix + "/status"
}

// PanelAvailability carries "online" while panel polls succeed.
//
// Example: comfortclick/panel/availability
func (t Topics) PanelAvailability() string {
	return t.Prefix + "/panel/availability"
}

// Discovery is the retained discovery config topic for one entity.
//
// Example: homeassistant/climate/room_1_heat_01/config
func (t Topics) Discovery(component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/config", t.DiscoveryPrefix, component, objectID)
}

// State is the primary state topic for one entity.
//
// Example: comfortclick/fan/fan_01/state
func (t Topics) State(component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/state", t.Prefix, component, objectID)
}

// Attribute is a named sub-state topic, used by climate entities.
//
// Example: comfortclick/climate/room_1_heat_01/current_temperature
func (t Topics) Attribute(component, objectID, attr string) string {
	return fmt.Sprintf("%s/%s/%s/%s", t.Prefix, component, objectID, attr)
}

// Command is the command topic for one entity.
//
// Example: comfortclick/lock/front_door/set
func (t Topics) Command(component, objectID string) string {
	return fmt.Sprintf("%s/%s/%s/set", t.Prefix, component, objectID)
}

// AttributeCommand is the command topic for a named attribute.
//
// Example: comfortclick/climate/room_1_heat_01/target_temperature/set
func (t Topics) AttributeCommand(component, objectID, attr string) string {
	return fmt.Sprintf("%s/%s/%s/%s/set", t.Prefix, component, objectID, attr)
}

// CommandFilters are the subscription filters matching every entity and
// attribute command topic under Prefix.
func (t Topics) CommandFilters() []string {
	return []string{
		t.Prefix + "/+/+/set",
		t.Prefix + "/+/+/+/set",
	}
}

// ParseCommand splits a command topic into component, object id and the
// optional attribute. ok is false for topics that are not command topics.
func (t Topics) ParseCommand(topic string) (component, objectID, attr string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Prefix+"/")
	if !found {
		return "", "", "", false
	}
	rest, found = strings.CutSuffix(rest, "/set")
	if !found {
		return "", "", "", false
	}
	parts := strings.Split(rest, "/")
	switch len(parts) {
	case 2:
		return parts[0], parts[1], "", true
	case 3:
		return parts[0], parts[1], parts[2], true
	}
	return "", "", "", false
}

// ObjectID turns a unique id into a topic-safe object id: lower case, with
// every character outside [a-z0-9_-] replaced by '_'.
func ObjectID(uniqueID string) string {
	var b strings.Builder
	b.Grow(len(uniqueID))
	for _, r := range strings.ToLower(uniqueID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
