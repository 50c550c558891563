package entity

import (
	"context"
	"errors"
	"time"
)

// Errors returned by commands.
var (
	ErrNotFound           = errors.New("entity: not found")
	ErrUnsupportedCommand = errors.New("entity: unsupported command")
	ErrUnknownOption      = errors.New("entity: unknown option")
	ErrOutOfRange         = errors.New("entity: value out of range")
	ErrInvalidValue       = errors.New("entity: invalid command value")
)

// Kind is the platform component an entity maps to.
type Kind string

// Entity kinds.
const (
	KindFan     Kind = "fan"
	KindClimate Kind = "climate"
	KindLock    Kind = "lock"
	KindSelect  Kind = "select"
	KindSensor  Kind = "sensor"
)

// Reader reads cached raw values. A nil result means "currently unknown".
type Reader interface {
	GetValue(name string) any
}

// Writer pushes a value to one panel point.
type Writer interface {
	SetValue(ctx context.Context, name string, value any) error
}

// Entity is a consumer of cache updates.
type Entity interface {
	UniqueID() string
	Name() string
	Kind() Kind

	// HandleUpdate re-derives state from the cache and emits it if changed.
	HandleUpdate()

	// State returns the last emitted state. Value is nil before the first emit.
	State() State
}

// Controllable is implemented by entities that accept commands.
type Controllable interface {
	Entity
	Handle(ctx context.Context, cmd Command) error
}

// State is one emitted entity state.
type State struct {
	EntityID  string    `json:"entity_id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Value     any       `json:"value"`
	ChangedAt time.Time `json:"changed_at"`
}

// Sink receives emitted states.
type Sink interface {
	StateChanged(st State)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(st State)

// StateChanged calls f(st).
func (f SinkFunc) StateChanged(st State) { f(st) }

// Sinks fans a state out to several sinks in order. Nil entries are skipped.
type Sinks []Sink

// StateChanged forwards st to every sink.
func (s Sinks) StateChanged(st State) {
	for _, sink := range s {
		if sink != nil {
			sink.StateChanged(st)
		}
	}
}

// Command names accepted by Handle.
const (
	CommandTurnOn         = "turn_on"
	CommandTurnOff        = "turn_off"
	CommandLock           = "lock"
	CommandUnlock         = "unlock"
	CommandSetTemperature = "set_temperature"
	CommandSelectOption   = "select_option"
)

// Command is a request to change an entity.
type Command struct {
	Name  string `json:"command"`
	Value any    `json:"value,omitempty"`
}

// Logger is the logging surface entities need.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type ctxKey struct{}

// WithEntityID tags ctx with the entity a panel write belongs to.
func WithEntityID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// EntityIDFromContext returns the entity id set by WithEntityID.
func EntityIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok
}
