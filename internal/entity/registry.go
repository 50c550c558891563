package entity

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/comfortclick-bridge/internal/devices"
)

// Registry holds every entity built from the device configuration, in
// registration order: fans, thermostats, locks, utilities, then ventilation.
//
// Thread Safety:
//   - The entity set is fixed after Build. HandleUpdate is called from the
//     poll goroutine while commands arrive from API and MQTT goroutines.
type Registry struct {
	entities []Entity
	byID     map[string]Entity

	// updateMu serialises HandleUpdate passes.
	updateMu sync.Mutex
	logger   Logger
}

// Build creates all entities described by cfg.
//
// Returns:
//   - *Registry: entities in registration order
//   - error: two records produce the same unique id
func Build(cfg *devices.Config, deps Options) (*Registry, error) {
	r := &Registry{
		byID:   make(map[string]Entity),
		logger: deps.Logger,
	}

	for _, f := range cfg.Fans {
		if err := r.add(NewFan(f, deps)); err != nil {
			return nil, err
		}
	}
	for _, t := range cfg.Thermostats {
		if err := r.add(NewThermostat(t, deps)); err != nil {
			return nil, err
		}
	}
	for _, l := range cfg.Locks {
		if err := r.add(NewLock(l, deps)); err != nil {
			return nil, err
		}
	}
	for _, u := range cfg.Utilities {
		if err := r.add(NewUtilitySensor(u, deps)); err != nil {
			return nil, err
		}
	}
	if cfg.Vent != nil {
		vent := *cfg.Vent
		for _, e := range []Entity{
			NewVentModeSelect(vent, deps),
			NewVentTempSelect(vent, deps),
			NewVentTempSensor(vent, deps),
		} {
			if err := r.add(e); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

func (r *Registry) add(e Entity) error {
	id := e.UniqueID()
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("entity: duplicate unique id %q", id)
	}
	r.byID[id] = e
	r.entities = append(r.entities, e)
	return nil
}

// All returns the entities in registration order.
func (r *Registry) All() []Entity {
	out := make([]Entity, len(r.entities))
	copy(out, r.entities)
	return out
}

// Get looks an entity up by unique id.
func (r *Registry) Get(id string) (Entity, bool) {
	e, ok := r.byID[id]
	return e, ok
}

// Len returns the number of entities.
func (r *Registry) Len() int {
	return len(r.entities)
}

// States returns every entity's last emitted state in registration order.
func (r *Registry) States() []State {
	out := make([]State, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, e.State())
	}
	return out
}

// HandleUpdate lets every entity re-derive its state. The coordinator calls
// it after each successful poll.
func (r *Registry) HandleUpdate() {
	r.updateMu.Lock()
	defer r.updateMu.Unlock()

	for _, e := range r.entities {
		e.HandleUpdate()
	}
}

// Dispatch runs cmd against the entity with the given id. The context passed
// to the panel write carries the entity id (see EntityIDFromContext).
//
// Returns:
//   - ErrNotFound: no entity has that id
//   - ErrUnsupportedCommand: the entity is read-only or rejects cmd
//   - any error from the entity or the panel write
func (r *Registry) Dispatch(ctx context.Context, id string, cmd Command) error {
	e, ok := r.byID[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	c, ok := e.(Controllable)
	if !ok {
		return fmt.Errorf("%w: %s is read-only", ErrUnsupportedCommand, id)
	}

	if r.logger != nil {
		r.logger.Info("dispatching command", "entity_id", id, "command", cmd.Name)
	}
	if err := c.Handle(WithEntityID(ctx, id), cmd); err != nil {
		if r.logger != nil {
			r.logger.Warn("command failed", "entity_id", id, "command", cmd.Name, "error", err)
		}
		return err
	}
	return nil
}
