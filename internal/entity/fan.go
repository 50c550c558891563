package entity

import (
	"context"
	"fmt"

	"github.com/nerrad567/comfortclick-bridge/internal/devices"
)

// Fan is a room fan switched through its lock point.
type Fan struct {
	cfg  devices.FanConfig
	deps Options
	n    *notifier
}

// NewFan creates a fan entity.
func NewFan(cfg devices.FanConfig, deps Options) *Fan {
	return &Fan{
		cfg:  cfg,
		deps: deps,
		n:    newNotifier(cfg.UniqueID(), cfg.Name, KindFan, deps),
	}
}

func (f *Fan) UniqueID() string { return f.n.id }
func (f *Fan) Name() string     { return f.cfg.Name }
func (f *Fan) Kind() Kind       { return KindFan }
func (f *Fan) State() State     { return f.n.state() }

// Config returns the fan's device record.
func (f *Fan) Config() devices.FanConfig { return f.cfg }

// HandleUpdate emits the derived on/off state.
func (f *Fan) HandleUpdate() {
	f.n.emit(FanOn(f.deps.Reader, f.cfg))
}

// TurnOn releases the lock. The next poll reports the new state.
func (f *Fan) TurnOn(ctx context.Context) error {
	return f.deps.Writer.SetValue(ctx, f.cfg.LockID, false)
}

// TurnOff engages the lock.
func (f *Fan) TurnOff(ctx context.Context) error {
	return f.deps.Writer.SetValue(ctx, f.cfg.LockID, true)
}

// Handle accepts turn_on and turn_off.
func (f *Fan) Handle(ctx context.Context, cmd Command) error {
	switch cmd.Name {
	case CommandTurnOn:
		return f.TurnOn(ctx)
	case CommandTurnOff:
		return f.TurnOff(ctx)
	}
	return fmt.Errorf("%w: %s on fan", ErrUnsupportedCommand, cmd.Name)
}
