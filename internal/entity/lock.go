package entity

import (
	"context"
	"fmt"

	"github.com/nerrad567/comfortclick-bridge/internal/devices"
)

// Lock states.
const (
	LockOpen   = "open"
	LockLocked = "locked"
)

// Lock is a door that can be released remotely and relocks on its own.
type Lock struct {
	cfg  devices.LockConfig
	deps Options
	n    *notifier
}

// NewLock creates a lock entity.
func NewLock(cfg devices.LockConfig, deps Options) *Lock {
	return &Lock{
		cfg:  cfg,
		deps: deps,
		n:    newNotifier(cfg.DoorID, cfg.DoorName, KindLock, deps),
	}
}

func (l *Lock) UniqueID() string { return l.n.id }
func (l *Lock) Name() string     { return l.cfg.DoorName }
func (l *Lock) Kind() Kind       { return KindLock }
func (l *Lock) State() State     { return l.n.state() }

// HandleUpdate emits open or locked.
func (l *Lock) HandleUpdate() {
	l.n.emit(lockState(DoorOpen(l.deps.Reader, l.cfg.DoorID)))
}

// Unlock releases the door and marks it open once the panel accepted the write.
func (l *Lock) Unlock(ctx context.Context) error {
	if err := l.deps.Writer.SetValue(ctx, l.cfg.DoorID, true); err != nil {
		return err
	}
	l.deps.logDebug("marking door as open", "entity_id", l.n.id)
	l.n.emit(LockOpen)
	return nil
}

// Lock does nothing: the panel relocks the door after its own timeout.
func (l *Lock) Lock(context.Context) error {
	return nil
}

// Handle accepts lock and unlock.
func (l *Lock) Handle(ctx context.Context, cmd Command) error {
	switch cmd.Name {
	case CommandUnlock:
		return l.Unlock(ctx)
	case CommandLock:
		return l.Lock(ctx)
	}
	return fmt.Errorf("%w: %s on lock", ErrUnsupportedCommand, cmd.Name)
}

func lockState(open bool) string {
	if open {
		return LockOpen
	}
	return LockLocked
}
