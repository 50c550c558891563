package entity

import "github.com/nerrad567/comfortclick-bridge/internal/devices"

// UtilitySensor exposes a meter reading verbatim.
type UtilitySensor struct {
	cfg  devices.UtilityConfig
	deps Options
	n    *notifier
}

// NewUtilitySensor creates a utility sensor entity.
func NewUtilitySensor(cfg devices.UtilityConfig, deps Options) *UtilitySensor {
	return &UtilitySensor{
		cfg:  cfg,
		deps: deps,
		n:    newNotifier(cfg.ID, cfg.Name, KindSensor, deps),
	}
}

func (u *UtilitySensor) UniqueID() string { return u.n.id }
func (u *UtilitySensor) Name() string     { return u.cfg.Name }
func (u *UtilitySensor) Kind() Kind       { return KindSensor }
func (u *UtilitySensor) State() State     { return u.n.state() }

// Description returns how the reading should be presented.
func (u *UtilitySensor) Description() devices.SensorDescription { return u.cfg.Description }

// HandleUpdate emits the raw cached value.
func (u *UtilitySensor) HandleUpdate() {
	u.n.emit(u.deps.Reader.GetValue(u.cfg.ID))
}
