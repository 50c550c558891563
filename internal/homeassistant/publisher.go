package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/comfortclick-bridge/internal/audit"
	"github.com/nerrad567/comfortclick-bridge/internal/entity"
	"github.com/nerrad567/comfortclick-bridge/internal/infrastructure/mqtt"
)

// commandTimeout bounds one panel write triggered from MQTT.
const commandTimeout = 15 * time.Second

// Errors returned by the publisher.
var (
	ErrMissingDependency = errors.New("homeassistant: missing required dependency")
	ErrUnknownTopic      = errors.New("homeassistant: no entity for topic")
	ErrInvalidPayload    = errors.New("homeassistant: invalid command payload")
)

// MQTTClient is the broker surface the publisher needs.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Registry is the entity set the publisher announces and commands.
// *entity.Registry satisfies it.
type Registry interface {
	All() []entity.Entity
	Dispatch(ctx context.Context, id string, cmd entity.Command) error
}

// Logger is the logging surface the publisher needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options configures a Publisher.
type Options struct {
	Client   MQTTClient // required
	Registry Registry   // required
	Topics   mqtt.Topics
	QoS      byte

	// DeviceID groups all entities under one device. Defaults to "comfortclick".
	DeviceID string
	Version  string
	Logger   Logger

	// Context is the bridge lifetime. Command writes derive from it, so
	// shutdown cancels them. Defaults to context.Background().
	Context context.Context
}

// binding ties an entity to its topic object id.
type binding struct {
	entity    entity.Entity
	component string
	objectID  string
}

// Publisher mirrors entities onto MQTT.
//
// Thread Safety:
//   - StateChanged is called from the poll goroutine and from command
//     goroutines; HandleCommand runs on paho goroutines. All are safe for
//     concurrent use.
type Publisher struct {
	ctx      context.Context
	client   MQTTClient
	registry Registry
	topics   mqtt.Topics
	qos      byte
	deviceID string
	version  string
	logger   Logger

	byEntity map[string]binding
	byTopic  map[string]binding // key: component + "/" + objectID
	order    []binding

	mu         sync.Mutex
	panelKnown bool
	panelUp    bool
}

// New creates a Publisher for every entity in the registry.
//
// Returns:
//   - *Publisher: ready to Announce and Subscribe
//   - error: a required dependency is missing
func New(opts Options) (*Publisher, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("%w: mqtt client", ErrMissingDependency)
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("%w: entity registry", ErrMissingDependency)
	}
	if opts.Topics.Prefix == "" || opts.Topics.DiscoveryPrefix == "" {
		opts.Topics = mqtt.NewTopics(opts.Topics.Prefix, opts.Topics.DiscoveryPrefix)
	}
	if opts.DeviceID == "" {
		opts.DeviceID = "comfortclick"
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	p := &Publisher{
		ctx:      opts.Context,
		client:   opts.Client,
		registry: opts.Registry,
		topics:   opts.Topics,
		qos:      opts.QoS,
		deviceID: opts.DeviceID,
		version:  opts.Version,
		logger:   opts.Logger,
		byEntity: make(map[string]binding),
		byTopic:  make(map[string]binding),
	}

	for _, e := range opts.Registry.All() {
		b := binding{
			entity:    e,
			component: string(e.Kind()),
			objectID:  mqtt.ObjectID(e.UniqueID()),
		}
		key := b.component + "/" + b.objectID
		if prev, exists := p.byTopic[key]; exists {
			p.logWarn("object id collision, second entity not exposed",
				"object_id", b.objectID, "entity_id", e.UniqueID(), "other", prev.entity.UniqueID())
			continue
		}
		p.byEntity[e.UniqueID()] = b
		p.byTopic[key] = b
		p.order = append(p.order, b)
	}

	return p, nil
}

// Announce publishes every discovery config, the last known panel
// availability and every entity's last emitted state. Run it on each broker
// (re)connect.
func (p *Publisher) Announce() error {
	var errs []error
	for _, b := range p.order {
		if err := p.publishDiscovery(b); err != nil {
			errs = append(errs, err)
		}
	}

	p.mu.Lock()
	known, up := p.panelKnown, p.panelUp
	p.mu.Unlock()
	if known {
		if err := p.publishAvailability(up); err != nil {
			errs = append(errs, err)
		}
	}

	for _, b := range p.order {
		st := b.entity.State()
		if st.ChangedAt.IsZero() {
			continue
		}
		if err := p.publishState(b, st); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("announcing entities: %w", errors.Join(errs...))
	}
	p.logInfo("entities announced", "count", len(p.order))
	return nil
}

// Subscribe registers the command topic handlers.
func (p *Publisher) Subscribe() error {
	for _, filter := range p.topics.CommandFilters() {
		if err := p.client.Subscribe(filter, p.qos, p.HandleCommand); err != nil {
			return fmt.Errorf("subscribing to %s: %w", filter, err)
		}
	}
	return nil
}

// StateChanged publishes an emitted entity state. It satisfies entity.Sink.
func (p *Publisher) StateChanged(st entity.State) {
	b, ok := p.byEntity[st.EntityID]
	if !ok {
		return
	}
	if err := p.publishState(b, st); err != nil {
		if errors.Is(err, mqtt.ErrNotConnected) {
			p.logDebug("state not published, broker offline", "entity_id", st.EntityID)
			return
		}
		p.logWarn("publishing state failed", "entity_id", st.EntityID, "error", err)
	}
}

// SetPanelAvailable publishes the panel availability when it changes.
func (p *Publisher) SetPanelAvailable(available bool) {
	p.mu.Lock()
	p.panelKnown, p.panelUp = true, available
	p.mu.Unlock()

	if err := p.publishAvailability(available); err != nil {
		p.logWarn("publishing panel availability failed", "available", available, "error", err)
	}
}

// HandleCommand routes one command topic message to the entity registry.
//
// Parameters:
//   - topic: A command topic, e.g. comfortclick/lock/front_door/set
//   - payload: The Home Assistant command payload
//
// Returns:
//   - ErrUnknownTopic: the topic names no exposed entity
//   - ErrInvalidPayload: the payload does not fit the entity
//   - any error from the registry dispatch
func (p *Publisher) HandleCommand(topic string, payload []byte) error {
	component, objectID, attr, ok := p.topics.ParseCommand(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	b, ok := p.byTopic[component+"/"+objectID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}

	cmd, err := commandFor(b.entity.Kind(), attr, strings.TrimSpace(string(payload)))
	if err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}

	ctx, cancel := context.WithTimeout(audit.WithSource(p.ctx, audit.SourceMQTT), commandTimeout)
	defer cancel()
	if err := p.registry.Dispatch(ctx, b.entity.UniqueID(), cmd); err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}
	return nil
}

// commandFor maps a Home Assistant payload to an entity command.
func commandFor(kind entity.Kind, attr, payload string) (entity.Command, error) {
	switch kind {
	case entity.KindFan:
		switch strings.ToUpper(payload) {
		case PayloadOn:
			return entity.Command{Name: entity.CommandTurnOn}, nil
		case PayloadOff:
			return entity.Command{Name: entity.CommandTurnOff}, nil
		}
	case entity.KindLock:
		switch strings.ToUpper(payload) {
		case PayloadLock:
			return entity.Command{Name: entity.CommandLock}, nil
		case PayloadUnlock, "OPEN":
			return entity.Command{Name: entity.CommandUnlock}, nil
		}
	case entity.KindClimate:
		if attr != attrTargetTemperature {
			return entity.Command{}, fmt.Errorf("%w: climate attribute %q", ErrInvalidPayload, attr)
		}
		t, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return entity.Command{}, fmt.Errorf("%w: temperature %q", ErrInvalidPayload, payload)
		}
		return entity.Command{Name: entity.CommandSetTemperature, Value: t}, nil
	case entity.KindSelect:
		if payload != "" {
			return entity.Command{Name: entity.CommandSelectOption, Value: payload}, nil
		}
	case entity.KindSensor:
		return entity.Command{}, fmt.Errorf("%w: sensors are read-only", ErrInvalidPayload)
	}
	return entity.Command{}, fmt.Errorf("%w: %q for %s", ErrInvalidPayload, payload, kind)
}

func (p *Publisher) publishDiscovery(b binding) error {
	cfg, err := p.discoveryConfig(b)
	if err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling discovery for %s: %w", b.entity.UniqueID(), err)
	}
	return p.client.Publish(p.topics.Discovery(b.component, b.objectID), data, p.qos, true)
}

func (p *Publisher) discoveryConfig(b binding) (any, error) {
	base := p.base(b)
	state := p.topics.State(b.component, b.objectID)
	command := p.topics.Command(b.component, b.objectID)

	switch e := b.entity.(type) {
	case *entity.Fan:
		return fanConfig{
			baseConfig:   base,
			StateTopic:   state,
			CommandTopic: command,
			PayloadOn:    PayloadOn,
			PayloadOff:   PayloadOff,
		}, nil
	case *entity.Lock:
		return lockConfig{
			baseConfig:    base,
			StateTopic:    state,
			CommandTopic:  command,
			PayloadLock:   PayloadLock,
			PayloadUnlock: PayloadUnlock,
			StateLocked:   entity.LockLocked,
			StateUnlocked: entity.LockOpen,
		}, nil
	case *entity.Thermostat:
		cfg := e.Config()
		return climateConfig{
			baseConfig:              base,
			CurrentTemperatureTopic: p.topics.Attribute(b.component, b.objectID, attrCurrentTemperature),
			TemperatureStateTopic:   p.topics.Attribute(b.component, b.objectID, attrTargetTemperature),
			TemperatureCommandTopic: p.topics.AttributeCommand(b.component, b.objectID, attrTargetTemperature),
			ActionTopic:             p.topics.Attribute(b.component, b.objectID, attrAction),
			ModeStateTopic:          p.topics.Attribute(b.component, b.objectID, attrMode),
			Modes:                   []string{entity.HVACModeHeatCool},
			MinTemp:                 float64(cfg.MinTemp),
			MaxTemp:                 float64(cfg.MaxTemp),
			TempStep:                cfg.TargetTemperatureStep,
			TemperatureUnit:         TemperatureUnit,
			Precision:               0.1,
		}, nil
	case *entity.VentModeSelect:
		return selectConfig{baseConfig: base, StateTopic: state, CommandTopic: command, Options: e.Options()}, nil
	case *entity.VentTempSelect:
		return selectConfig{baseConfig: base, StateTopic: state, CommandTopic: command, Options: e.Options()}, nil
	case *entity.UtilitySensor:
		d := e.Description()
		return sensorConfig{
			baseConfig:        base,
			StateTopic:        state,
			DeviceClass:       d.DeviceClass,
			UnitOfMeasurement: d.Unit,
			StateClass:        d.StateClass,
		}, nil
	case *entity.VentTempSensor:
		d := e.Description()
		return sensorConfig{
			baseConfig:          base,
			StateTopic:          state,
			DeviceClass:         d.DeviceClass,
			UnitOfMeasurement:   d.Unit,
			StateClass:          d.StateClass,
			JSONAttributesTopic: p.topics.Attribute(b.component, b.objectID, attrAttributes),
		}, nil
	}
	return nil, fmt.Errorf("homeassistant: no discovery mapping for %T", b.entity)
}

func (p *Publisher) base(b binding) baseConfig {
	return baseConfig{
		UniqueID: b.entity.UniqueID(),
		ObjectID: b.objectID,
		Name:     b.entity.Name(),
		Device: device{
			Identifiers:  []string{p.deviceID},
			Name:         "ComfortClick",
			Manufacturer: "ComfortClick",
			Model:        "bOS panel",
			SWVersion:    p.version,
		},
		Availability: []availability{
			{
				Topic:               p.topics.Status(),
				ValueTemplate:       "{{ value_json.status }}",
				PayloadAvailable:    mqtt.StatusOnline,
				PayloadNotAvailable: mqtt.StatusOffline,
			},
			{
				Topic:               p.topics.PanelAvailability(),
				PayloadAvailable:    PayloadOnline,
				PayloadNotAvailable: PayloadOffline,
			},
		},
		AvailabilityMode: "all",
	}
}

func (p *Publisher) publishState(b binding, st entity.State) error {
	switch v := st.Value.(type) {
	case entity.ThermostatState:
		attrs := []struct{ name, value string }{
			{attrCurrentTemperature, formatValue(v.CurrentTemperature)},
			{attrTargetTemperature, formatValue(v.TargetTemperature)},
			{attrAction, string(v.Action)},
			{attrMode, v.Mode},
		}
		for _, a := range attrs {
			topic := p.topics.Attribute(b.component, b.objectID, a.name)
			if err := p.client.Publish(topic, []byte(a.value), p.qos, true); err != nil {
				return err
			}
		}
		return nil

	case entity.VentTemperature:
		attrs, err := json.Marshal(map[string]string{"mode": string(v.Mode)})
		if err != nil {
			return err
		}
		topic := p.topics.Attribute(b.component, b.objectID, attrAttributes)
		if err := p.client.Publish(topic, attrs, p.qos, true); err != nil {
			return err
		}
		return p.client.Publish(p.topics.State(b.component, b.objectID), []byte(formatValue(v.Value)), p.qos, true)

	case bool:
		payload := PayloadOff
		if v {
			payload = PayloadOn
		}
		return p.client.Publish(p.topics.State(b.component, b.objectID), []byte(payload), p.qos, true)
	}

	return p.client.Publish(p.topics.State(b.component, b.objectID), []byte(formatValue(st.Value)), p.qos, true)
}

func (p *Publisher) publishAvailability(available bool) error {
	payload := PayloadOffline
	if available {
		payload = PayloadOnline
	}
	return p.client.Publish(p.topics.PanelAvailability(), []byte(payload), p.qos, true)
}

// formatValue renders a raw panel value as an MQTT payload.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

func (p *Publisher) logDebug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}

func (p *Publisher) logInfo(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}

func (p *Publisher) logWarn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
