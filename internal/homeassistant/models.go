package homeassistant

// Command and state payloads on the wire.
const (
	PayloadOn       = "ON"
	PayloadOff      = "OFF"
	PayloadLock     = "LOCK"
	PayloadUnlock   = "UNLOCK"
	PayloadOnline   = "online"
	PayloadOffline  = "offline"
	TemperatureUnit = "C"
)

// Climate attribute topics.
const (
	attrCurrentTemperature = "current_temperature"
	attrTargetTemperature  = "target_temperature"
	attrAction             = "action"
	attrMode               = "mode"
	attrAttributes         = "attributes"
)

type device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

type availability struct {
	Topic               string `json:"topic"`
	ValueTemplate       string `json:"value_template,omitempty"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
}

// baseConfig holds the fields every discovery config carries.
type baseConfig struct {
	UniqueID         string         `json:"unique_id"`
	ObjectID         string         `json:"object_id"`
	Name             string         `json:"name"`
	Device           device         `json:"device"`
	Availability     []availability `json:"availability"`
	AvailabilityMode string         `json:"availability_mode"`
}

type fanConfig struct {
	baseConfig
	StateTopic   string `json:"state_topic"`
	CommandTopic string `json:"command_topic"`
	PayloadOn    string `json:"payload_on"`
	PayloadOff   string `json:"payload_off"`
}

type lockConfig struct {
	baseConfig
	StateTopic    string `json:"state_topic"`
	CommandTopic  string `json:"command_topic"`
	PayloadLock   string `json:"payload_lock"`
	PayloadUnlock string `json:"payload_unlock"`
	StateLocked   string `json:"state_locked"`
	StateUnlocked string `json:"state_unlocked"`
	Optimistic    bool   `json:"optimistic"`
}

type climateConfig struct {
	baseConfig
	CurrentTemperatureTopic string   `json:"current_temperature_topic"`
	TemperatureStateTopic   string   `json:"temperature_state_topic"`
	TemperatureCommandTopic string   `json:"temperature_command_topic"`
	ActionTopic             string   `json:"action_topic"`
	ModeStateTopic          string   `json:"mode_state_topic"`
	Modes                   []string `json:"modes"`
	MinTemp                 float64  `json:"min_temp"`
	MaxTemp                 float64  `json:"max_temp"`
	TempStep                float64  `json:"temp_step"`
	TemperatureUnit         string   `json:"temperature_unit"`
	Precision               float64  `json:"precision"`
}

type selectConfig struct {
	baseConfig
	StateTopic   string   `json:"state_topic"`
	CommandTopic string   `json:"command_topic"`
	Options      []string `json:"options"`
}

type sensorConfig struct {
	baseConfig
	StateTopic          string `json:"state_topic"`
	DeviceClass         string `json:"device_class,omitempty"`
	UnitOfMeasurement   string `json:"unit_of_measurement,omitempty"`
	StateClass          string `json:"state_class,omitempty"`
	JSONAttributesTopic string `json:"json_attributes_topic,omitempty"`
}
