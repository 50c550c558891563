package devices

// Utility types accepted in the utilities group.
const (
	UtilityWater       = "water"
	UtilityElectricity = "electricity"
	UtilityHeating     = "heating"
)

// State classes and units used by sensor descriptions.
const (
	StateClassTotalIncreasing = "total_increasing"
	StateClassMeasurement     = "measurement"

	UnitCubicMeters   = "m³"
	UnitKilowattHours = "kWh"
	UnitMegawattHours = "MWh"
	UnitCelsius       = "°C"
)

// SensorDescription describes how a sensor value should be presented.
type SensorDescription struct {
	Key         string `json:"key"`
	DeviceClass string `json:"device_class"`
	Unit        string `json:"unit_of_measurement"`
	StateClass  string `json:"state_class"`
}

var (
	waterSensor = SensorDescription{
		Key:         "water_sensor",
		DeviceClass: "water",
		Unit:        UnitCubicMeters,
		StateClass:  StateClassTotalIncreasing,
	}
	electricitySensor = SensorDescription{
		Key:         "electricity_sensor",
		DeviceClass: "energy",
		Unit:        UnitKilowattHours,
		StateClass:  StateClassTotalIncreasing,
	}
	heatingSensor = SensorDescription{
		Key:         "heating_sensor",
		DeviceClass: "energy",
		Unit:        UnitMegawattHours,
		StateClass:  StateClassTotalIncreasing,
	}

	// VentTemperatureSensor describes the ventilation supply air temperature.
	VentTemperatureSensor = SensorDescription{
		Key:         "vent_temperature_sensor",
		DeviceClass: "temperature",
		Unit:        UnitCelsius,
		StateClass:  StateClassMeasurement,
	}
)

// DescriptionFor maps a utility type to its sensor description.
func DescriptionFor(utilityType string) (SensorDescription, error) {
	switch utilityType {
	case UtilityWater:
		return waterSensor, nil
	case UtilityElectricity:
		return electricitySensor, nil
	case UtilityHeating:
		return heatingSensor, nil
	default:
		return SensorDescription{}, &UnknownDescriptionTypeError{Type: utilityType}
	}
}
