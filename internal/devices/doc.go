// Package devices loads the device configuration records that map semantic
// roles (heating, lock, fan speed, door, ventilation mode) to panel device
// names.
//
// The records come from one YAML file with five groups:
//
//	fans:
//	  - name: "Bedroom fan"
//	    heating_id: "Bedroom\\Heating"
//	    lock_id: "Bedroom\\FanLock"
//	    fan_id: "Bedroom\\FanSpeed"
//	locks:
//	  - door_name: "Front door"
//	    door_id: "Entrance\\Door"
//	thermostats:
//	  - name: "Bedroom"
//	    heating_id: "Bedroom\\Heating"
//	    current_temperature_id: "Bedroom\\Temperature"
//	    target_temperature_id: "Bedroom\\Setpoint"
//	utilities:
//	  - id: "Meters\\ColdWater"
//	    name: "Cold water"
//	    type: water
//	vent:
//	  vent_winter_mode: "Vent\\Winter"
//	  home_mode: "Vent\\Home"
//	  ...
//
// Records are immutable once loaded.
package devices
