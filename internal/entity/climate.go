package entity

import (
	"math"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
)

// Room sensor objects the thermostat entity reads.
var (
	TemperatureObject = bacnet.ObjectName(bacnet.TypeAnalogValue, 1001)
	HumidityObject    = bacnet.ObjectName(bacnet.TypeAnalogValue, 1002)
	CO2Object         = bacnet.ObjectName(bacnet.TypeAnalogValue, 1003)
	OccupancyObject   = bacnet.ObjectName(bacnet.TypeMultiStateValue, 15)
)

// Preset modes, backed by the occupancy object's present value.
const (
	PresetHome = "home"
	PresetAway = "away"
	PresetEco  = "eco"
)

var presetStates = map[string]int{
	PresetHome: 1,
	PresetAway: 2,
	PresetEco:  4,
}

// Climate defaults.
const (
	TemperatureUnit      = "°F"
	HVACModeHeatCool     = "heat_cool"
	DefaultTargetHigh    = 70.0
	DefaultTargetLow     = 50.0
	climateAttrSeparator = "::"
)

// Presets lists the supported preset modes.
func Presets() []string { return []string{PresetHome, PresetAway, PresetEco} }

// occupancyValue returns the multi-state value that selects preset.
func occupancyValue(preset string) (int, bool) {
	v, ok := presetStates[preset]
	return v, ok
}

// presetFor maps an occupancy state back to its preset, or "".
func presetFor(state int) string {
	for name, v := range presetStates {
		if v == state {
			return name
		}
	}
	return ""
}

// Climate is the thermostat view of the controller.
type Climate struct {
	Temperature *float64 `json:"current_temperature"`
	Humidity    *float64 `json:"current_humidity"`
	CO2         *float64 `json:"current_co2"`
	Occupancy   *int     `json:"occupancy"`
	Preset      string   `json:"preset_mode,omitempty"`

	TemperatureUnit string   `json:"temperature_unit"`
	HVACMode        string   `json:"hvac_mode"`
	TargetHigh      float64  `json:"target_temp_high"`
	TargetLow       float64  `json:"target_temp_low"`
	Presets         []string `json:"preset_modes"`

	// Attributes holds "{objectName}::{object}" -> present value for every
	// tracked object with a present value.
	Attributes map[string]any `json:"attributes"`

	found bool
}

func newClimate() *Climate {
	return &Climate{
		TemperatureUnit: TemperatureUnit,
		HVACMode:        HVACModeHeatCool,
		TargetHigh:      DefaultTargetHigh,
		TargetLow:       DefaultTargetLow,
		Presets:         Presets(),
		Attributes:      make(map[string]any),
	}
}

func (c *Climate) observe(obj *bacnet.Object) {
	pv, ok := obj.Value(bacnet.PropPresentValue)
	if !ok {
		return
	}
	c.Attributes[displayName(obj)+climateAttrSeparator+obj.Name()] = pv

	n, numeric := bacnet.Numeric(pv)
	switch obj.Name() {
	case TemperatureObject:
		c.found = true
		if numeric {
			c.Temperature = &n
		}
	case HumidityObject:
		c.found = true
		if numeric {
			h := math.Round(n)
			c.Humidity = &h
		}
	case CO2Object:
		c.found = true
		if numeric {
			c.CO2 = &n
		}
	case OccupancyObject:
		if numeric {
			state := int(n)
			c.Occupancy = &state
			c.Preset = presetFor(state)
		}
	}
}
