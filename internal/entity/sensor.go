package entity

import (
	"strings"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
)

// Sensor device classes inferred from object names.
const (
	ClassHumidity    = "humidity"
	ClassTemperature = "temperature"
	ClassCO2         = "carbon_dioxide"
	ClassPower       = "power"
)

// unknownValue is reported for present values that are not numbers.
const unknownValue = -1.0

// classRule maps an objectName keyword to a device class and unit. Order
// matters: the first match wins.
type classRule struct {
	keyword string
	class   string
	unit    string
}

var classRules = []classRule{
	{"humidity", ClassHumidity, "%"},
	{"temperature", ClassTemperature, TemperatureUnit},
	{"co2", ClassCO2, "ppm"},
	{"speed", "", "rpm"},
	{"power", ClassPower, "kW"},
}

// Sensor is a numeric view of one object's present value.
type Sensor struct {
	Object      string         `json:"object"`
	Name        string         `json:"name"`
	ObjectType  string         `json:"endpoint_type"`
	DeviceClass string         `json:"device_class,omitempty"`
	Unit        string         `json:"unit_of_measurement,omitempty"`
	Value       float64        `json:"value"`
	RawState    any            `json:"raw_state"`
	Attributes  map[string]any `json:"attributes"`
}

func newSensor(obj *bacnet.Object, raw any) Sensor {
	name := displayName(obj)
	s := Sensor{
		Object:     obj.Name(),
		Name:       name,
		ObjectType: obj.Type(),
		Value:      sensorValue(raw),
		RawState:   raw,
		Attributes: attributes(obj),
	}
	s.DeviceClass, s.Unit = inferClass(name)
	return s
}

func inferClass(name string) (class, unit string) {
	lower := strings.ToLower(name)
	for _, r := range classRules {
		if strings.Contains(lower, r.keyword) {
			return r.class, r.unit
		}
	}
	return "", ""
}

// sensorValue maps active/inactive to 1/0 and non-numeric values to -1.
func sensorValue(raw any) float64 {
	if s, ok := raw.(string); ok {
		raw = strings.ToLower(s)
	}
	if n, ok := bacnet.Numeric(raw); ok {
		return n
	}
	return unknownValue
}

// BinarySensor is an on/off view of a binary object's present value.
type BinarySensor struct {
	Object     string         `json:"object"`
	Name       string         `json:"name"`
	ObjectType string         `json:"endpoint_type"`
	IsOn       *bool          `json:"is_on"`
	RawState   any            `json:"raw_state"`
	Attributes map[string]any `json:"attributes"`
}

func newBinarySensor(obj *bacnet.Object, raw any) BinarySensor {
	b := BinarySensor{
		Object:     obj.Name(),
		Name:       displayName(obj),
		ObjectType: obj.Type(),
		RawState:   raw,
		Attributes: attributes(obj),
	}
	if s, ok := raw.(string); ok {
		switch strings.ToLower(s) {
		case bacnet.Active:
			on := true
			b.IsOn = &on
		case bacnet.Inactive:
			off := false
			b.IsOn = &off
		}
	}
	return b
}
