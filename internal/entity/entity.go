package entity

import (
	"strings"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
)

// Manufacturer is reported in every device block.
const Manufacturer = "Distech"

// Device identifies the controller the entities belong to.
type Device struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Model           string `json:"model,omitempty"`
	SoftwareVersion string `json:"sw_version,omitempty"`
}

// Diagnostics are the controller request figures from the latest poll.
type Diagnostics struct {
	RequestSeconds float64 `json:"request_seconds"`
	RequestVolume  int     `json:"request_volume"`
}

// Set is every entity derived from one registry snapshot.
type Set struct {
	Climate       *Climate       `json:"climate,omitempty"`
	Sensors       []Sensor       `json:"sensors"`
	BinarySensors []BinarySensor `json:"binary_sensors"`
	Diagnostics   Diagnostics    `json:"diagnostics"`
}

// Build derives the entity set from reg.
func Build(reg *bacnet.Registry, diag Diagnostics) Set {
	set := Set{
		Sensors:       []Sensor{},
		BinarySensors: []BinarySensor{},
		Diagnostics:   diag,
	}

	climate := newClimate()
	reg.Each(func(obj *bacnet.Object) {
		climate.observe(obj)

		pv, ok := obj.Property(bacnet.PropPresentValue)
		if !ok {
			return
		}
		if bacnet.IsBinary(obj.Type()) {
			set.BinarySensors = append(set.BinarySensors, newBinarySensor(obj, pv.Value()))
			return
		}
		set.Sensors = append(set.Sensors, newSensor(obj, pv.Value()))
	})

	if climate.found {
		set.Climate = climate
	}
	return set
}

// displayName returns the controller's objectName for obj, falling back to
// the registry name.
func displayName(obj *bacnet.Object) string {
	if v, ok := obj.Value(bacnet.PropObjectName); ok {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return obj.Name()
}

// attributes returns every cached property value of obj.
func attributes(obj *bacnet.Object) map[string]any {
	out := make(map[string]any)
	for _, name := range obj.PropertyNames() {
		v, _ := obj.Value(name)
		out[name] = v
	}
	return out
}
