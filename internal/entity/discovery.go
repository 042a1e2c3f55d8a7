package entity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/mqtt"
)

// Home Assistant MQTT components.
const (
	ComponentClimate      = "climate"
	ComponentSensor       = "sensor"
	ComponentBinarySensor = "binary_sensor"
)

// stateValueTemplate extracts the value from a bridge StateMessage.
const stateValueTemplate = "{{ value_json.value }}"

// availabilityTemplate reads the bridge health message; only an offline or
// stopping bridge marks entities unavailable.
const availabilityTemplate = "{{ 'offline' if value_json.status in ['offline', 'stopping'] else 'online' }}"

// DiscoveryDevice is the device block of a discovery payload.
type DiscoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name,omitempty"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// DiscoveryConfig is a Home Assistant MQTT discovery payload. Fields not
// used by a component are left empty.
type DiscoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	ObjectID          string          `json:"object_id,omitempty"`
	Device            DiscoveryDevice `json:"device"`
	AvailabilityTopic string          `json:"availability_topic,omitempty"`
	AvailabilityTmpl  string          `json:"availability_template,omitempty"`
	EntityCategory    string          `json:"entity_category,omitempty"`

	StateTopic        string `json:"state_topic,omitempty"`
	ValueTemplate     string `json:"value_template,omitempty"`
	DeviceClass       string `json:"device_class,omitempty"`
	StateClass        string `json:"state_class,omitempty"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`

	PayloadOn  string `json:"payload_on,omitempty"`
	PayloadOff string `json:"payload_off,omitempty"`

	CurrentTemperatureTopic    string   `json:"current_temperature_topic,omitempty"`
	CurrentTemperatureTemplate string   `json:"current_temperature_template,omitempty"`
	CurrentHumidityTopic       string   `json:"current_humidity_topic,omitempty"`
	CurrentHumidityTemplate    string   `json:"current_humidity_template,omitempty"`
	PresetModeStateTopic       string   `json:"preset_mode_state_topic,omitempty"`
	PresetModeValueTemplate    string   `json:"preset_mode_value_template,omitempty"`
	PresetModeCommandTopic     string   `json:"preset_mode_command_topic,omitempty"`
	PresetModeCommandTemplate  string   `json:"preset_mode_command_template,omitempty"`
	PresetModes                []string `json:"preset_modes,omitempty"`
	Modes                      []string `json:"modes,omitempty"`
	TemperatureUnit            string   `json:"temperature_unit,omitempty"`
}

// Discovery is one config payload and where it is published.
type Discovery struct {
	Component string
	UniqueID  string
	Config    DiscoveryConfig
}

// Topic returns the discovery topic under prefix.
func (d Discovery) Topic(prefix string) string {
	return mqtt.Topics{}.Discovery(prefix, d.Component, d.UniqueID)
}

var unsafeID = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func uniqueID(parts ...string) string {
	return unsafeID.ReplaceAllString(strings.Join(parts, "_"), "_")
}

// DiscoveryConfigs builds discovery payloads for every entity in set.
// State topics point at the bridge's retained per-property topics for
// deviceName; the diagnostic sensor reads the health topic.
func DiscoveryConfigs(set Set, dev Device, deviceName string) []Discovery {
	topics := mqtt.Topics{}
	block := DiscoveryDevice{
		Identifiers:  []string{uniqueID("eclypse", dev.ID)},
		Name:         dev.Name,
		Manufacturer: Manufacturer,
		Model:        dev.Model,
		SWVersion:    dev.SoftwareVersion,
	}
	availability := topics.Health(deviceName)
	state := func(object string) string {
		return topics.State(deviceName, object, bacnet.PropPresentValue)
	}

	var out []Discovery

	if c := set.Climate; c != nil {
		id := uniqueID(dev.ID, "thermostat")
		out = append(out, Discovery{
			Component: ComponentClimate,
			UniqueID:  id,
			Config: DiscoveryConfig{
				Name:                       "Thermostat",
				UniqueID:                   id,
				Device:                     block,
				AvailabilityTopic:          availability,
				AvailabilityTmpl:           availabilityTemplate,
				CurrentTemperatureTopic:    state(TemperatureObject),
				CurrentTemperatureTemplate: stateValueTemplate,
				CurrentHumidityTopic:       state(HumidityObject),
				CurrentHumidityTemplate:    "{{ value_json.value | round(0) }}",
				PresetModeStateTopic:       state(OccupancyObject),
				PresetModeValueTemplate:    presetValueTemplate(),
				PresetModeCommandTopic:     topics.Command(deviceName, OccupancyObject, bacnet.PropPresentValue),
				PresetModeCommandTemplate:  presetCommandTemplate(),
				PresetModes:                c.Presets,
				Modes:                      []string{"off", "heat", "cool", HVACModeHeatCool},
				TemperatureUnit:            "F",
			},
		})
	}

	for _, s := range set.Sensors {
		id := uniqueID(dev.ID, "sensor", s.Object)
		out = append(out, Discovery{
			Component: ComponentSensor,
			UniqueID:  id,
			Config: DiscoveryConfig{
				Name:              s.Name,
				UniqueID:          id,
				Device:            block,
				AvailabilityTopic: availability,
				AvailabilityTmpl:  availabilityTemplate,
				StateTopic:        state(s.Object),
				ValueTemplate:     sensorValueTemplate(),
				DeviceClass:       s.DeviceClass,
				StateClass:        "measurement",
				UnitOfMeasurement: s.Unit,
			},
		})
	}

	for _, b := range set.BinarySensors {
		id := uniqueID(dev.ID, "binarysensor", b.Object)
		out = append(out, Discovery{
			Component: ComponentBinarySensor,
			UniqueID:  id,
			Config: DiscoveryConfig{
				Name:              b.Name,
				UniqueID:          id,
				Device:            block,
				AvailabilityTopic: availability,
				AvailabilityTmpl:  availabilityTemplate,
				StateTopic:        state(b.Object),
				ValueTemplate:     stateValueTemplate,
				PayloadOn:         bacnet.Active,
				PayloadOff:        bacnet.Inactive,
			},
		})
	}

	diagID := uniqueID(dev.ID, "sensor", "api_execution_time")
	out = append(out, Discovery{
		Component: ComponentSensor,
		UniqueID:  diagID,
		Config: DiscoveryConfig{
			Name:              "API Execution Time",
			UniqueID:          diagID,
			Device:            block,
			EntityCategory:    "diagnostic",
			StateTopic:        topics.Health(deviceName),
			ValueTemplate:     "{{ value_json.statistics.request_seconds }}",
			StateClass:        "measurement",
			UnitOfMeasurement: "s",
		},
	})

	return out
}

// sensorValueTemplate mirrors sensorValue: active/inactive become 1/0 and
// other non-numbers -1.
func sensorValueTemplate() string {
	return `{% set v = value_json.value %}` +
		`{% if v is string and v | lower == 'active' %}1` +
		`{% elif v is string and v | lower == 'inactive' %}0` +
		`{% elif v is number %}{{ v }}` +
		`{% else %}-1{% endif %}`
}

func presetValueTemplate() string {
	var b strings.Builder
	b.WriteString("{{ {")
	for i, p := range Presets() {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%d: '%s'", presetStates[p], p)
	}
	b.WriteString("}.get(value_json.value | int, 'none') }}")
	return b.String()
}

func presetCommandTemplate() string {
	var b strings.Builder
	b.WriteString(`{"value": {{ {`)
	for i, p := range Presets() {
		if i > 0 {
			b.WriteString(", ")
		}
		state, _ := occupancyValue(p)
		fmt.Fprintf(&b, "'%s': %d", p, state)
	}
	b.WriteString(`}[value] }}}`)
	return b.String()
}
