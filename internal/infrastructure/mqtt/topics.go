package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every bridge topic.
const TopicPrefix = "eclypse"

// Topic categories (second level of the hierarchy).
const (
	CategoryState   = "state"
	CategoryCommand = "command"
	CategoryAck     = "ack"
	CategoryHealth  = "health"
	CategoryStatus  = "status"
)

// Topics builds bridge topic strings.
//
//	mqtt.Topics{}.State("office", "analogValue_1001", "presentValue")
//	// eclypse/state/office/analogValue_1001/presentValue
type Topics struct{}

func propertyTopic(category, device, object, property string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s", TopicPrefix, category, device, object, property)
}

// State is the retained value topic for one property.
func (Topics) State(device, object, property string) string {
	return propertyTopic(CategoryState, device, object, property)
}

// Command is the write-request topic for one property.
func (Topics) Command(device, object, property string) string {
	return propertyTopic(CategoryCommand, device, object, property)
}

// Ack is the write-acknowledgement topic for one property.
func (Topics) Ack(device, object, property string) string {
	return propertyTopic(CategoryAck, device, object, property)
}

// Health is the retained health report topic for a device.
func (Topics) Health(device string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, CategoryHealth, device)
}

// Status is the online/offline (LWT) topic for an MQTT client.
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix, CategoryStatus, clientID)
}

// CommandSubscription matches every command topic of a device.
func (Topics) CommandSubscription(device string) string {
	return propertyTopic(CategoryCommand, device, "+", "+")
}

// StateSubscription matches every state topic of a device.
func (Topics) StateSubscription(device string) string {
	return fmt.Sprintf("%s/%s/%s/#", TopicPrefix, CategoryState, device)
}

// Discovery is the Home Assistant discovery config topic for one entity.
func (Topics) Discovery(prefix, component, uniqueID string) string {
	return fmt.Sprintf("%s/%s/%s/config", prefix, component, uniqueID)
}

// PropertyAddress identifies the property a per-property topic refers to.
type PropertyAddress struct {
	Category string
	Device   string
	Object   string
	Property string
}

// ParsePropertyTopic splits eclypse/{category}/{device}/{object}/{property}.
func ParsePropertyTopic(topic string) (PropertyAddress, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != TopicPrefix {
		return PropertyAddress{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
	}
	for _, p := range parts[1:] {
		if p == "" || p == "+" || p == "#" {
			return PropertyAddress{}, fmt.Errorf("%w: %q", ErrInvalidTopic, topic)
		}
	}
	return PropertyAddress{
		Category: parts[1],
		Device:   parts[2],
		Object:   parts[3],
		Property: parts[4],
	}, nil
}
