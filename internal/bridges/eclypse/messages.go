package eclypse

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
)

// CommandMessage requests a write of one property.
// Topic: eclypse/command/{device}/{object}/{property}
type CommandMessage struct {
	// ID correlates the command with its acknowledgement. Optional.
	ID string `json:"id,omitempty"`

	// Value is written as-is; the controller coerces it using text encoding.
	Value any `json:"value"`

	// Priority is the BACnet write priority (1-16). Nil keeps the property's
	// current priority.
	Priority *int `json:"priority,omitempty"`
}

// ParseCommand decodes and validates a command payload.
func ParseCommand(payload []byte) (CommandMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return CommandMessage{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if _, ok := raw["value"]; !ok {
		return CommandMessage{}, fmt.Errorf("%w: value is required", ErrInvalidCommand)
	}

	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return CommandMessage{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.Priority != nil && (*cmd.Priority < minPriority || *cmd.Priority > maxPriority) {
		return CommandMessage{}, fmt.Errorf("%w: priority %d out of range %d-%d",
			ErrInvalidCommand, *cmd.Priority, minPriority, maxPriority)
	}
	return cmd, nil
}

// BACnet write priority bounds.
const (
	minPriority = 1
	maxPriority = 16
)

// WritePriority returns the command priority or bacnet.NoPriority.
func (m CommandMessage) WritePriority() int {
	if m.Priority == nil {
		return bacnet.NoPriority
	}
	return *m.Priority
}

// AckStatus represents the acknowledgement status of a command.
type AckStatus string

const (
	// AckAccepted indicates the controller accepted the write.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the write could not be executed.
	AckFailed AckStatus = "failed"
)

// Error codes for command failures.
const (
	ErrCodeInvalidCommand  = "INVALID_COMMAND"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeControllerError = "CONTROLLER_ERROR"
)

// AckMessage reports the outcome of a command.
// Topic: eclypse/ack/{device}/{object}/{property}
type AckMessage struct {
	CommandID string    `json:"command_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Object    string    `json:"object"`
	Property  string    `json:"property"`
	Status    AckStatus `json:"status"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAckMessage creates an acknowledgement for a successful command.
func NewAckMessage(id, object, property string) AckMessage {
	return AckMessage{
		CommandID: id,
		Timestamp: time.Now().UTC(),
		Object:    object,
		Property:  property,
		Status:    AckAccepted,
	}
}

// NewAckError creates an acknowledgement with error details.
func NewAckError(id, object, property, code, message string) AckMessage {
	ack := NewAckMessage(id, object, property)
	ack.Status = AckFailed
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// StateMessage carries one property value.
// Topic: eclypse/state/{device}/{object}/{property}
// QoS: 1, Retained: Yes
type StateMessage struct {
	Device    string    `json:"device"`
	Object    string    `json:"object"`
	Property  string    `json:"property"`
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStateMessage creates a state message stamped now.
func NewStateMessage(device, object, property string, value any) StateMessage {
	return StateMessage{
		Device:    device,
		Object:    object,
		Property:  property,
		Value:     value,
		Timestamp: time.Now().UTC(),
	}
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the last poll succeeded and MQTT is connected.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the last poll failed or MQTT is disconnected.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline is published as the MQTT will.
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates no poll has completed yet.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports bridge status.
// Topic: eclypse/health/{device}
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Device        string            `json:"device"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        HealthStatus      `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Connection    *ConnectionStatus `json:"connection,omitempty"`
	Statistics    *Stats            `json:"statistics,omitempty"`
	Objects       int               `json:"objects"`
	Reason        string            `json:"reason,omitempty"`
}

// ConnectionStatus describes the controller session.
type ConnectionStatus struct {
	Host    string `json:"host"`
	Session bool   `json:"session"`

	// LastError is the most recent poll failure, cleared on success.
	LastError string `json:"last_error,omitempty"`
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(device, version string, status HealthStatus, stats Stats, objects int, startTime time.Time) HealthMessage {
	return HealthMessage{
		Device:        device,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		Statistics:    &stats,
		Objects:       objects,
	}
}
