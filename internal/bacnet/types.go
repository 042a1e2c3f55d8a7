package bacnet

import (
	"fmt"
	"strconv"
	"strings"
)

// Object types served by the Eclypse REST interface.
const (
	TypeAnalogValue     = "analogValue"
	TypeAnalogInput     = "analogInput"
	TypeAnalogOutput    = "analogOutput"
	TypeBinaryValue     = "binaryValue"
	TypeBinaryInput     = "binaryInput"
	TypeBinaryOutput    = "binaryOutput"
	TypeMultiStateValue = "multiStateValue"
)

// Well-known property names.
const (
	PropPropertyList = "propertyList"
	PropObjectName   = "objectName"
	PropDescription  = "description"
	PropPresentValue = "presentValue"
	PropReliability  = "reliability"
	PropStatusFlags  = "statusFlags"
	PropUnits        = "units"
	PropAlarmValue   = "alarmValue"
	PropAlarmValues  = "alarmValues"
)

// NoPriority and WholeValue are the sentinel values for a property's write
// priority and array index.
const (
	NoPriority = -1
	WholeValue = -1
)

// HrefPrefix is the REST path under which every local BACnet object lives.
const HrefPrefix = "/api/rest/v1/protocols/bacnet/local/objects"

// typeSlugs maps object types to their REST collection slug.
var typeSlugs = map[string]string{
	TypeAnalogValue:     "analog-value",
	TypeAnalogInput:     "analog-input",
	TypeAnalogOutput:    "analog-output",
	TypeBinaryValue:     "binary-value",
	TypeBinaryInput:     "binary-input",
	TypeBinaryOutput:    "binary-output",
	TypeMultiStateValue: "multi-state-value",
}

// SupportedTypes lists every object type with a known REST slug, in the
// order the controller catalog is walked.
func SupportedTypes() []string {
	return []string{
		TypeAnalogValue,
		TypeAnalogInput,
		TypeAnalogOutput,
		TypeBinaryValue,
		TypeBinaryInput,
		TypeBinaryOutput,
		TypeMultiStateValue,
	}
}

// Slug returns the REST collection slug for an object type.
func Slug(objectType string) (string, bool) {
	s, ok := typeSlugs[objectType]
	return s, ok
}

// IsBinary reports whether objectType is one of the binary object types.
func IsBinary(objectType string) bool {
	switch objectType {
	case TypeBinaryInput, TypeBinaryOutput, TypeBinaryValue:
		return true
	}
	return false
}

// ObjectName composes the registry key for an object.
func ObjectName(objectType string, instance int) string {
	return objectType + "_" + strconv.Itoa(instance)
}

// ParseObjectName splits "{type}_{instance}" into its parts. The type is
// everything before the last underscore, so types containing underscores
// survive the round trip.
func ParseObjectName(name string) (string, int, error) {
	idx := strings.LastIndex(name, "_")
	if idx <= 0 || idx == len(name)-1 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidObjectName, name)
	}
	instance, err := strconv.Atoi(name[idx+1:])
	if err != nil || instance < 0 {
		return "", 0, fmt.Errorf("%w: %q has no numeric instance", ErrInvalidObjectName, name)
	}
	return name[:idx], instance, nil
}

// DefaultHref derives an object's REST path from its type and instance.
func DefaultHref(objectType string, instance int) (string, error) {
	slug, ok := Slug(objectType)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownObjectType, objectType)
	}
	return fmt.Sprintf("%s/%s/%d", HrefPrefix, slug, instance), nil
}

// ParsePropertyList converts the controller's text encoding of a property
// list, "{Object Name, Present Value, Units}", into property names:
// ["objectName", "presentValue", "units"].
func ParsePropertyList(raw string) []string {
	parts := strings.Split(strings.Trim(raw, "{}"), ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		p = strings.ToLower(p[:1]) + p[1:]
		out = append(out, strings.Join(strings.Fields(p), ""))
	}
	return out
}
