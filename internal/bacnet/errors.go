package bacnet

import "errors"

// Domain errors for the bacnet package.
var (
	// ErrInvalidObjectName is returned when an object name is not of the
	// form "{type}_{instance}".
	ErrInvalidObjectName = errors.New("bacnet: invalid object name")

	// ErrUnknownObjectType is returned when no REST slug is known for an
	// object type and no explicit href was supplied.
	ErrUnknownObjectType = errors.New("bacnet: unknown object type")

	// ErrInvalidProperty is returned when property parameters are incomplete
	// or do not belong to the owning object.
	ErrInvalidProperty = errors.New("bacnet: invalid property")

	// ErrObjectNotFound is returned when a registry lookup misses.
	ErrObjectNotFound = errors.New("bacnet: object not found")

	// ErrPropertyNotFound is returned when an object does not track the
	// requested property.
	ErrPropertyNotFound = errors.New("bacnet: property not found")

	// ErrDecodeFailed is returned when a persisted record cannot be decoded.
	ErrDecodeFailed = errors.New("bacnet: decoding record failed")
)
