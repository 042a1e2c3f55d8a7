package eclypse

import "errors"

// Domain errors for the Eclypse bridge package.
var (
	// ErrUnexpectedStatus is returned when the controller answers with a
	// status other than 200 after any retries.
	ErrUnexpectedStatus = errors.New("eclypse: unexpected response status")

	// ErrRequestFailed is returned when a request could not be completed at
	// the transport level.
	ErrRequestFailed = errors.New("eclypse: request failed")

	// ErrDecodeFailed is returned when a controller response body is not the
	// expected JSON shape.
	ErrDecodeFailed = errors.New("eclypse: response decode failed")

	// ErrInvalidCommand is returned for malformed MQTT write commands.
	ErrInvalidCommand = errors.New("eclypse: invalid command")

	// ErrUnknownType is returned when a catalog or trend request names an
	// object type without a REST slug.
	ErrUnknownType = errors.New("eclypse: unknown object type")
)
