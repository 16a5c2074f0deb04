package messages

import "errors"

// Errors returned by envelope construction, accessors and decoding.
// Use errors.Is() to check for them.
var (
	// ErrEmptyUnitID is returned when an envelope is built without a unit ID.
	ErrEmptyUnitID = errors.New("messages: unit id cannot be empty")

	// ErrInvalidQoS is returned for a QoS level outside 0..2.
	ErrInvalidQoS = errors.New("messages: invalid QoS level (must be 0, 1, or 2)")

	// ErrMissingField is returned by a typed accessor reading a payload key
	// that was never written.
	ErrMissingField = errors.New("messages: missing payload field")

	// ErrInvalidField is returned when a payload key holds a value of the wrong type.
	ErrInvalidField = errors.New("messages: invalid payload field")

	// ErrMalformedEnvelope is returned by Deserialize when the wire document
	// is not a JSON object carrying both "unit id" and "payload".
	ErrMalformedEnvelope = errors.New("messages: malformed envelope")

	// ErrUnknownTopic is returned by UnitFromTopic for topics outside the units tree.
	ErrUnknownTopic = errors.New("messages: unknown topic")
)
