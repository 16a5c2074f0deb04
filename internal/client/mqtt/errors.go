package mqtt

import "errors"

// Connection client errors. Use errors.Is() to check for them.
var (
	// ErrNotInitialized is returned by every operation other than Initialize
	// until Initialize has succeeded.
	ErrNotInitialized = errors.New("mqtt: client not initialized")

	// ErrNotConnected is returned by operations that need a connection
	// handle when Connect has not been called (or after Disconnect).
	ErrNotConnected = errors.New("mqtt: client not connected")

	ErrEmptyClientID = errors.New("mqtt: client id cannot be empty")
	ErrInvalidTopic  = errors.New("mqtt: invalid topic filter")
	ErrNilHandler    = errors.New("mqtt: handler cannot be nil")
)
