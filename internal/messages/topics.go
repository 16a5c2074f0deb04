package messages

import (
	"fmt"
	"strings"
)

// Topic roots and suffixes of the units tree.
const (
	RootUnits           = "units"
	RootConnectionState = "units/connectionState"
	RootWheeled         = "units/wheeled"

	SuffixSteering = "steering"
	SuffixThrottle = "throttle"
	SuffixState    = "state"
)

// Topics builds the topic strings used by unit envelopes.
//
// Usage:
//
//	topic := messages.Topics{}.WheeledState("rover-1")
//	// "units/wheeled/rover-1/state"
type Topics struct{}

func (Topics) ConnectionState(unitID string) string {
	return RootConnectionState + "/" + unitID
}

func (Topics) Steering(unitID string) string {
	return RootUnits + "/" + unitID + "/" + SuffixSteering
}

func (Topics) Throttle(unitID string) string {
	return RootUnits + "/" + unitID + "/" + SuffixThrottle
}

// WheeledCommand shares the steering suffix: the combined command is
// published on the wheeled unit's steering topic.
func (Topics) WheeledCommand(unitID string) string {
	return RootWheeled + "/" + unitID + "/" + SuffixSteering
}

func (Topics) WheeledState(unitID string) string {
	return RootWheeled + "/" + unitID + "/" + SuffixState
}

// Wildcard filters.

func (Topics) AllConnectionStates() string { return RootConnectionState + "/+" }
func (Topics) AllSteering() string         { return RootUnits + "/+/" + SuffixSteering }
func (Topics) AllThrottle() string         { return RootUnits + "/+/" + SuffixThrottle }
func (Topics) AllWheeledCommands() string  { return RootWheeled + "/+/" + SuffixSteering }
func (Topics) AllWheeledStates() string    { return RootWheeled + "/+/" + SuffixState }

// UnitFromTopic extracts the unit ID from a concrete units topic, so a
// receiver can rebuild the envelope shell a message arrived on.
func UnitFromTopic(topic string) (string, error) {
	levels := strings.Split(topic, "/")
	if len(levels) < 3 || levels[0] != RootUnits {
		return "", fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	switch {
	case len(levels) == 3 && levels[1] == "connectionState":
		return nonEmpty(levels[2], topic)
	case len(levels) == 4 && levels[1] == "wheeled" &&
		(levels[3] == SuffixSteering || levels[3] == SuffixState):
		return nonEmpty(levels[2], topic)
	case len(levels) == 3 && (levels[2] == SuffixSteering || levels[2] == SuffixThrottle):
		return nonEmpty(levels[1], topic)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
}

func nonEmpty(unitID, topic string) (string, error) {
	if unitID == "" || unitID == "+" || unitID == "#" {
		return "", fmt.Errorf("%w: %q has no unit id", ErrUnknownTopic, topic)
	}
	return unitID, nil
}
