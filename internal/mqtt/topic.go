package mqtt

import (
	"errors"
	"strings"
)

const (
	separator      = "/"
	multiWildcard  = "#"
	singleWildcard = "+"
	sysPrefix      = '$'
	maxTopicLength = 65535
)

// Topic filter validation errors.
var (
	ErrEmptyTopic            = errors.New("topic must not be empty")
	ErrTopicTooLong          = errors.New("topic exceeds maximum length")
	ErrNullCharacter         = errors.New("topic must not contain null character")
	ErrInvalidMultiWildcard  = errors.New("multi-level wildcard must occupy entire level and be last")
	ErrInvalidSingleWildcard = errors.New("single-level wildcard must occupy entire level")
)

// ValidateFilter checks a subscription filter against the MQTT wildcard rules.
func ValidateFilter(filter string) error {
	if filter == "" {
		return ErrEmptyTopic
	}
	if len(filter) > maxTopicLength {
		return ErrTopicTooLong
	}
	if strings.IndexByte(filter, 0) >= 0 {
		return ErrNullCharacter
	}

	levels := strings.Split(filter, separator)
	for i, level := range levels {
		if strings.Contains(level, multiWildcard) && (level != multiWildcard || i != len(levels)-1) {
			return ErrInvalidMultiWildcard
		}
		if strings.Contains(level, singleWildcard) && level != singleWildcard {
			return ErrInvalidSingleWildcard
		}
	}
	return nil
}

// Match reports whether topic matches filter. Topics starting with '$' are
// not matched by filters starting with a wildcard.
func Match(filter, topic string) bool {
	if filter == "" || topic == "" {
		return false
	}
	if topic[0] == sysPrefix && (strings.HasPrefix(filter, multiWildcard) || strings.HasPrefix(filter, singleWildcard)) {
		return false
	}

	filterLevels := strings.Split(filter, separator)
	topicLevels := strings.Split(topic, separator)
	for i, f := range filterLevels {
		if f == multiWildcard {
			return true
		}
		if i >= len(topicLevels) {
			return false
		}
		if f != singleWildcard && f != topicLevels[i] {
			return false
		}
	}
	return len(filterLevels) == len(topicLevels)
}
