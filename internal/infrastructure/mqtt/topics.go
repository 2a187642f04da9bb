package mqtt

import (
	"fmt"
	"strings"
)

// maxTopicLength is the MQTT limit on an encoded topic string.
const maxTopicLength = 65535

// validateTopicName checks a topic used for publishing.
// Publish topics must be non-empty and free of wildcards.
func validateTopicName(topic string) error {
	if err := validateTopicCommon(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in %q", ErrInvalidTopic, topic)
	}
	return nil
}

// validateTopicFilter checks a topic filter used for subscribing.
//
// "+" must occupy a whole level; "#" must occupy the whole last level.
func validateTopicFilter(filter string) error {
	if err := validateTopicCommon(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") && (level != "#" || i != len(levels)-1) {
			return fmt.Errorf("%w: misplaced '#' in %q", ErrInvalidTopic, filter)
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: misplaced '+' in %q", ErrInvalidTopic, filter)
		}
	}
	return nil
}

func validateTopicCommon(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic length %d exceeds %d", ErrInvalidTopic, len(topic), maxTopicLength)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic contains NUL", ErrInvalidTopic)
	}
	return nil
}

// isWildcard reports whether filter contains a wildcard level.
func isWildcard(filter string) bool {
	return strings.ContainsAny(filter, "+#")
}

// matchTopic reports whether topic matches filter.
//
// Topics starting with "$" are not matched by a leading wildcard.
func matchTopic(filter, topic string) bool {
	if filter == topic {
		return true
	}
	if strings.HasPrefix(topic, "$") && (strings.HasPrefix(filter, "+") || strings.HasPrefix(filter, "#")) {
		return false
	}

	fl := strings.Split(filter, "/")
	tl := strings.Split(topic, "/")

	for i, f := range fl {
		if f == "#" {
			return true
		}
		if i >= len(tl) {
			return false
		}
		if f != "+" && f != tl[i] {
			return false
		}
	}
	return len(fl) == len(tl)
}
