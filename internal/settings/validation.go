package settings

import (
	"strconv"
	"strings"
)

// Limits on broker settings. Both ranges are exclusive.
const (
	minPort  = 80
	maxPort  = 65535
	minAlive = 1
	maxAlive = 2400
)

// Validate checks the known keys of a complete document.
// It returns nil or a *ValidationError.
func Validate(doc Document) error {
	verr := &ValidationError{}

	if strings.TrimSpace(doc[KeyBrokerHost]) == "" {
		verr.add(KeyBrokerHost, "must not be empty")
	}

	if port, err := strconv.Atoi(strings.TrimSpace(doc[KeyBrokerPort])); err != nil {
		verr.add(KeyBrokerPort, "must be an integer")
	} else if port <= minPort || port >= maxPort {
		verr.add(KeyBrokerPort, "must be between 81 and 65534")
	}

	if alive, err := strconv.Atoi(strings.TrimSpace(doc[KeyBrokerAlive])); err != nil {
		verr.add(KeyBrokerAlive, "must be an integer")
	} else if alive <= minAlive || alive >= maxAlive {
		verr.add(KeyBrokerAlive, "must be between 2 and 2399")
	}

	if strings.ContainsAny(doc[KeyPublishUpDown], "+#") {
		verr.add(KeyPublishUpDown, "must not contain wildcards")
	}

	if topic := doc[KeyScheduleTopic]; topic != strings.TrimSpace(topic) {
		verr.add(KeyScheduleTopic, "must not start or end with spaces")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
