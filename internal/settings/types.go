package settings

import (
	"strconv"
	"strings"
)

// Known settings keys.
const (
	KeyBrokerHost    = "broker_host"
	KeyBrokerPort    = "broker_port"
	KeyBrokerAlive   = "broker_alive"
	KeyPublishUpDown = "publish_up_down"
	KeyScheduleTopic = "schedule_topic"
)

// Document is the flat settings map. Values are stored as text.
type Document map[string]string

// Clone returns an independent copy.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Int returns the value of key as an int, or fallback when missing or malformed.
func (d Document) Int(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(d[key]))
	if err != nil {
		return fallback
	}
	return v
}

// Defaults seeds keys missing from the store on first load.
type Defaults struct {
	BrokerHost    string
	BrokerPort    int
	BrokerAlive   int
	PublishUpDown string
	ScheduleTopic string
}

// Document converts the defaults to settings values.
func (d Defaults) Document() Document {
	return Document{
		KeyBrokerHost:    d.BrokerHost,
		KeyBrokerPort:    strconv.Itoa(d.BrokerPort),
		KeyBrokerAlive:   strconv.Itoa(d.BrokerAlive),
		KeyPublishUpDown: d.PublishUpDown,
		KeyScheduleTopic: d.ScheduleTopic,
	}
}
