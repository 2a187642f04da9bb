package mqtt

import (
	"encoding/json"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Status is a liveness value published to the status topic.
type Status string

// Liveness values. StatusDied is only ever sent by the broker as the last will.
const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
	StatusDied Status = "DIED"
)

// statusPayload encodes a status as a JSON string, e.g. "UP" with quotes.
func statusPayload(status Status) []byte {
	b, err := json.Marshal(string(status))
	if err != nil {
		return []byte(fmt.Sprintf("%q", status))
	}
	return b
}

// PublishStatus publishes a retained liveness value to the status topic at QoS 1.
//
// When no status topic is configured nothing is sent and nil is returned.
func (s *Session) PublishStatus(status Status) error {
	if s.opts.Disabled {
		return ErrDisabled
	}

	s.mu.Lock()
	topic := s.cfg.StatusTopic
	s.mu.Unlock()

	if topic == "" {
		return nil
	}

	client, ok := s.connectedClient()
	if !ok {
		s.logger.Warn("MQTT status not published, not connected", "status", status)
		return ErrNotConnected
	}

	return s.publishStatusWith(client, topic, status)
}

func (s *Session) publishStatusWith(client pahomqtt.Client, topic string, status Status) error {
	if topic == "" {
		return nil
	}
	return s.publishWith(client, topic, statusPayload(status), statusQoS, true)
}
