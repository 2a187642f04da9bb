package mqtt

import (
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Maximum payload size for MQTT messages (1MB).
// This prevents resource exhaustion and aligns with typical broker limits.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (no wildcards)
//   - payload: The message payload (max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should retain the message for new subscribers
//
// Publishing while disconnected does not queue: it is logged and returns
// ErrNotConnected.
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (s *Session) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if s.opts.Disabled {
		return ErrDisabled
	}
	if err := validateTopicName(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	client, ok := s.connectedClient()
	if !ok {
		s.logger.Warn("MQTT publish while not connected", "topic", topic)
		return ErrNotConnected
	}

	return s.publishWith(client, topic, payload, qos, retained)
}

// PublishString is a convenience method that publishes a string payload.
func (s *Session) PublishString(topic string, payload string, qos byte, retained bool) error {
	return s.Publish(topic, []byte(payload), qos, retained)
}

// publishWith publishes on a specific client without checking session state.
func (s *Session) publishWith(client pahomqtt.Client, topic string, payload []byte, qos byte, retained bool) error {
	token := client.Publish(topic, qos, retained, payload)
	if err := waitToken(token, s.opts.OperationTimeout); err != nil {
		s.logger.Warn("MQTT publish failed", "topic", topic, "error", err)
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// connectedClient returns the transport client when the session is connected.
func (s *Session) connectedClient() (pahomqtt.Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.client == nil {
		return nil, false
	}
	return s.client, true
}

// waitToken waits for a transport token with a timeout.
func waitToken(token pahomqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
	return token.Error()
}
