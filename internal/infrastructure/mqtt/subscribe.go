package mqtt

import (
	"fmt"
)

// subackFailure is the SUBACK return code for a rejected subscription.
const subackFailure = 0x80

// Subscribe registers a handler for messages on the specified topic.
//
// The first handler for a topic issues a transport subscribe and waits for
// the broker to acknowledge it. Later handlers for the same topic are
// appended to the entry without another round-trip; all of them run for
// every message, in registration order.
//
// Subscriptions are not restored after an unexpected disconnect. The
// registry is cleared and callers subscribe again once the session is
// reconnected (see Interest).
//
// Parameters:
//   - topic: The topic filter to subscribe to (wildcards allowed)
//   - qos: Maximum QoS level for received messages (0, 1, or 2)
//   - handler: Callback function invoked for each message
//
// Returns:
//   - error: nil on success; on failure nothing is registered
func (s *Session) Subscribe(topic string, qos byte, handler MessageHandler) error {
	_, err := s.subscribe(topic, qos, handler)
	return err
}

// subscribe registers handler and returns the connect generation the
// registration belongs to.
func (s *Session) subscribe(topic string, qos byte, handler MessageHandler) (uint64, error) {
	if s.opts.Disabled {
		return 0, ErrDisabled
	}
	if err := validateTopicFilter(topic); err != nil {
		return 0, err
	}
	if qos > maxQoS {
		return 0, ErrInvalidQoS
	}
	if handler == nil {
		return 0, fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	s.mu.Lock()
	if s.state != StateConnected || s.client == nil {
		s.mu.Unlock()
		s.logger.Warn("MQTT subscribe while not connected", "topic", topic)
		return 0, ErrNotConnected
	}
	if s.registry.appendHandler(topic, handler) {
		generation := s.generation
		s.mu.Unlock()
		s.logger.Debug("MQTT handler added to existing subscription", "topic", topic)
		return generation, nil
	}
	client, epoch := s.client, s.epoch
	s.mu.Unlock()

	// A nil callback routes messages through the default handler, and so
	// through the receive loop and Dispatch.
	token := client.Subscribe(topic, qos, nil)
	err := waitToken(token, s.opts.OperationTimeout)
	if err == nil {
		if st, ok := token.(interface{ Result() map[string]byte }); ok {
			if code, found := st.Result()[topic]; found && code == subackFailure {
				err = fmt.Errorf("broker rejected subscription (return code 0x%02x)", code)
			}
		}
	}
	if err != nil {
		s.logger.Warn("MQTT subscribe failed", "topic", topic, "error", err)
		return 0, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.state != StateConnected {
		return 0, fmt.Errorf("%w: connection lost during subscribe", ErrSubscribeFailed)
	}
	s.registry.add(topic, qos, handler)

	s.logger.Info("MQTT subscribed", "topic", topic, "qos", qos)
	return s.generation, nil
}

// Unsubscribe removes every handler for a topic and unsubscribes at the broker.
//
// The registry entry is removed even if the broker round-trip fails, so no
// further messages are dispatched for the topic.
//
// Parameters:
//   - topic: The exact topic filter that was subscribed to
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (s *Session) Unsubscribe(topic string) error {
	if s.opts.Disabled {
		return ErrDisabled
	}
	if err := validateTopicFilter(topic); err != nil {
		return err
	}

	s.mu.Lock()
	removed := s.registry.remove(topic)
	client, connected := s.client, s.state == StateConnected
	s.mu.Unlock()

	if !connected || client == nil {
		return ErrNotConnected
	}
	if !removed {
		return nil
	}

	token := client.Unsubscribe(topic)
	if err := waitToken(token, s.opts.OperationTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	s.logger.Info("MQTT unsubscribed", "topic", topic)
	return nil
}

// SubscriptionCount returns the number of subscribed topics.
func (s *Session) SubscriptionCount() int {
	return s.registry.count()
}

// HasSubscription checks if a subscription exists for the given topic.
//
// Note: This checks only the exact topic string, not pattern matching.
func (s *Session) HasSubscription(topic string) bool {
	return s.registry.has(topic)
}

// Subscriptions returns the subscribed topics in subscription order.
func (s *Session) Subscriptions() []string {
	return s.registry.topics()
}

// Clear drops every registry entry without touching the broker.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry.clear()
}
