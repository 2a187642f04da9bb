package mqtt

// Dispatch routes an inbound message to the handlers registered for its topic.
//
// A message on an unknown topic is logged once and discarded. Each handler
// runs isolated: a returned error is logged, a panic is recovered and
// logged, and the remaining handlers still run.
func (s *Session) Dispatch(topic string, payload []byte) {
	handlers := s.registry.handlersFor(topic)
	if len(handlers) == 0 {
		s.logger.Warn("unexpected message on topic", "topic", topic, "payload_bytes", len(payload))
		return
	}

	for _, h := range handlers {
		s.invoke(h, topic, payload)
	}
}

// invoke runs one handler with panic recovery.
func (s *Session) invoke(handler MessageHandler, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("MQTT handler panic recovered",
				"topic", topic,
				"panic", r,
			)
		}
	}()

	if err := handler(topic, payload); err != nil {
		s.logger.Warn("MQTT handler returned error",
			"topic", topic,
			"error", err,
		)
	}
}
