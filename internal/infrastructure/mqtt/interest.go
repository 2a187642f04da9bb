package mqtt

import (
	"errors"
	"sync"
)

// Interest is a feature module's standing wish to receive one topic.
//
// The session does not restore subscriptions after a reconnect. Instead each
// feature keeps an Interest and calls Reconcile from the host heartbeat:
// while the session is disconnected the interest forgets its subscription,
// and once the session is connected again it subscribes anew.
type Interest struct {
	session *Session
	qos     byte
	handler MessageHandler

	mu         sync.Mutex
	topic      string
	subscribed bool
	generation uint64
}

// NewInterest creates an interest in topic. It does not subscribe.
func NewInterest(session *Session, topic string, qos byte, handler MessageHandler) *Interest {
	return &Interest{
		session: session,
		topic:   topic,
		qos:     qos,
		handler: handler,
	}
}

// Reconcile brings the subscription in line with the session state and
// reports whether the interest is subscribed afterwards.
func (i *Interest) Reconcile() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.reconcileLocked()
}

func (i *Interest) reconcileLocked() bool {
	if !i.session.IsConnected() {
		if i.subscribed {
			i.session.logger.Debug("MQTT interest lost with connection", "topic", i.topic)
		}
		i.subscribed = false
		return false
	}

	if i.subscribed && i.generation == i.session.Generation() {
		return true
	}
	if i.topic == "" {
		i.subscribed = false
		return false
	}

	generation, err := i.session.subscribe(i.topic, i.qos, i.handler)
	if err != nil {
		i.subscribed = false
		return false
	}

	i.subscribed = true
	i.generation = generation
	return true
}

// SetTopic moves the interest to a new topic.
//
// The old topic is unsubscribed, dropping every handler registered on it,
// and the new one is subscribed immediately when the session is connected.
func (i *Interest) SetTopic(topic string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if topic == i.topic {
		return i.reconcileLocked()
	}

	if i.subscribed && i.generation == i.session.Generation() {
		if err := i.session.Unsubscribe(i.topic); err != nil && !errors.Is(err, ErrNotConnected) {
			i.session.logger.Warn("failed to unsubscribe old topic", "topic", i.topic, "error", err)
		}
	}

	i.topic = topic
	i.subscribed = false
	return i.reconcileLocked()
}

// Topic returns the topic of interest.
func (i *Interest) Topic() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.topic
}

// Subscribed reports whether the interest was subscribed at the last
// Reconcile and the session has not reconnected since.
func (i *Interest) Subscribed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.subscribed && i.session.IsConnected() && i.generation == i.session.Generation()
}
