package mqtt

import "sync"

// subscription is one registry entry: a transport subscription and the
// handlers that share it, in registration order.
type subscription struct {
	topic    string
	qos      byte
	handlers []MessageHandler
}

// registry tracks the topics subscribed in the current transport session.
//
// It has its own lock so dispatch never contends with the session lock
// that handlers may need when they publish.
type registry struct {
	mu      sync.RWMutex
	entries map[string]*subscription
	order   []string
}

func newRegistry() *registry {
	return &registry{entries: make(map[string]*subscription)}
}

// appendHandler adds h to an existing entry. Reports false if topic is unknown.
func (r *registry) appendHandler(topic string, h MessageHandler) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.entries[topic]
	if !ok {
		return false
	}
	sub.handlers = append(sub.handlers, h)
	return true
}

// add creates the entry for topic with h, or appends h if another
// subscriber created it meanwhile.
func (r *registry) add(topic string, qos byte, h MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sub, ok := r.entries[topic]; ok {
		sub.handlers = append(sub.handlers, h)
		return
	}
	r.entries[topic] = &subscription{topic: topic, qos: qos, handlers: []MessageHandler{h}}
	r.order = append(r.order, topic)
}

// remove drops the entry for topic. Reports whether it existed.
func (r *registry) remove(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[topic]; !ok {
		return false
	}
	delete(r.entries, topic)
	for i, t := range r.order {
		if t == topic {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// clear drops every entry and returns how many there were.
func (r *registry) clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	r.entries = make(map[string]*subscription)
	r.order = nil
	return n
}

func (r *registry) has(topic string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[topic]
	return ok
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// topics returns the subscribed topics in subscription order.
func (r *registry) topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// handlersFor returns a snapshot of the handlers for an inbound topic.
//
// An exact entry wins. Otherwise the handlers of every matching wildcard
// filter are returned, filters in subscription order.
func (r *registry) handlersFor(topic string) []MessageHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if sub, ok := r.entries[topic]; ok {
		return append([]MessageHandler(nil), sub.handlers...)
	}

	var handlers []MessageHandler
	for _, filter := range r.order {
		if isWildcard(filter) && matchTopic(filter, topic) {
			handlers = append(handlers, r.entries[filter].handlers...)
		}
	}
	return handlers
}
