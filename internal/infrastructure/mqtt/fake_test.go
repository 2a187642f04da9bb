package mqtt

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// =============================================================================
// Fake transport
// =============================================================================

// fakeToken implements pahomqtt.Token.
type fakeToken struct {
	done   chan struct{}
	once   sync.Once
	err    error
	result map[string]byte
}

func newPendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func newDoneToken(err error) *fakeToken {
	t := newPendingToken()
	t.complete(err)
	return t
}

func (t *fakeToken) complete(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *fakeToken) Result() map[string]byte { return t.result }

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeBroker is the client factory handed to the session. Its fields decide
// how the next transport calls behave.
type fakeBroker struct {
	mu             sync.Mutex
	clients        []*fakeClient
	connectErr     error
	connectPending bool
	subscribeErr   error
	subackCode     *byte
}

func (b *fakeBroker) newClient(opts *pahomqtt.ClientOptions) pahomqtt.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &fakeClient{broker: b, opts: opts}
	b.clients = append(b.clients, c)
	return c
}

func (b *fakeBroker) clientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *fakeBroker) last() *fakeClient {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.clients) == 0 {
		return nil
	}
	return b.clients[len(b.clients)-1]
}

func (b *fakeBroker) set(fn func(b *fakeBroker)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b)
}

// fakeClient implements pahomqtt.Client.
type fakeClient struct {
	broker *fakeBroker
	opts   *pahomqtt.ClientOptions

	mu           sync.Mutex
	connected    bool
	connectCalls int
	connectToken *fakeToken
	disconnects  int
	publishes    []published
	subscribes   []string
	unsubscribes []string
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *fakeClient) Connect() pahomqtt.Token {
	c.broker.mu.Lock()
	err, pending := c.broker.connectErr, c.broker.connectPending
	c.broker.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectCalls++

	if pending {
		c.connectToken = newPendingToken()
		return c.connectToken
	}
	c.connected = err == nil
	return newDoneToken(err)
}

// finishConnect completes a pending connect.
func (c *fakeClient) finishConnect(err error) {
	c.mu.Lock()
	tok := c.connectToken
	c.connected = err == nil
	c.mu.Unlock()
	tok.complete(err)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	c.disconnects++
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	c.publishes = append(c.publishes, published{topic: topic, qos: qos, retained: retained, payload: b})
	return newDoneToken(nil)
}

func (c *fakeClient) Subscribe(topic string, _ byte, _ pahomqtt.MessageHandler) pahomqtt.Token {
	c.broker.mu.Lock()
	err, code := c.broker.subscribeErr, c.broker.subackCode
	c.broker.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribes = append(c.subscribes, topic)

	tok := newDoneToken(err)
	if code != nil {
		tok.result = map[string]byte{topic: *code}
	}
	return tok
}

func (c *fakeClient) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return newDoneToken(fmt.Errorf("not supported"))
}

func (c *fakeClient) Unsubscribe(topics ...string) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribes = append(c.unsubscribes, topics...)
	return newDoneToken(nil)
}

func (c *fakeClient) AddRoute(string, pahomqtt.MessageHandler) {}

func (c *fakeClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.NewOptionsReader(c.opts)
}

// deliver simulates an inbound message from the broker.
func (c *fakeClient) deliver(topic string, payload []byte) {
	c.opts.DefaultPublishHandler(c, fakeMessage{topic: topic, payload: payload})
}

// loseConnection simulates the network dropping.
func (c *fakeClient) loseConnection(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.opts.OnConnectionLost(c, err)
}

func (c *fakeClient) published() []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]published(nil), c.publishes...)
}

func (c *fakeClient) subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribes...)
}

func (c *fakeClient) unsubscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.unsubscribes...)
}

func (c *fakeClient) disconnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}

// =============================================================================
// Recording logger
// =============================================================================

type logEntry struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

func (l *recordingLogger) count(level, msg string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

func (l *recordingLogger) total() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// =============================================================================
// Helpers
// =============================================================================

const testStatusTopic = "sip/status"

func testBrokerConfig() BrokerConfig {
	return BrokerConfig{
		Host:        "broker.local",
		Port:        1883,
		KeepAlive:   60,
		StatusTopic: testStatusTopic,
		ClientID:    "SIP",
	}
}

// newTestSession returns a configured, not yet started session on a fake broker.
func newTestSession(t *testing.T) (*Session, *fakeBroker, *recordingLogger) {
	t.Helper()

	broker := &fakeBroker{}
	logger := &recordingLogger{}
	s := New(Options{
		Logger:           logger,
		NewClient:        broker.newClient,
		ConnectTimeout:   time.Second,
		OperationTimeout: time.Second,
	})
	if err := s.Configure(testBrokerConfig()); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	t.Cleanup(s.Stop)

	return s, broker, logger
}

// startTestSession returns a connected session on a fake broker.
func startTestSession(t *testing.T) (*Session, *fakeBroker, *recordingLogger) {
	t.Helper()

	s, broker, logger := newTestSession(t)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return s, broker, logger
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
