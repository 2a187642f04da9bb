package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/sip-mqtt/internal/infrastructure/mqtt"
)

// doneToken is an already completed pahomqtt.Token.
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type inbound struct {
	topic   string
	payload []byte
}

func (m inbound) Duplicate() bool   { return false }
func (m inbound) Qos() byte         { return 2 }
func (m inbound) Retained() bool    { return false }
func (m inbound) Topic() string     { return m.topic }
func (m inbound) MessageID() uint16 { return 1 }
func (m inbound) Payload() []byte   { return m.payload }
func (m inbound) Ack()              {}

// stubClient is a pahomqtt.Client that accepts everything.
type stubClient struct {
	opts *pahomqtt.ClientOptions

	mu         sync.Mutex
	connected  bool
	subscribes []string
}

func (c *stubClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *stubClient) IsConnectionOpen() bool { return c.IsConnected() }

func (c *stubClient) Connect() pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return doneToken{}
}

func (c *stubClient) Disconnect(uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *stubClient) Publish(string, byte, bool, interface{}) pahomqtt.Token { return doneToken{} }

func (c *stubClient) Subscribe(topic string, _ byte, _ pahomqtt.MessageHandler) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribes = append(c.subscribes, topic)
	return doneToken{}
}

func (c *stubClient) SubscribeMultiple(map[string]byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return doneToken{err: errors.New("not supported")}
}

func (c *stubClient) Unsubscribe(...string) pahomqtt.Token { return doneToken{} }

func (c *stubClient) AddRoute(string, pahomqtt.MessageHandler) {}

func (c *stubClient) OptionsReader() pahomqtt.ClientOptionsReader {
	return pahomqtt.NewOptionsReader(c.opts)
}

func (c *stubClient) deliver(topic string, payload []byte) {
	c.opts.DefaultPublishHandler(c, inbound{topic: topic, payload: payload})
}

func (c *stubClient) drop() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.opts.OnConnectionLost(c, errors.New("connection reset"))
}

func (c *stubClient) subscribed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.subscribes...)
}

// stubFactory hands out stubClients and remembers the latest.
type stubFactory struct {
	mu     sync.Mutex
	latest *stubClient
}

func (f *stubFactory) newClient(opts *pahomqtt.ClientOptions) pahomqtt.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = &stubClient{opts: opts}
	return f.latest
}

func (f *stubFactory) client() *stubClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

// newSession returns a session on stub transport, started when connect is true.
func newSession(t *testing.T, connect bool) (*mqtt.Session, *stubFactory) {
	t.Helper()

	factory := &stubFactory{}
	session := mqtt.New(mqtt.Options{
		NewClient:        factory.newClient,
		ConnectTimeout:   time.Second,
		OperationTimeout: time.Second,
	})
	err := session.Configure(mqtt.BrokerConfig{
		Host:      "broker.local",
		Port:      1883,
		KeepAlive: 60,
		ClientID:  "SIP",
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	t.Cleanup(session.Stop)

	if connect {
		if err := session.Start(context.Background()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	}
	return session, factory
}

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
