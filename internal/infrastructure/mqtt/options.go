package mqtt

import (
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for a connect acknowledgment.
	defaultConnectTimeout = 10 * time.Second

	// defaultOperationTimeout is the maximum time to wait for publish/subscribe acknowledgment.
	defaultOperationTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// statusQoS is used for liveness messages and the last will.
	statusQoS = 1
)

// ClientFactory builds a transport client from options.
// pahomqtt.NewClient satisfies it; tests substitute a fake.
type ClientFactory func(opts *pahomqtt.ClientOptions) pahomqtt.Client

// Options configures a Session at construction time.
type Options struct {
	// Logger receives session diagnostics. Nil discards them.
	Logger Logger

	// NewClient builds the transport client. Defaults to pahomqtt.NewClient.
	NewClient ClientFactory

	// ConnectTimeout bounds a single connect attempt.
	ConnectTimeout time.Duration

	// OperationTimeout bounds publish, subscribe and unsubscribe calls.
	OperationTimeout time.Duration

	// DisconnectQuiesce is the graceful disconnect wait in milliseconds.
	DisconnectQuiesce uint

	// Disabled puts the session in no-op mode: every operation returns ErrDisabled.
	Disabled bool

	// DisabledReason is logged once when Disabled is set.
	DisabledReason string

	// Settings is consulted by EnsureConnected before reconnecting. Optional.
	Settings SettingsSource
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = noopLogger{}
	}
	if o.NewClient == nil {
		o.NewClient = pahomqtt.NewClient
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.OperationTimeout <= 0 {
		o.OperationTimeout = defaultOperationTimeout
	}
	if o.DisconnectQuiesce == 0 {
		o.DisconnectQuiesce = defaultDisconnectQuiesce
	}
	if o.DisabledReason == "" {
		o.DisabledReason = "disabled in configuration"
	}
	return o
}

// buildClientOptions creates paho options for one transport session.
//
// Reconnection is left to the host heartbeat, so paho's own reconnect and
// connect-retry loops stay off. Inbound messages and connection loss are
// forwarded to the receive loop.
func buildClientOptions(cfg BrokerConfig, connectTimeout time.Duration, loop *receiveLoop) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(cfg.URL())
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(time.Duration(cfg.KeepAlive) * time.Second)

	// Messages are delivered in arrival order through the default handler.
	opts.SetOrderMatters(true)
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		loop.post(event{kind: eventMessage, msg: Message{Topic: msg.Topic(), Payload: msg.Payload()}})
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		loop.post(event{kind: eventConnectionLost, err: err})
	})

	configureWill(opts, cfg.StatusTopic)

	return opts
}

// configureWill installs the last will when a status topic is set.
// The broker publishes it if the session ends without a graceful Stop.
func configureWill(opts *pahomqtt.ClientOptions, statusTopic string) {
	if statusTopic == "" {
		return
	}
	opts.SetBinaryWill(statusTopic, statusPayload(StatusDied), statusQoS, true)
}
