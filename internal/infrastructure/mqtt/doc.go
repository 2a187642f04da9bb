// Package mqtt provides the broker session for the SIP MQTT bridge.
//
// This package manages:
//   - One logical broker session (Session) across restarts, network
//     failures and settings changes
//   - The subscription registry shared by feature modules
//   - Dispatch of inbound messages to every handler of a topic
//   - Liveness: retained "UP"/"DOWN" on the status topic and "DIED" as last will
//
// # Reconnection
//
// The session never reconnects by itself. The host heartbeat calls
// EnsureConnected, which reloads settings and attempts one connect. After an
// unexpected disconnect the registry is cleared; feature modules notice this
// through Interest.Reconcile and subscribe again.
//
//	Heartbeat → Session.EnsureConnected → Interest.Reconcile → Session.Subscribe
//
// # Concurrency
//
// Transport callbacks are funnelled into one receive loop per transport
// session, so handlers for a session run one message at a time, in arrival
// order. Public methods are safe for concurrent use.
//
// # Usage
//
//	session := mqtt.New(mqtt.Options{Logger: log})
//	if err := session.Configure(cfg); err != nil {
//	    return err
//	}
//	if err := session.Start(ctx); err != nil {
//	    log.Warn("broker unavailable, heartbeat will retry", "error", err)
//	}
//	defer session.Stop()
//
//	interest := mqtt.NewInterest(session, "sip/schedule", 2, handle)
//	interest.Reconcile()
package mqtt
