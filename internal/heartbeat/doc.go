// Package heartbeat provides the host's periodic signal.
//
// Components connect a listener once at startup. Every beat calls the
// listeners in registration order, so the broker session can reconnect
// before feature modules reconcile their subscriptions:
//
//	signal := heartbeat.New(logger)
//	signal.Connect("mqtt", func(ctx context.Context) { session.EnsureConnected(ctx) })
//	signal.Connect("schedule", func(context.Context) { subscriber.Reconcile() })
//	go signal.Run(ctx, 5*time.Second)
//	defer signal.Stop()
package heartbeat
