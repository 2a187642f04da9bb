// Package settings holds the bridge's user-editable settings document.
//
// The document is a flat key-value map persisted in the SQLite settings
// table. It carries the broker endpoint (broker_host, broker_port,
// broker_alive), the liveness topic (publish_up_down) and feature fields
// such as schedule_topic. Keys the bridge does not know are stored and
// returned unchanged.
//
// Save validates a whole submission before writing anything. An invalid
// submission returns a *ValidationError naming every offending key and the
// stored document is left as it was.
//
// Store implements mqtt.SettingsSource, so the heartbeat reconnect path
// always uses the latest saved broker settings.
package settings
