// Package schedule consumes run-once programs published over MQTT.
//
// A program is a JSON payload on the schedule topic (default
// "<controller name>/schedule", QoS 2) in one of two shapes:
//
//	[60, 0, 120]                  durations by station position
//	{"front": 60, "back": 120}    durations by station name
//
// Durations are seconds. A sequence shorter than the station count is padded
// with zeros and a longer one is truncated. Unknown station names are logged
// and skipped. A program with no non-zero duration is ignored, as is every
// program while the controller is disabled.
//
// The Subscriber keeps its subscription alive through an mqtt.Interest and is
// reconciled from the host heartbeat. Applied programs go to the Controller
// and are optionally recorded in InfluxDB (History) and SQLite (Journal).
package schedule
