package influxdb

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementConnection = "mqtt_connection"
	measurementRunOnce    = "run_once"
	measurementStation    = "station_run"
)

// WriteConnectionEvent records a broker connection state change.
//
// Parameters:
//   - state: "connected" or "disconnected"
//   - generation: The session's connect counter at the time of the change
//   - reason: Why the connection ended; empty for connects
func (c *Client) WriteConnectionEvent(state string, generation uint64, reason string) {
	fields := map[string]interface{}{
		// #nosec G115 -- a connect counter never reaches int64 overflow
		"generation": int64(generation),
	}
	if reason != "" {
		fields["reason"] = reason
	}

	c.writePoint(measurementConnection,
		map[string]string{"state": state},
		fields,
		time.Now(),
	)
}

// WriteRunOnce records a run-once program applied from MQTT.
//
// One summary point is written, plus one point per active station so
// per-zone watering can be graphed.
//
// Parameters:
//   - topic: The MQTT topic the program arrived on
//   - durations: Seconds per station, indexed by station number
//   - names: Station names, may be shorter than durations
func (c *Client) WriteRunOnce(topic string, durations []int, names []string, at time.Time) {
	if !c.IsConnected() {
		return
	}

	active, total, longest := 0, 0, 0
	for i, d := range durations {
		if d <= 0 {
			continue
		}
		active++
		total += d
		if d > longest {
			longest = d
		}

		name := ""
		if i < len(names) {
			name = names[i]
		}
		c.writePoint(measurementStation,
			map[string]string{"station": stationLabel(i, name)},
			map[string]interface{}{"seconds": d},
			at,
		)
	}

	c.writePoint(measurementRunOnce,
		map[string]string{"topic": topic},
		map[string]interface{}{
			"active_stations": active,
			"total_seconds":   total,
			"longest_seconds": longest,
		},
		at,
	)
}

// writePoint adds the site tag and queues the point.
func (c *Client) writePoint(measurement string, tags map[string]string, fields map[string]interface{}, ts time.Time) {
	if !c.IsConnected() {
		return
	}

	if c.site != "" {
		tags["site"] = c.site
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

// stationLabel returns the station name, or "S01"-style numbering when unnamed.
func stationLabel(index int, name string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("S%02d", index+1)
}
