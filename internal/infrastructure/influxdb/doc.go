// Package influxdb records SIP MQTT bridge history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library and writes:
//   - mqtt_connection: broker connects and unexpected disconnects
//   - run_once: one summary point per run-once program received over MQTT
//   - station_run: one point per station a program turned on
//
// Every point carries a "site" tag with the controller name.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.Name)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteConnectionEvent("connected", 1, "")
//
// # Error Handling
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval; batch errors are delivered through SetOnError.
// Connection and health check errors are returned directly.
package influxdb
