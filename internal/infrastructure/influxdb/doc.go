// Package influxdb provides InfluxDB connectivity for bridge traffic metrics.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, metric writing, and health monitoring.
//
// # Measurements
//
//   - serial_frames: one point per relayed frame (tags bridge_id, direction, kind)
//   - serial_bridge: periodic snapshots of bridge counters
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteFrame("bench-01", "upstream", "publish", "home/temp", 2)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Writes never return errors. Rejected batches are counted in Stats and
// passed to the SetOnError callback. Connect and HealthCheck return errors
// directly.
package influxdb
