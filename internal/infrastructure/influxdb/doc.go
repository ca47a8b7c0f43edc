// Package influxdb provides InfluxDB connectivity for udevparse.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, metric writing, and health monitoring.
//
// # Measurements
//
//	udev_parse   tags: property, outcome (ok|error)   field: count
//	udev_ingest  tags: source                         fields: devices, errors, duration_ms
//
// Parse outcomes show which udev properties a fleet produces in formats
// the parsers do not understand yet.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteParseOutcome("ID_PATH", influxdb.OutcomeOK)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// Writes are non-blocking and batched per batch_size and flush_interval.
// A nil *Client is valid and drops every write.
package influxdb
