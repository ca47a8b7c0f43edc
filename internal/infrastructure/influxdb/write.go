package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by udevparse.
const (
	// MeasurementParse counts parse attempts per udev property.
	MeasurementParse = "udev_parse"

	// MeasurementIngest records one point per ingest run.
	MeasurementIngest = "udev_ingest"
)

// Parse outcomes used as the "outcome" tag of MeasurementParse.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// WriteParseOutcome records one parse attempt for a udev property.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - property: The udev property or value family (e.g., "ID_PATH", "DM_UUID", "DEVLINKS")
//   - outcome: OutcomeOK or OutcomeError
//
// Example:
//
//	client.WriteParseOutcome("ID_PATH", influxdb.OutcomeOK)
func (c *Client) WriteParseOutcome(property, outcome string) {
	c.writePoint(write.NewPoint(
		MeasurementParse,
		map[string]string{
			"property": property,
			"outcome":  outcome,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	))
}

// WriteIngestSummary records the totals of one ingest run.
//
// Parameters:
//   - source: Where the dump came from ("stdin", a file path, or an MQTT host)
//   - devices: Number of devices decoded
//   - fieldErrors: Number of property values that failed to parse
//   - elapsed: Wall time of the run
func (c *Client) WriteIngestSummary(source string, devices, fieldErrors int, elapsed time.Duration) {
	c.writePoint(write.NewPoint(
		MeasurementIngest,
		map[string]string{
			"source": source,
		},
		map[string]interface{}{
			"devices":     devices,
			"errors":      fieldErrors,
			"duration_ms": elapsed.Milliseconds(),
		},
		time.Now(),
	))
}

// WritePointWithTime writes an arbitrary point at timestamp, e.g. when
// replaying an old dump. Tags should stay low cardinality.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	c.writePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
