// Package inventory turns udev database dumps into decoded device reports.
//
// A dump is the text written by "udevadm info --export-db". Each record is
// read into a Device, decoded into a Report by running the udev parsers over
// the identifiers the record carries, stored in SQLite, published to MQTT and
// counted in InfluxDB.
//
// # Architecture
//
//	┌──────────────┐   ┌──────────────┐   ┌──────────────┐
//	│ ReadExportDB │──▶│    Decode    │──▶│   Ingester   │
//	│ (exportdb.go)│   │  (report.go) │   │ (ingester.go)│
//	└──────────────┘   └──────────────┘   └──────┬───────┘
//	                                             │
//	               ┌─────────────────────────────┼──────────────────┐
//	               ▼                             ▼                  ▼
//	      ┌──────────────────┐         ┌──────────────────┐  ┌──────────────┐
//	      │    Repository    │         │    Publisher     │  │   Recorder   │
//	      │ (device_reports) │         │ (retained MQTT)  │  │  (InfluxDB)  │
//	      └──────────────────┘         └──────────────────┘  └──────────────┘
//
// # Decoded properties
//
//   - ID_PATH and ID_SAS_PATH: composite identifier paths
//   - DM_UUID: device-mapper UUIDs
//   - PCI_SLOT_NAME, or the sys name of pci devices: PCI addresses
//   - device links: "by-<category>" classification
//
// A value that does not parse becomes a FieldError in the report; decoding
// itself never fails.
//
// # Usage
//
//	devices, err := inventory.ReadExportDB(os.Stdin)
//	if err != nil {
//	    return err
//	}
//
//	ingester := inventory.NewIngester(inventory.NewSQLiteRepository(db.DB))
//	ingester.SetPublisher(mqttClient)
//	ingester.SetRecorder(influxClient)
//	summary, err := ingester.Ingest(ctx, "stdin", devices)
package inventory
