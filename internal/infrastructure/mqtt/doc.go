// Package mqtt provides MQTT client connectivity for udevparse.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing decoded device reports as retained JSON
//   - Receiving export-db dumps that remote hosts submit for ingest
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
//	udevparse/device/{sys_name}/report   retained, one per device
//	udevparse/ingest/{host}              dump text, consumed by "serve"
//	udevparse/system/status              online/offline
//
// # Security Considerations
//
//   - Enable TLS for anything beyond a local broker (cfg.Broker.TLS=true)
//   - Dumps arriving on ingest topics are untrusted input and are size-limited
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(mqtt.Topics{}.DeviceReport("sda"), report)
package mqtt
