package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for udevparse MQTT traffic.
//
//	udevparse/device/{sys_name}/report   retained decoded report
//	udevparse/ingest/{host}              export-db dump submitted for ingest
//	udevparse/system/status              online/offline (LWT)
const (
	// TopicPrefix is the root of every udevparse topic.
	TopicPrefix = "udevparse"

	// TopicPrefixDevice is the base for per-device topics.
	TopicPrefixDevice = "udevparse/device"

	// TopicPrefixIngest is the base for ingest request topics.
	TopicPrefixIngest = "udevparse/ingest"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "udevparse/system"
)

// topicLevelReplacer keeps a value inside a single topic level.
var topicLevelReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

// Topics provides builders for udevparse MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	topic := topics.DeviceReport("sda")
//	// Returns: "udevparse/device/sda/report"
type Topics struct{}

// TopicLevel returns value with the characters MQTT reserves for level
// separators and wildcards replaced by "_".
func TopicLevel(value string) string {
	if value == "" {
		return "_"
	}
	return topicLevelReplacer.Replace(value)
}

// DeviceReport returns the retained report topic for a device.
//
// Example: udevparse/device/sda/report
func (Topics) DeviceReport(sysName string) string {
	return fmt.Sprintf("%s/%s/report", TopicPrefixDevice, TopicLevel(sysName))
}

// IngestRequest returns the topic a host publishes its export-db dump to.
//
// Example: udevparse/ingest/storage-01
func (Topics) IngestRequest(host string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixIngest, TopicLevel(host))
}

// SystemStatus returns the system status topic.
//
// Example: udevparse/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllDeviceReports returns a pattern matching every device report.
//
// Pattern: udevparse/device/+/report
func (Topics) AllDeviceReports() string {
	return fmt.Sprintf("%s/+/report", TopicPrefixDevice)
}

// AllIngestRequests returns a pattern matching ingest requests from any host.
//
// Pattern: udevparse/ingest/+
func (Topics) AllIngestRequests() string {
	return fmt.Sprintf("%s/+", TopicPrefixIngest)
}

// AllTopics returns a pattern matching all udevparse topics.
//
// Pattern: udevparse/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// HostFromIngestTopic extracts the host level from an ingest request topic.
func HostFromIngestTopic(topic string) (string, bool) {
	host, ok := strings.CutPrefix(topic, TopicPrefixIngest+"/")
	if !ok || host == "" || strings.Contains(host, "/") {
		return "", false
	}
	return host, true
}
