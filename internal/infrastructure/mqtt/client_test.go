package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/udevparse/internal/infrastructure/config"
)

const testBrokerAddr = "127.0.0.1:1883"

var (
	brokerOnce      sync.Once
	brokerReachable bool
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "udevparse-test",
			TLS:      false,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// requireBroker skips the test unless a broker accepts connections on
// testBrokerAddr.
func requireBroker(t *testing.T) {
	t.Helper()
	brokerOnce.Do(func() {
		conn, err := net.DialTimeout("tcp", testBrokerAddr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			brokerReachable = true
		}
	})
	if !brokerReachable {
		t.Skipf("no MQTT broker at %s", testBrokerAddr)
	}
}

// connectTest connects with a unique client ID and closes on cleanup.
func connectTest(t *testing.T, clientID string) *Client {
	t.Helper()
	requireBroker(t)

	cfg := testConfig()
	cfg.Broker.ClientID = clientID

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// =============================================================================
// Broker-free Tests
// =============================================================================

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestHealthCheck_Uninitialised(t *testing.T) {
	client := &Client{}

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublish_Validation(t *testing.T) {
	client := &Client{}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "udevparse/test", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "udevparse/test", make([]byte, MaxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "udevparse/test", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishJSON_EncodeError(t *testing.T) {
	client := &Client{}

	err := client.PublishJSON("udevparse/test", func() {})
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := &Client{subscriptions: make(map[string]subscription)}
	handler := func(string, []byte) error { return nil }

	if err := client.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Subscribe("udevparse/#", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe(qos 3) error = %v, want ErrInvalidQoS", err)
	}
	if err := client.Subscribe("udevparse/#", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe(nil handler) error = %v, want ErrSubscribeFailed", err)
	}
	if err := client.Subscribe("udevparse/#", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe(disconnected) error = %v, want ErrNotConnected", err)
	}
	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(empty) error = %v, want ErrInvalidTopic", err)
	}
	if got := client.Subscriptions(); len(got) != 0 {
		t.Errorf("Subscriptions() = %v, want none", got)
	}
}

// fakeMessage satisfies pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func TestWrapHandler_RecoversAndLogs(t *testing.T) {
	client := &Client{}
	logger := &recordingLogger{}
	client.SetLogger(logger)

	panicking := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	failing := client.wrapHandler(func(string, []byte) error {
		return errors.New("bad dump")
	})

	msg := fakeMessage{topic: "udevparse/ingest/host-a", payload: []byte("P: /devices/x\n")}
	panicking(nil, msg)
	failing(nil, msg)

	if len(logger.errors) != 1 {
		t.Errorf("logged %d errors, want 1 (panic)", len(logger.errors))
	}
	if len(logger.warns) != 1 {
		t.Errorf("logged %d warnings, want 1 (handler error)", len(logger.warns))
	}
}

func TestWrapHandler_DropsOversizedPayload(t *testing.T) {
	client := &Client{}
	logger := &recordingLogger{}
	client.SetLogger(logger)

	called := false
	handler := client.wrapHandler(func(string, []byte) error {
		called = true
		return nil
	})

	handler(nil, fakeMessage{topic: "udevparse/ingest/host-a", payload: make([]byte, MaxPayloadSize+1)})
	if called {
		t.Error("handler called for an oversized payload")
	}
	if len(logger.warns) != 1 {
		t.Errorf("logged %d warnings, want 1 (dropped message)", len(logger.warns))
	}

	handler(nil, fakeMessage{topic: "udevparse/ingest/host-a", payload: make([]byte, MaxPayloadSize)})
	if !called {
		t.Error("handler not called for a payload at the limit")
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	client := &Client{}
	handler := client.wrapHandler(func(string, []byte) error { panic("boom") })

	// Must not panic without a logger.
	handler(nil, fakeMessage{topic: "udevparse/ingest/host-a"})
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "reporter"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "udevparse-test" {
		t.Errorf("ClientID = %q, want udevparse-test", opts.ClientID)
	}
	if opts.Username != "reporter" {
		t.Errorf("Username = %q, want reporter", opts.Username)
	}

	cfg.Broker.TLS = true
	opts = buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("TLS scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config missing or below minimum version")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "udevparse-test")

	if !opts.WillEnabled {
		t.Fatal("WillEnabled = false, want true")
	}
	if opts.WillTopic != "udevparse/system/status" {
		t.Errorf("WillTopic = %q, want udevparse/system/status", opts.WillTopic)
	}
	if !opts.WillRetained {
		t.Error("WillRetained = false, want true")
	}

	var payload map[string]string
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("LWT payload is not JSON: %v", err)
	}
	if payload["status"] != "offline" || payload["reason"] != "unexpected_disconnect" {
		t.Errorf("LWT payload = %v", payload)
	}
}

func TestStatusPayloads(t *testing.T) {
	tests := []struct {
		status     Status
		wantStatus string
		wantReason string
	}{
		{onlineStatus("udevparse-test"), StatusOnline, ""},
		{offlineStatus("udevparse-test", ReasonGracefulShutdown), StatusOffline, ReasonGracefulShutdown},
	}

	for _, tt := range tests {
		t.Run(tt.wantStatus, func(t *testing.T) {
			raw, err := tt.status.payload()
			if err != nil {
				t.Fatalf("payload() error = %v", err)
			}

			var decoded Status
			if err := json.Unmarshal(raw, &decoded); err != nil {
				t.Fatalf("payload is not JSON: %v", err)
			}
			if decoded.Status != tt.wantStatus || decoded.Reason != tt.wantReason {
				t.Errorf("decoded = %+v, want status %q reason %q", decoded, tt.wantStatus, tt.wantReason)
			}
			if decoded.ClientID != "udevparse-test" {
				t.Errorf("client_id = %q", decoded.ClientID)
			}
			if decoded.Timestamp.IsZero() {
				t.Error("timestamp missing")
			}
		})
	}
}

// =============================================================================
// Topics Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"DeviceReport", topics.DeviceReport("sda"), "udevparse/device/sda/report"},
		{"DeviceReport pci", topics.DeviceReport("0000:00:1f.2"), "udevparse/device/0000:00:1f.2/report"},
		{"DeviceReport sanitised", topics.DeviceReport("a/b+c#"), "udevparse/device/a_b_c_/report"},
		{"DeviceReport empty", topics.DeviceReport(""), "udevparse/device/_/report"},
		{"IngestRequest", topics.IngestRequest("storage-01"), "udevparse/ingest/storage-01"},
		{"SystemStatus", topics.SystemStatus(), "udevparse/system/status"},
		{"AllDeviceReports", topics.AllDeviceReports(), "udevparse/device/+/report"},
		{"AllIngestRequests", topics.AllIngestRequests(), "udevparse/ingest/+"},
		{"AllTopics", topics.AllTopics(), "udevparse/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func TestHostFromIngestTopic(t *testing.T) {
	tests := []struct {
		topic  string
		want   string
		wantOK bool
	}{
		{"udevparse/ingest/storage-01", "storage-01", true},
		{Topics{}.IngestRequest("a/b"), "a_b", true},
		{"udevparse/ingest/", "", false},
		{"udevparse/ingest/a/b", "", false},
		{"udevparse/device/sda/report", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got, ok := HostFromIngestTopic(tt.topic)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("HostFromIngestTopic(%q) = %q, %v; want %q, %v", tt.topic, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// =============================================================================
// Broker Tests
// =============================================================================

func TestConnect(t *testing.T) {
	client := connectTest(t, "udevparse-test-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
}

func TestClose(t *testing.T) {
	client := connectTest(t, "udevparse-test-close")

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close(), want false")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestPublishJSON(t *testing.T) {
	client := connectTest(t, "udevparse-test-publish")

	report := map[string]string{"sys_name": "sda", "id_path": "pci-0000:00:1f.2-ata-1"}
	if err := client.PublishJSON(Topics{}.DeviceReport("sda"), report); err != nil {
		t.Errorf("PublishJSON() error = %v", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	pub := connectTest(t, "udevparse-test-pub")
	sub := connectTest(t, "udevparse-test-sub")

	topic := Topics{}.IngestRequest("roundtrip-host")
	dump := "P: /devices/virtual/block/loop0\nE: SUBSYSTEM=block\n"
	received := make(chan string, 1)

	err := sub.Subscribe(Topics{}.AllIngestRequests(), 1, func(topic string, payload []byte) error {
		if host, ok := HostFromIngestTopic(topic); ok && host == "roundtrip-host" {
			received <- string(payload)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if got := sub.Subscriptions(); len(got) != 1 || got[0] != (Topics{}).AllIngestRequests() {
		t.Errorf("Subscriptions() = %v after Subscribe", got)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pub.Publish(topic, []byte(dump), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case payload := <-received:
		if payload != dump {
			t.Errorf("received payload = %q, want %q", payload, dump)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for message")
	}

	if err := sub.Unsubscribe(Topics{}.AllIngestRequests()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if got := sub.Subscriptions(); len(got) != 0 {
		t.Errorf("Subscriptions() = %v after Unsubscribe, want none", got)
	}
}

func TestRetainedDeviceReport(t *testing.T) {
	pub := connectTest(t, "udevparse-test-retain-pub")

	sysName := "retain-" + strings.ReplaceAll(time.Now().Format("150405.000"), ".", "")
	if err := pub.PublishJSON(Topics{}.DeviceReport(sysName), map[string]string{"sys_name": sysName}); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	sub := connectTest(t, "udevparse-test-retain-sub")
	received := make(chan []byte, 1)
	err := sub.Subscribe(Topics{}.DeviceReport(sysName), 1, func(_ string, payload []byte) error {
		received <- payload
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case payload := <-received:
		if !strings.Contains(string(payload), sysName) {
			t.Errorf("retained payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Error("retained report not delivered to late subscriber")
	}

	// Clear the retained message.
	if err := pub.Publish(Topics{}.DeviceReport(sysName), nil, 1, true); err != nil {
		t.Errorf("clearing retained message: %v", err)
	}
}
