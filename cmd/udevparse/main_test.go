package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/udevparse/internal/inventory"
)

const testDump = `P: /devices/pci0000:00/0000:00:1f.2/ata1/host0/target0:0:0/0:0:0:0/block/sda
M: sda
U: block
N: sda
S: disk/by-path/pci-0000:00:1f.2-ata-1
E: SUBSYSTEM=block
E: ID_PATH=pci-0000:00:1f.2-ata-1

P: /devices/virtual/block/dm-0
M: dm-0
U: block
N: dm-0
E: SUBSYSTEM=block
E: DM_UUID=LVM-short
`

// syncBuffer is a bytes.Buffer safe for use by a running command and a test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// writeConfig writes a config file using a database in a temp directory.
// extra is appended verbatim.
func writeConfig(t *testing.T, extra ...string) string {
	t.Helper()
	dir := t.TempDir()
	cfg := strings.Join(extra, "") + `database:
  path: ` + filepath.Join(dir, "udevparse.db") + `
api:
  host: 127.0.0.1
  port: 0
logging:
  level: info
  format: json
`
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

// run executes the command tree with args, returning stdout, stderr and the error.
func run(ctx context.Context, stdin string, args ...string) (string, string, error) {
	var stdout, stderr syncBuffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func decodeRecords(t *testing.T, out string) []inventory.Record {
	t.Helper()
	var records []inventory.Record
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var rec inventory.Record
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("decoding %q: %v", sc.Text(), err)
		}
		records = append(records, rec)
	}
	return records
}

func TestParse(t *testing.T) {
	out, _, err := run(context.Background(), "", "parse", "pci", "0000:00:1f.2", "0001:ff:1f.7")
	if err != nil {
		t.Fatalf("parse error = %v", err)
	}

	records := decodeRecords(t, out)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if got := records[0].Fields["function"]; got != "2" {
		t.Errorf("function = %q, want %q", got, "2")
	}
	if got := records[1].Fields["domain"]; got != "0001" {
		t.Errorf("domain = %q, want %q", got, "0001")
	}
}

func TestParse_FailedValue(t *testing.T) {
	out, _, err := run(context.Background(), "", "parse", "id-path", "pci-0000:00:1f.2-ata-1", "pci-0000:00:1f.2-bogus-7")
	if !errors.Is(err, errValuesFailed) {
		t.Fatalf("parse error = %v, want errValuesFailed", err)
	}

	records := decodeRecords(t, out)
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].Error != nil {
		t.Errorf("first record error = %+v, want nil", records[0].Error)
	}
	if records[1].Error == nil {
		t.Fatal("second record has no error")
	}
	if records[1].Error.Offset == 0 {
		t.Errorf("error offset = 0, want the offset of the bad segment")
	}
}

func TestParse_UnknownKind(t *testing.T) {
	out, _, err := run(context.Background(), "", "parse", "serial", "abc")
	if !errors.Is(err, inventory.ErrUnknownKind) {
		t.Errorf("parse error = %v, want ErrUnknownKind", err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want empty", out)
	}
}

func TestParse_TooFewArgs(t *testing.T) {
	if _, _, err := run(context.Background(), "", "parse", "pci"); err == nil {
		t.Error("parse with no values succeeded")
	}
}

func TestMissingConfig(t *testing.T) {
	_, _, err := run(context.Background(), "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "parse", "pci", "00:01.0")
	if err == nil || !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want a config load failure", err)
	}
}

func TestIngest_Stdin(t *testing.T) {
	cfgPath := writeConfig(t)

	out, _, err := run(context.Background(), testDump, "--config", cfgPath, "ingest", "-")
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}

	var summary inventory.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decoding summary %q: %v", out, err)
	}
	if summary.Source != "stdin" {
		t.Errorf("source = %q, want stdin", summary.Source)
	}
	if summary.Devices != 2 {
		t.Errorf("devices = %d, want 2", summary.Devices)
	}
	if summary.FieldErrors != 1 {
		t.Errorf("field errors = %d, want 1", summary.FieldErrors)
	}
	if summary.Published != 0 {
		t.Errorf("published = %d with MQTT disabled, want 0", summary.Published)
	}
}

func TestIngest_File(t *testing.T) {
	cfgPath := writeConfig(t)
	dump := filepath.Join(t.TempDir(), "export-db.txt")
	if err := os.WriteFile(dump, []byte(testDump), 0o600); err != nil {
		t.Fatalf("writing dump: %v", err)
	}

	out, _, err := run(context.Background(), "", "--config", cfgPath, "ingest", dump)
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	if !strings.Contains(out, `"source":"`+dump+`"`) {
		t.Errorf("summary %q does not name the dump", out)
	}

	// A second run replaces the stored reports.
	if _, _, err := run(context.Background(), "", "--config", cfgPath, "ingest", dump); err != nil {
		t.Fatalf("second ingest error = %v", err)
	}
}

func TestIngest_MissingFile(t *testing.T) {
	cfgPath := writeConfig(t)
	_, _, err := run(context.Background(), "", "--config", cfgPath, "ingest", filepath.Join(t.TempDir(), "missing"))
	if err == nil || !strings.Contains(err.Error(), "opening dump") {
		t.Errorf("error = %v, want an open failure", err)
	}
}

func TestIngest_InvalidDump(t *testing.T) {
	cfgPath := writeConfig(t)
	_, _, err := run(context.Background(), "E: SUBSYSTEM=block\n", "--config", cfgPath, "ingest", "-")
	if !errors.Is(err, inventory.ErrInvalidExportDB) {
		t.Errorf("error = %v, want ErrInvalidExportDB", err)
	}
}

// fakeUdevadm writes a shell script standing in for udevadm and returns its path.
func fakeUdevadm(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "udevadm")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil { //nolint:gosec // test helper must be executable
		t.Fatalf("writing fake udevadm: %v", err)
	}
	return path
}

func TestIngest_Udevadm(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "dump.txt")
	if err := os.WriteFile(dump, []byte(testDump), 0o600); err != nil {
		t.Fatalf("writing dump: %v", err)
	}
	udevadm := fakeUdevadm(t, `[ "$1 $2" = "info --export-db" ] || exit 2
cat `+dump)
	cfgPath := writeConfig(t, "inventory:\n  udevadm: "+udevadm+"\n")

	out, _, err := run(context.Background(), "", "--config", cfgPath, "ingest", "--udevadm")
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}

	var summary inventory.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decoding summary %q: %v", out, err)
	}
	if summary.Source != "udevadm" || summary.Devices != 2 {
		t.Errorf("summary = %+v, want 2 devices from udevadm", summary)
	}
}

func TestIngest_UdevadmFailure(t *testing.T) {
	udevadm := fakeUdevadm(t, "echo 'Failed to scan devices' >&2; exit 1")
	cfgPath := writeConfig(t, "inventory:\n  udevadm: "+udevadm+"\n")

	_, _, err := run(context.Background(), "", "--config", cfgPath, "ingest", "--udevadm")
	if err == nil || !strings.Contains(err.Error(), "Failed to scan devices") {
		t.Errorf("error = %v, want the udevadm failure", err)
	}
}

func TestIngest_UdevadmWithFile(t *testing.T) {
	cfgPath := writeConfig(t)
	_, _, err := run(context.Background(), "", "--config", cfgPath, "ingest", "--udevadm", "dump.txt")
	if err == nil || !strings.Contains(err.Error(), "cannot be combined") {
		t.Errorf("error = %v, want a usage failure", err)
	}
}

func TestMigrate(t *testing.T) {
	cfgPath := writeConfig(t)
	ctx := context.Background()

	status := func() []migrationState {
		t.Helper()
		out, _, err := run(ctx, "", "--config", cfgPath, "migrate", "status")
		if err != nil {
			t.Fatalf("migrate status error = %v", err)
		}
		var states []migrationState
		sc := bufio.NewScanner(strings.NewReader(out))
		for sc.Scan() {
			var st migrationState
			if err := json.Unmarshal(sc.Bytes(), &st); err != nil {
				t.Fatalf("decoding %q: %v", sc.Text(), err)
			}
			states = append(states, st)
		}
		return states
	}

	states := status()
	if len(states) == 0 || states[0].Applied || states[0].Name != "device_reports" {
		t.Fatalf("fresh status = %+v, want device_reports pending", states)
	}

	if _, _, err := run(ctx, "", "--config", cfgPath, "migrate", "up"); err != nil {
		t.Fatalf("migrate up error = %v", err)
	}
	for _, st := range status() {
		if !st.Applied || st.AppliedAt == nil {
			t.Errorf("after up: %+v not applied", st)
		}
	}

	if _, _, err := run(ctx, "", "--config", cfgPath, "migrate", "down"); err != nil {
		t.Fatalf("migrate down error = %v", err)
	}
	states = status()
	if last := states[len(states)-1]; last.Applied {
		t.Errorf("after down: latest migration %+v still applied", last)
	}
}

func TestIngestHandler(t *testing.T) {
	repo := inventory.NewMemoryRepository()
	handler := ingestHandler(context.Background(), inventory.NewIngester(repo))

	if err := handler("udevparse/ingest/storage-01", []byte(testDump)); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	reports, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(reports) != 2 {
		t.Errorf("stored %d reports, want 2", len(reports))
	}

	if err := handler("udevparse/device/sda/report", []byte(testDump)); err == nil {
		t.Error("handler accepted a non-ingest topic")
	}
	if err := handler("udevparse/ingest/storage-01", []byte("E: SUBSYSTEM=block\n")); !errors.Is(err, inventory.ErrInvalidExportDB) {
		t.Errorf("handler error = %v, want ErrInvalidExportDB", err)
	}
}

func TestServe(t *testing.T) {
	cfgPath := writeConfig(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var stderr syncBuffer
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", cfgPath, "serve"})
	cmd.SetOut(&syncBuffer{})
	cmd.SetErr(&stderr)

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(stderr.String(), "udevparse ready") {
		if time.Now().After(deadline) {
			t.Fatalf("server not ready; log:\n%s", stderr.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
