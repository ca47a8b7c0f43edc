package inventory

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/udevparse/internal/infrastructure/influxdb"
	"github.com/nerrad567/udevparse/internal/infrastructure/mqtt"
)

// Logger defines the logging interface used by the Ingester.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Publisher publishes decoded reports. *mqtt.Client satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// Recorder records parse metrics. *influxdb.Client satisfies it.
type Recorder interface {
	WriteParseOutcome(property, outcome string)
	WriteIngestSummary(source string, devices, fieldErrors int, elapsed time.Duration)
}

// Summary describes one ingest run.
type Summary struct {
	Source      string        `json:"source"`
	Devices     int           `json:"devices"`
	FieldErrors int           `json:"field_errors"`
	Published   int           `json:"published"`
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// Ingester decodes device records, stores the reports, publishes them and
// records parse metrics.
//
// Storage failures abort a run. Publishing is best effort: a failed publish
// is logged and the run continues.
type Ingester struct {
	repo      Repository
	publisher Publisher
	recorder  Recorder
	logger    Logger
	topics    mqtt.Topics
	now       func() time.Time
}

// NewIngester creates an ingester that stores reports in repo.
func NewIngester(repo Repository) *Ingester {
	return &Ingester{
		repo:   repo,
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the ingester.
func (i *Ingester) SetLogger(logger Logger) {
	i.logger = logger
}

// SetPublisher enables report publishing. A nil publisher disables it.
func (i *Ingester) SetPublisher(p Publisher) {
	i.publisher = p
}

// SetRecorder enables parse metrics. A nil recorder disables them.
func (i *Ingester) SetRecorder(r Recorder) {
	i.recorder = r
}

// IngestReader reads an export-db dump from r and ingests every record.
//
// Parameters:
//   - ctx: Context for cancellation
//   - source: Label for logs and metrics (file name, "stdin", MQTT host)
//   - r: Dump text
//
// Returns:
//   - Summary: Counts for the run
//   - error: ErrInvalidExportDB for a malformed dump, or a storage error
func (i *Ingester) IngestReader(ctx context.Context, source string, r io.Reader) (Summary, error) {
	devices, err := ReadExportDB(r)
	if err != nil {
		return Summary{Source: source}, err
	}
	return i.Ingest(ctx, source, devices)
}

// Ingest decodes, stores and publishes a report for every device.
func (i *Ingester) Ingest(ctx context.Context, source string, devices []Device) (Summary, error) {
	start := i.now()
	summary := Summary{Source: source}

	for _, d := range devices {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		report := decode(d, i.observe)
		if err := i.repo.Save(ctx, &report); err != nil {
			return summary, fmt.Errorf("saving report for %s: %w", report.SysPath, err)
		}
		summary.Devices++
		summary.FieldErrors += len(report.Errors)

		for _, fe := range report.Errors {
			i.logger.Debug("property did not parse",
				"sys_path", report.SysPath,
				"property", fe.Property,
				"value", fe.Value,
				"offset", fe.Offset,
				"reason", fe.Reason,
			)
		}

		if i.publisher != nil {
			topic := i.topics.DeviceReport(report.SysName)
			if err := i.publisher.PublishJSON(topic, report); err != nil {
				i.logger.Warn("failed to publish report", "topic", topic, "error", err)
			} else {
				summary.Published++
			}
		}
	}

	summary.Elapsed = i.now().Sub(start)
	if i.recorder != nil {
		i.recorder.WriteIngestSummary(source, summary.Devices, summary.FieldErrors, summary.Elapsed)
	}

	i.logger.Info("ingest complete",
		"source", source,
		"devices", summary.Devices,
		"field_errors", summary.FieldErrors,
		"published", summary.Published,
		"elapsed", summary.Elapsed,
	)
	return summary, nil
}

// observe records one parse outcome.
func (i *Ingester) observe(property string, err error) {
	if i.recorder == nil {
		return
	}
	outcome := influxdb.OutcomeOK
	if err != nil {
		outcome = influxdb.OutcomeError
	}
	i.recorder.WriteParseOutcome(property, outcome)
}
