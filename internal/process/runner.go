package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Default timeouts applied when Config leaves them zero.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultGracefulTimeout = 5 * time.Second
)

// maxStderrLine bounds a single captured stderr line.
const maxStderrLine = 64 * 1024

// Errors returned by Runner.
var (
	// ErrNoBinary is returned when Config.Binary is empty.
	ErrNoBinary = errors.New("process: binary is required")

	// ErrTimeout is returned when the command outlives Config.Timeout.
	ErrTimeout = errors.New("process: timed out")
)

// Config holds configuration for a helper command.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the executable, either a path or a name looked up in PATH.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// Timeout bounds the whole run.
	Timeout time.Duration

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration
}

// Logger defines the logging interface for the runner.
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

// Runner runs a helper command to completion.
type Runner struct {
	config Config
	logger Logger
}

// NewRunner creates a runner with the given configuration.
func NewRunner(cfg Config) *Runner {
	if cfg.Name == "" {
		cfg.Name = cfg.Binary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = DefaultGracefulTimeout
	}
	return &Runner{config: cfg, logger: noopLogger{}}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	r.logger = logger
}

// Config returns the effective configuration.
func (r *Runner) Config() Config {
	return r.config
}

// Run starts the command, copies its stdout to w and waits for it to exit.
//
// The command runs in its own process group. When ctx is cancelled or the
// timeout expires the group receives SIGTERM, then SIGKILL after
// GracefulTimeout.
//
// Returns:
//   - error: ErrNoBinary, ErrTimeout, ctx.Err(), or the exit failure
//     with the last stderr line
func (r *Runner) Run(ctx context.Context, w io.Writer) error {
	if r.config.Binary == "" {
		return ErrNoBinary
	}

	runCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.config.Binary, r.config.Args...) //nolint:gosec // binary comes from operator configuration
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// Negative PID signals the process group created via Setpgid.
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = r.config.GracefulTimeout
	if r.config.Env != nil {
		cmd.Env = append(os.Environ(), r.config.Env...)
	}
	cmd.Stdout = w

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe: %w", err)
	}

	r.logger.Debug("running command",
		"name", r.config.Name,
		"binary", r.config.Binary,
		"args", r.config.Args,
	)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", r.config.Name, err)
	}

	var (
		wg       sync.WaitGroup
		lastLine string
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		lastLine = r.captureStderr(stderr)
	}()

	// Stderr must be drained before Wait closes the pipe.
	wg.Wait()
	err = cmd.Wait()

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return fmt.Errorf("%w: %s after %s", ErrTimeout, r.config.Name, r.config.Timeout)
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		if lastLine != "" {
			return fmt.Errorf("running %s: %w: %s", r.config.Name, err, lastLine)
		}
		return fmt.Errorf("running %s: %w", r.config.Name, err)
	}

	r.logger.Debug("command finished",
		"name", r.config.Name,
		"duration", time.Since(start),
	)
	return nil
}

// captureStderr logs each stderr line and returns the last non-empty one.
func (r *Runner) captureStderr(rd io.Reader) string {
	var last string
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 4096), maxStderrLine)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		last = line
		r.logger.Warn("command stderr", "name", r.config.Name, "output", line)
	}
	if err := sc.Err(); err != nil {
		r.logger.Debug("stderr stream closed", "name", r.config.Name, "error", err)
		// Keep draining so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, rd) //nolint:errcheck // best effort drain
	}
	return last
}
