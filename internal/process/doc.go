// Package process runs short-lived helper commands and captures their output.
//
// It is used to collect the udev database directly from udevadm instead of
// reading a saved dump.
//
// Features:
//   - Bounded run time with graceful shutdown of the whole process group
//   - Stderr captured line by line to the logger
//   - Context-based cancellation
//
// Example usage:
//
//	r := process.NewRunner(process.Config{
//	    Name:    "udevadm",
//	    Binary:  "udevadm",
//	    Args:    []string{"info", "--export-db"},
//	    Timeout: 30 * time.Second,
//	})
//
//	var dump bytes.Buffer
//	if err := r.Run(ctx, &dump); err != nil {
//	    log.Fatal(err)
//	}
package process
