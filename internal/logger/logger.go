// Package logger configures process-wide logging for the docloom
// services and captures panics into crash reports.
package logger

import (
	"log/slog"
	"os"
)

// Setup installs the default logger. Verbose lowers the threshold to
// debug; everything else logs at info and above.
func Setup(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
