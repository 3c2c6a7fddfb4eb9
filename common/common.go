// Package common holds process-wide helpers shared by the agent binaries.
package common

import (
	"log/slog"
	"os"
)

var (
	// PackageName is used as the namespace for exported metrics.
	PackageName = "divs"

	// Version is overridden at build time via -ldflags.
	Version = "dev"
)

// LoggingOpts configures the process logger.
type LoggingOpts struct {
	Debug   bool
	JSON    bool
	Service string
	Version string
}

// SetupLogger returns a slog logger writing to stdout. Service and version
// tags are attached to every record when set.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	}

	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With("service", opts.Service)
	}
	if opts.Version != "" {
		logger = logger.With("version", opts.Version)
	}
	return logger
}
