// Package logging builds the process logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"

	"nodeclass/internal/config"

	"github.com/sirupsen/logrus"
)

// New creates a logrus logger writing to out (stderr when nil)
func New(cfg config.LogConfig, out io.Writer) (*logrus.Logger, error) {
	if out == nil {
		out = os.Stderr
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("log format: unsupported %q", cfg.Format)
	}

	return logger, nil
}

// Discard returns a logger that drops everything, for tests and one-shot
// CLI commands that only print their result
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
