// Package logging configures the process-wide zerolog logger used by every gate.
// Gates log through github.com/rs/zerolog/log; this package only decides where
// those lines go and at which level.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config configures the logger behavior.
type Config struct {
	Level     string // Minimum level: debug, info, warn, error
	Format    string // "console" or "json"
	FilePath  string // Optional file path for persistent logs
	Colored   bool   // Enable colored console output
	Component string // Component name attached to every line
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:   "info",
		Format:  "console",
		Colored: true,
	}
}

// VerboseConfig returns a configuration for verbose troubleshooting.
func VerboseConfig() *Config {
	return &Config{
		Level:   "debug",
		Format:  "console",
		Colored: true,
	}
}

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a logger writing to out according to cfg.
func New(cfg *Config, out io.Writer) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if out == nil {
		out = os.Stderr
	}

	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    !cfg.Colored,
			TimeFormat: time.TimeOnly,
		}
	}

	ctx := zerolog.New(out).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	return ctx.Logger()
}

// Setup installs the global logger and returns a close function for the
// optional file sink. The close function is never nil.
func Setup(cfg *Config) (func() error, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var out io.Writer = os.Stderr
	closeFn := func() error { return nil }

	if cfg.FilePath != "" {
		f, err := openLogFile(cfg.FilePath)
		if err != nil {
			return closeFn, err
		}
		out = zerolog.MultiLevelWriter(os.Stderr, f)
		closeFn = f.Close
	}

	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))
	log.Logger = New(cfg, out)
	return closeFn, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
