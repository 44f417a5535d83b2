// Package oklog wires the kernel's process-wide verbose/silence toggles
// (spec §9 "Global state") onto [log/slog], so a Kernel can be configured
// like any other slog-based service instead of printing through bespoke
// bool flags.
package oklog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/pflag"
)

// Format selects the slog handler encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var (
	ErrUnknownLevel  = errors.New("oklog: unknown log level")
	ErrUnknownFormat = errors.New("oklog: unknown log format")
)

// Level aliases slog.Level so callers of this package never need to import
// log/slog directly just to pick a level.
type Level = slog.Level

// GetLevel parses a level string. "silence" maps to a level above Error so
// that, per spec §9, the silent toggle suppresses everything including
// warnings; "verbose" maps to Debug.
func GetLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silence", "silent":
		return slog.LevelError + 4, nil
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "verbose", "debug":
		return slog.LevelDebug, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// GetFormat parses a format string.
func GetFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains([]Format{FormatText, FormatJSON}, f) {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// NewHandler builds a slog.Handler writing to w at the given level/format.
func NewHandler(w io.Writer, level Level, format Format) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// NewHandlerFromStrings is the string-driven constructor used by
// [Config.NewLogger] and by cmd/oksctl flag handling.
func NewHandlerFromStrings(w io.Writer, level, format string) (slog.Handler, error) {
	lvl, err := GetLevel(level)
	if err != nil {
		return nil, err
	}
	fmtv, err := GetFormat(format)
	if err != nil {
		return nil, err
	}
	return NewHandler(w, lvl, fmtv), nil
}

// Config holds the CLI-facing level/format knobs for a Kernel's logger.
// Construct with NewConfig, bind CLI flags with RegisterFlags, and obtain a
// *slog.Logger with NewLogger.
type Config struct {
	Level  string
	Format string
}

// NewConfig returns a Config with the kernel's defaults: info level, text
// format — equivalent to neither "verbose" nor "silence" being set.
func NewConfig() *Config {
	return &Config{Level: "info", Format: string(FormatText)}
}

// NewLogger builds a *slog.Logger writing to w from the configured
// level/format.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	h, err := NewHandlerFromStrings(w, c.Level, c.Format)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

// RegisterFlags adds --log-level and --log-format flags to flags, defaulting
// to the Config's current values.
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.Level, "log-level", c.Level, "log level: silence|error|warn|info|verbose")
	flags.StringVar(&c.Format, "log-format", c.Format, "log format: text|json")
}
