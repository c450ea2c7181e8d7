package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	EnvLogLevel  = "COURIER_LOG_LEVEL"
	EnvLogFormat = "COURIER_LOG_FORMAT"
)

// LogConfig selects the slog handler. Level is debug, info, warn, or error;
// Format is text or json.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *LogConfig) Finalize() error {
	c.Level = or(c.Level, "info")
	c.Format = or(c.Format, "text")
	c.Level = or(os.Getenv(EnvLogLevel), c.Level)
	c.Format = or(os.Getenv(EnvLogFormat), c.Format)

	if _, err := c.level(); err != nil {
		return err
	}
	switch strings.ToLower(c.Format) {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid log format %q", c.Format)
	}
}

// Merge overwrites non-zero fields from overlay.
func (c *LogConfig) Merge(overlay *LogConfig) {
	c.Level = or(overlay.Level, c.Level)
	c.Format = or(overlay.Format, c.Format)
}

// Logger builds a logger writing to w. Call after Finalize.
func (c *LogConfig) Logger(w io.Writer) *slog.Logger {
	level, _ := c.level()
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c *LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.Level)
	}
	return level, nil
}
