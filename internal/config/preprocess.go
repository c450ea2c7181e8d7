package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/courier/pkg/archive"
	"github.com/JaimeStill/courier/pkg/formatting"
	"github.com/JaimeStill/courier/pkg/preprocess"
)

const (
	EnvPreprocessMaxDepth            = "COURIER_PREPROCESS_MAX_DEPTH"
	EnvPreprocessWorkers             = "COURIER_PREPROCESS_WORKERS"
	EnvPreprocessScratchDir          = "COURIER_PREPROCESS_SCRATCH_DIR"
	EnvPreprocessTimeout             = "COURIER_PREPROCESS_TIMEOUT"
	EnvPreprocessMaxEntrySize        = "COURIER_PREPROCESS_MAX_ENTRY_SIZE"
	EnvPreprocessMaxTotalSize        = "COURIER_PREPROCESS_MAX_TOTAL_SIZE"
	EnvPreprocessIncludeInlineImages = "COURIER_PREPROCESS_INCLUDE_INLINE_IMAGES"
	EnvPreprocessDisabledFormats     = "COURIER_PREPROCESS_DISABLED_FORMATS"
)

// PreprocessConfig holds container expansion limits.
type PreprocessConfig struct {
	MaxDepth            *int     `toml:"max_depth"`
	Workers             int      `toml:"workers"`
	ScratchDir          string   `toml:"scratch_dir"`
	Timeout             string   `toml:"timeout"`
	MaxEntrySize        string   `toml:"max_entry_size"`
	MaxTotalSize        string   `toml:"max_total_size"`
	IncludeInlineImages bool     `toml:"include_inline_images"`
	DisabledFormats     []string `toml:"disabled_formats"`
}

// Depth returns the configured maximum nesting depth.
func (c *PreprocessConfig) Depth() int {
	if c.MaxDepth == nil {
		return 3
	}
	return *c.MaxDepth
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *PreprocessConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// ProcessorConfig converts the finalized section into a preprocess.Config.
func (c *PreprocessConfig) ProcessorConfig() (preprocess.Config, error) {
	entry, err := formatting.ParseBytes(c.MaxEntrySize)
	if err != nil {
		return preprocess.Config{}, fmt.Errorf("max_entry_size: %w", err)
	}
	total, err := formatting.ParseBytes(c.MaxTotalSize)
	if err != nil {
		return preprocess.Config{}, fmt.Errorf("max_total_size: %w", err)
	}

	disabled := make([]archive.Format, 0, len(c.DisabledFormats))
	for _, name := range c.DisabledFormats {
		f, err := archive.ParseFormat(name)
		if err != nil {
			return preprocess.Config{}, fmt.Errorf("disabled_formats: %w", err)
		}
		disabled = append(disabled, f)
	}

	return preprocess.Config{
		Workers:             c.Workers,
		ScratchDir:          c.ScratchDir,
		Timeout:             c.TimeoutDuration(),
		IncludeInlineImages: c.IncludeInlineImages,
		Archive: archive.Config{
			MaxEntrySize: entry,
			MaxTotalSize: total,
			Disabled:     disabled,
		},
	}, nil
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *PreprocessConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *PreprocessConfig) Merge(overlay *PreprocessConfig) {
	if overlay.MaxDepth != nil {
		c.MaxDepth = overlay.MaxDepth
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.ScratchDir != "" {
		c.ScratchDir = overlay.ScratchDir
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.MaxEntrySize != "" {
		c.MaxEntrySize = overlay.MaxEntrySize
	}
	if overlay.MaxTotalSize != "" {
		c.MaxTotalSize = overlay.MaxTotalSize
	}
	if overlay.IncludeInlineImages {
		c.IncludeInlineImages = true
	}
	if len(overlay.DisabledFormats) > 0 {
		c.DisabledFormats = overlay.DisabledFormats
	}
}

func (c *PreprocessConfig) loadDefaults() {
	if c.MaxDepth == nil {
		depth := 3
		c.MaxDepth = &depth
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.ScratchDir == "" {
		c.ScratchDir = os.TempDir()
	}
	if c.Timeout == "" {
		c.Timeout = "5m"
	}
	if c.MaxEntrySize == "" {
		c.MaxEntrySize = "512MB"
	}
	if c.MaxTotalSize == "" {
		c.MaxTotalSize = "2GB"
	}
}

func (c *PreprocessConfig) loadEnv() {
	if v := os.Getenv(EnvPreprocessMaxDepth); v != "" {
		if depth, err := strconv.Atoi(v); err == nil {
			c.MaxDepth = &depth
		}
	}
	if v := os.Getenv(EnvPreprocessWorkers); v != "" {
		if workers, err := strconv.Atoi(v); err == nil {
			c.Workers = workers
		}
	}
	if v := os.Getenv(EnvPreprocessScratchDir); v != "" {
		c.ScratchDir = v
	}
	if v := os.Getenv(EnvPreprocessTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvPreprocessMaxEntrySize); v != "" {
		c.MaxEntrySize = v
	}
	if v := os.Getenv(EnvPreprocessMaxTotalSize); v != "" {
		c.MaxTotalSize = v
	}
	if v := os.Getenv(EnvPreprocessIncludeInlineImages); v != "" {
		if include, err := strconv.ParseBool(v); err == nil {
			c.IncludeInlineImages = include
		}
	}
	if v := os.Getenv(EnvPreprocessDisabledFormats); v != "" {
		c.DisabledFormats = splitList(v)
	}
}

func (c *PreprocessConfig) validate() error {
	if c.Depth() < 0 {
		return fmt.Errorf("invalid max_depth: %d", c.Depth())
	}
	if c.Workers < 1 {
		return fmt.Errorf("invalid workers: %d", c.Workers)
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if _, err := c.ProcessorConfig(); err != nil {
		return err
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
