// Package archive unpacks ZIP, TAR, 7z, and RAR archives, along with single
// gzip, bzip2, xz, and zstd streams, into an output directory.
// Entry names are resolved through safefs so no entry can land outside the
// output directory, and decompressed sizes are capped per entry and per archive.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// Format identifies an archive encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTar
	FormatCompressed
	FormatSevenZip
	FormatRar
)

var formatNames = map[Format]string{
	FormatUnknown:    "unknown",
	FormatZip:        "zip",
	FormatTar:        "tar",
	FormatCompressed: "compressed",
	FormatSevenZip:   "7z",
	FormatRar:        "rar",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// ParseFormat maps a format name ("zip", "tar", "compressed", "7z", "rar") to a Format.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range formatNames {
		if f != FormatUnknown && n == name {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupported, name)
}

var tarSuffixes = []string{".tar.gz", ".tgz", ".tar.bz2", ".tbz2", ".tar.xz", ".txz", ".tar.zst", ".tar"}

var compressedSuffixes = []string{".gz", ".bz2", ".xz", ".zst"}

// DetectFormat classifies path by extension. Compound tar extensions are checked
// before the single compression suffixes they end with.
func DetectFormat(path string) Format {
	lower := strings.ToLower(path)

	for _, s := range tarSuffixes {
		if strings.HasSuffix(lower, s) {
			return FormatTar
		}
	}

	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".7z"):
		return FormatSevenZip
	case strings.HasSuffix(lower, ".rar"):
		return FormatRar
	}

	for _, s := range compressedSuffixes {
		if strings.HasSuffix(lower, s) {
			return FormatCompressed
		}
	}

	return FormatUnknown
}

// Config bounds extraction. Zero sizes fall back to the package defaults.
type Config struct {
	MaxEntrySize int64
	MaxTotalSize int64
	Disabled     []Format
}

const (
	DefaultMaxEntrySize int64 = 512 << 20
	DefaultMaxTotalSize int64 = 2 << 30
)

// File describes one extracted entry.
type File struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Result holds the extracted files and the per-entry failures.
type Result struct {
	Files  []File
	Errors []error
}

// Paths returns the on-disk paths of the extracted files in archive order.
func (r *Result) Paths() []string {
	paths := make([]string, len(r.Files))
	for i, f := range r.Files {
		paths[i] = f.Path
	}
	return paths
}

// Extractor unpacks archives. It holds only configuration and is safe for concurrent use.
type Extractor struct {
	maxEntry int64
	maxTotal int64
	disabled []Format
	logger   *slog.Logger
}

// New creates an Extractor from cfg.
func New(cfg Config, logger *slog.Logger) *Extractor {
	x := &Extractor{
		maxEntry: cfg.MaxEntrySize,
		maxTotal: cfg.MaxTotalSize,
		disabled: slices.Clone(cfg.Disabled),
		logger:   logger.With("system", "archive"),
	}
	if x.maxEntry <= 0 {
		x.maxEntry = DefaultMaxEntrySize
	}
	if x.maxTotal <= 0 {
		x.maxTotal = DefaultMaxTotalSize
	}
	return x
}

// Available reports whether format can be extracted by this Extractor.
func (x *Extractor) Available(format Format) bool {
	if format == FormatUnknown {
		return false
	}
	return !slices.Contains(x.disabled, format)
}

// Extract unpacks archivePath into outputDir. The returned error is non-nil only
// when the archive could not be read at all; per-entry failures are collected in
// Result.Errors and the remaining entries are still extracted.
func (x *Extractor) Extract(ctx context.Context, archivePath, outputDir string) (*Result, error) {
	format := DetectFormat(archivePath)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, archivePath)
	}
	if !x.Available(format) {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, format)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	s := x.newSink(ctx, outputDir)

	var err error
	switch format {
	case FormatZip:
		err = s.extractZip(archivePath)
	case FormatTar:
		err = s.extractTar(archivePath, true)
	case FormatCompressed:
		err = s.extractTar(archivePath, false)
	case FormatSevenZip:
		err = s.extractSevenZip(archivePath)
	case FormatRar:
		err = s.extractRar(archivePath)
	}

	if err != nil {
		return nil, fmt.Errorf("extract %s %s: %w", format, archivePath, err)
	}

	x.logger.Debug(
		"archive extracted",
		"path", archivePath,
		"format", format.String(),
		"files", len(s.result.Files),
		"errors", len(s.result.Errors),
	)

	return &s.result, nil
}
