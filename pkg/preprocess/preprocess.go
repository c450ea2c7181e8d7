// Package preprocess recursively unpacks archives, email messages, and PDF
// portfolios into a flat, deduplicated list of leaf documents. Every discovered
// file receives a Lineage entry linking it to the container it came from, so
// the ancestry of any leaf can be walked back to the submitted path.
//
// A Processor holds only configuration and extractors. Each Process or
// ProcessBatch call creates its own scratch directory, lineage map, and
// seen-hash set, so a single Processor may serve concurrent calls.
package preprocess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/JaimeStill/courier/pkg/archive"
	"github.com/JaimeStill/courier/pkg/mail"
	"github.com/JaimeStill/courier/pkg/portfolio"
)

var (
	ErrInvalidDepth = errors.New("max depth must not be negative")
	ErrNoPaths      = errors.New("no paths to process")
)

// Config controls a Processor.
type Config struct {
	// Workers bounds concurrent sibling subtrees. Values below 2 process
	// strictly depth-first on the calling goroutine.
	Workers int
	// ScratchDir is the parent of each run's scratch directory.
	// Empty uses the system temp directory.
	ScratchDir string
	// Timeout bounds a run. Zero means no limit beyond the caller's context.
	Timeout time.Duration
	// IncludeInlineImages recurses into inline email images as children.
	// Otherwise they are only listed in the email's metadata.
	IncludeInlineImages bool
	Archive             archive.Config
	// MaxEmbeddedSize caps each PDF embedded file. Zero uses Archive.MaxEntrySize.
	MaxEmbeddedSize int64
	// NewID generates document ids. It must be safe for concurrent use.
	NewID func() string
}

// Processor expands containers into leaf documents.
type Processor struct {
	cfg       Config
	archive   *archive.Extractor
	mail      *mail.Extractor
	portfolio *portfolio.Extractor
	newID     func() string
	logger    *slog.Logger
}

// New creates a Processor from cfg.
func New(cfg Config, logger *slog.Logger) *Processor {
	embedded := cfg.MaxEmbeddedSize
	if embedded <= 0 {
		embedded = cfg.Archive.MaxEntrySize
	}
	if embedded <= 0 {
		embedded = archive.DefaultMaxEntrySize
	}

	newID := cfg.NewID
	if newID == nil {
		newID = func() string {
			return uuid.Must(uuid.NewV7()).String()
		}
	}

	return &Processor{
		cfg:       cfg,
		archive:   archive.New(cfg.Archive, logger),
		mail:      mail.New(logger),
		portfolio: portfolio.New(embedded, logger),
		newID:     newID,
		logger:    logger.With("system", "preprocess"),
	}
}

// Process expands path up to maxDepth levels of nesting.
func (p *Processor) Process(ctx context.Context, path string, maxDepth int) (*Result, error) {
	return p.ProcessBatch(ctx, []string{path}, maxDepth)
}

// ProcessBatch expands every path in a single run. Paths share one id space
// and one seen-hash set, so identical content submitted twice is processed once.
// Documents and Errors follow input order.
//
// The returned error is non-nil only for invalid arguments or when the scratch
// directory cannot be created. Every other failure is recorded in Result.Errors
// and processing continues.
func (p *Processor) ProcessBatch(ctx context.Context, paths []string, maxDepth int) (*Result, error) {
	if maxDepth < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDepth, maxDepth)
	}
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()

	r, err := p.newRun(maxDepth)
	if err != nil {
		return nil, err
	}

	p.logger.Info(
		"preprocess started",
		"paths", len(paths),
		"max_depth", maxDepth,
		"workers", max(p.cfg.Workers, 1),
		"scratch_dir", r.scratch,
	)

	roots := make([]node, len(paths))
	for i, path := range paths {
		roots[i] = node{path: path, original: path}
	}

	b := r.visitAll(ctx, roots)

	result := &Result{
		Documents:        nonNil(b.documents),
		Lineage:          r.lineage,
		TotalExtracted:   len(b.documents),
		OriginalCount:    len(paths),
		Errors:           nonNil(b.errors),
		Duplicates:       nonNil(b.duplicates),
		ScratchDir:       r.scratch,
		ProcessingTimeMS: float64(time.Since(start).Microseconds()) / 1000,
	}

	p.logger.Info(
		"preprocess finished",
		"documents", result.TotalExtracted,
		"lineage", len(result.Lineage),
		"errors", len(result.Errors),
		"duplicates", len(result.Duplicates),
		"duration_ms", result.ProcessingTimeMS,
	)

	return result, nil
}

// Detect classifies path. Archive and email extensions win; only an otherwise
// unmatched .pdf is probed for embedded files.
func (p *Processor) Detect(path string) ContainerType {
	if kind, ok := DetectExtension(path); ok {
		return kind
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") && p.isPortfolio(path) {
		return ContainerPortfolio
	}
	return ContainerDocument
}

// DetectExtension classifies path by extension alone. Compound tar extensions
// are matched before single compression suffixes.
func DetectExtension(path string) (ContainerType, bool) {
	if archive.DetectFormat(path) != archive.FormatUnknown {
		return ContainerArchive, true
	}
	if mail.Supported(path) {
		return ContainerEmail, true
	}
	return "", false
}

func (p *Processor) isPortfolio(path string) (ok bool) {
	defer func() {
		if v := recover(); v != nil {
			p.logger.Warn("portfolio probe panicked", "path", path, "panic", v)
			ok = false
		}
	}()

	n, err := p.portfolio.Count(path)
	if err != nil {
		p.logger.Debug("portfolio probe failed", "path", path, "error", err)
		return false
	}
	return n > 0
}

func (p *Processor) newRun(maxDepth int) (*run, error) {
	if p.cfg.ScratchDir != "" {
		if err := os.MkdirAll(p.cfg.ScratchDir, 0o755); err != nil {
			return nil, fmt.Errorf("create scratch root: %w", err)
		}
	}

	scratch, err := os.MkdirTemp(p.cfg.ScratchDir, "courier-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	r := &run{
		p:        p,
		maxDepth: maxDepth,
		scratch:  scratch,
		lineage:  map[string]*Lineage{},
		seen:     map[string]string{},
	}
	if p.cfg.Workers > 1 {
		r.sem = semaphore.NewWeighted(int64(p.cfg.Workers - 1))
	}
	return r, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
