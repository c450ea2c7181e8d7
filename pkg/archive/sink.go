package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/JaimeStill/courier/pkg/safefs"
)

var skipNames = []string{".ds_store", "thumbs.db", "desktop.ini"}

// errStop ends the entry loop after the total size budget is spent.
var errStop = errors.New("stop extraction")

// sink writes entries for a single Extract call and accumulates its Result.
type sink struct {
	ctx       context.Context
	outputDir string
	maxEntry  int64
	remaining int64
	result    Result
}

func (x *Extractor) newSink(ctx context.Context, outputDir string) *sink {
	return &sink{
		ctx:       ctx,
		outputDir: outputDir,
		maxEntry:  x.maxEntry,
		remaining: x.maxTotal,
	}
}

// cancelled records the context error once and reports whether the loop should stop.
func (s *sink) cancelled() bool {
	if err := s.ctx.Err(); err != nil {
		s.result.Errors = append(s.result.Errors, err)
		return true
	}
	return false
}

func (s *sink) fail(name string, err error) {
	s.result.Errors = append(s.result.Errors, &EntryError{Entry: name, Err: err})
}

// write copies one regular entry to disk. It returns errStop when the archive
// budget is exhausted; every other failure is recorded and swallowed.
func (s *sink) write(name string, r io.Reader) error {
	if skip(name) {
		return nil
	}

	target, err := safefs.Join(s.outputDir, name)
	if err != nil {
		s.fail(name, err)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		s.fail(name, err)
		return nil
	}

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		f, err = safefs.CreateUnique(filepath.Dir(target), filepath.Base(target))
	}
	if err != nil {
		s.fail(name, err)
		return nil
	}

	limit := min(s.maxEntry, s.remaining)
	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()

	if err == nil && n > limit {
		if limit < s.maxEntry {
			err = ErrArchiveTooLarge
		} else {
			err = fmt.Errorf("%w: limit %d bytes", ErrEntryTooLarge, s.maxEntry)
		}
	}
	if err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(f.Name())
		s.fail(name, err)
		if errors.Is(err, ErrArchiveTooLarge) {
			return errStop
		}
		return nil
	}

	s.remaining -= n
	s.result.Files = append(s.result.Files, File{
		Name: name,
		Path: f.Name(),
		Size: n,
	})
	return nil
}

func skip(name string) bool {
	normalized := strings.ReplaceAll(name, `\`, "/")

	for part := range strings.SplitSeq(normalized, "/") {
		if part == "__MACOSX" {
			return true
		}
	}

	base := path.Base(normalized)
	if strings.HasPrefix(base, "~$") {
		return true
	}
	for _, n := range skipNames {
		if strings.EqualFold(base, n) {
			return true
		}
	}
	return false
}
