// Package portfolio extracts files embedded in PDF documents.
package portfolio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/JaimeStill/courier/pkg/safefs"
)

const scanChunkSize = 64 * 1024

var (
	markerEmbedded = []byte("/EmbeddedFile")
	markerObjStm   = []byte("/ObjStm")
)

var disableConfigDir sync.Once

// File is one embedded file written to disk.
type File struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	Description string `json:"description,omitempty"`
}

// Result holds the written files and any per-file failures.
type Result struct {
	Files  []File
	Errors []error
}

// Paths returns the on-disk paths of the extracted files.
func (r *Result) Paths() []string {
	paths := make([]string, len(r.Files))
	for i, f := range r.Files {
		paths[i] = f.Path
	}
	return paths
}

// Extractor reads PDF attachments with pdfcpu.
type Extractor struct {
	maxSize int64
	logger  *slog.Logger
}

// New creates an Extractor. Embedded files larger than maxSize bytes are
// rejected; a non-positive maxSize disables the limit.
func New(maxSize int64, logger *slog.Logger) *Extractor {
	disableConfigDir.Do(api.DisableConfigDir)
	return &Extractor{
		maxSize: maxSize,
		logger:  logger.With("system", "portfolio"),
	}
}

// Count returns the number of embedded files in the PDF at path.
// Files that mention neither embedded files nor object streams return 0
// without being parsed.
func (x *Extractor) Count(path string) (int, error) {
	attachments, err := readAttachments(path)
	if err != nil {
		return 0, err
	}
	return len(attachments), nil
}

// Extract writes every embedded file of pdfPath into outputDir under a
// sanitized, collision-free name. A PDF without attachments yields an empty Result.
func (x *Extractor) Extract(ctx context.Context, pdfPath, outputDir string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attachments, err := readAttachments(pdfPath)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	if len(attachments) == 0 {
		return res, nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	for i, a := range attachments {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, err)
			break
		}

		name := a.FileName
		if name == "" {
			name = fmt.Sprintf("embedded_%d", i)
		}

		file, err := x.write(outputDir, name, a.Reader)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("embedded file %s: %w", name, err))
			continue
		}
		file.Description = a.Desc
		res.Files = append(res.Files, file)
	}

	x.logger.Debug("portfolio extracted", "path", pdfPath, "files", len(res.Files), "errors", len(res.Errors))
	return res, nil
}

func readAttachments(path string) ([]model.Attachment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	candidate, err := mayEmbed(f)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	if !candidate {
		return nil, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	attachments, err := api.ExtractAttachmentsRaw(f, "", nil, configuration())
	if err != nil {
		return nil, fmt.Errorf("read attachments %s: %w", path, err)
	}
	return attachments, nil
}

func (x *Extractor) write(dir, name string, r io.Reader) (File, error) {
	if r == nil {
		return File{}, fmt.Errorf("no content")
	}

	f, err := safefs.CreateUnique(dir, name)
	if err != nil {
		return File{}, err
	}

	src := r
	if x.maxSize > 0 {
		src = io.LimitReader(r, x.maxSize+1)
	}

	n, err := io.Copy(f, src)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && x.maxSize > 0 && n > x.maxSize {
		err = fmt.Errorf("exceeds maximum size of %d bytes", x.maxSize)
	}
	if err != nil {
		os.Remove(f.Name())
		return File{}, err
	}

	return File{
		Name: filepath.Base(f.Name()),
		Path: f.Name(),
		Size: n,
	}, nil
}

func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// mayEmbed scans r in fixed chunks for markers that indicate embedded files
// or compressed object streams that could hide them.
func mayEmbed(r io.Reader) (bool, error) {
	overlap := max(len(markerEmbedded), len(markerObjStm)) - 1
	buf := make([]byte, scanChunkSize+overlap)
	carry := 0

	for {
		n, err := io.ReadFull(r, buf[carry:])
		window := buf[:carry+n]

		if bytes.Contains(window, markerEmbedded) || bytes.Contains(window, markerObjStm) {
			return true, nil
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}

		carry = min(overlap, len(window))
		copy(buf, window[len(window)-carry:])
	}
}
