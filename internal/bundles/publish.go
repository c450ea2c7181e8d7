package bundles

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/JaimeStill/courier/pkg/preprocess"
	"github.com/JaimeStill/courier/pkg/safefs"
)

func storageKey(bundleID, documentID uuid.UUID) string {
	return fmt.Sprintf("bundles/%s/%s", bundleID, documentID)
}

// stage writes each upload into dir under a sanitized, collision-free name and
// returns the staged paths in upload order with their combined size.
func stage(dir string, files []Upload) ([]string, int64, error) {
	paths := make([]string, 0, len(files))
	var total int64

	for _, u := range files {
		f, err := safefs.CreateUnique(dir, u.Name)
		if err != nil {
			return nil, 0, fmt.Errorf("stage %s: %w", u.Name, err)
		}

		n, err := io.Copy(f, u.Reader)
		closeErr := f.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("stage %s: %w", u.Name, err)
		}
		if closeErr != nil {
			return nil, 0, fmt.Errorf("stage %s: %w", u.Name, closeErr)
		}

		paths = append(paths, f.Name())
		total += n
	}

	return paths, total, nil
}

// newDocument converts a lineage entry into its persisted form. Original paths
// are made relative to the staging directory so they start at the uploaded
// file name.
func newDocument(bundleID uuid.UUID, stageDir string, l *preprocess.Lineage) (Document, error) {
	id, err := uuid.Parse(l.DocumentID)
	if err != nil {
		return Document{}, fmt.Errorf("document id %q: %w", l.DocumentID, err)
	}

	original := relativePath(stageDir, l.OriginalPath)

	doc := Document{
		ID:              id,
		BundleID:        bundleID,
		OriginalPath:    original,
		FileName:        path.Base(original),
		ContainerType:   string(l.ContainerType),
		ExtractionDepth: l.ExtractionDepth,
		FileHash:        l.FileHash,
		Metadata:        publicMetadata(l.Metadata),
		Children:        l.Children,
	}

	if l.ParentID != nil {
		parent, err := uuid.Parse(*l.ParentID)
		if err != nil {
			return Document{}, fmt.Errorf("parent id %q: %w", *l.ParentID, err)
		}
		doc.ParentID = &parent
	}

	if size, ok := l.Metadata[preprocess.MetaFileSize].(int64); ok {
		doc.SizeBytes = size
	}

	return doc, nil
}

func relativePath(base, p string) string {
	prefix := base + string(filepath.Separator)
	return filepath.ToSlash(strings.TrimPrefix(p, prefix))
}

// publicMetadata copies metadata, reducing scratch paths of inline images to
// their file names since the scratch directory does not outlive the request.
func publicMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if paths, ok := v.([]string); ok && k == preprocess.MetaInlineImages {
			names := make([]string, len(paths))
			for i, p := range paths {
				names[i] = filepath.Base(p)
			}
			v = names
		}
		out[k] = v
	}
	return out
}

// upload streams the file at p to key and returns its content type, plus the
// page count when the file is a readable PDF.
func (r *repo) upload(ctx context.Context, key, p string) (string, *int, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	contentType, err := detectContentType(f, p)
	if err != nil {
		return "", nil, err
	}

	var pageCount *int
	if contentType == "application/pdf" {
		if count, err := api.PageCount(f, nil); err == nil {
			pageCount = &count
		} else {
			r.logger.Warn("failed to extract PDF page count", "key", key, "error", err)
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", nil, err
	}

	if err := r.storage.Upload(ctx, key, f, contentType); err != nil {
		return "", nil, err
	}

	return contentType, pageCount, nil
}

// detectContentType prefers the registered type for the extension and falls
// back to content sniffing. f is rewound before returning.
func detectContentType(f *os.File, p string) (string, error) {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(p))); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return mediaType, nil
		}
	}

	detected, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	mediaType, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		return "application/octet-stream", nil
	}
	return mediaType, nil
}
