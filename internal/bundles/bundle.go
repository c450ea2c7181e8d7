// Package bundles implements the bundle domain for Courier.
// A bundle is one upload of container files: the files are expanded by the
// preprocessor, every leaf is published to blob storage, and the full lineage
// tree is persisted so any leaf can be traced back to the upload it came from.
package bundles

import (
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/courier/pkg/preprocess"
)

// Bundle summarizes one preprocessing run over uploaded files.
type Bundle struct {
	ID               uuid.UUID               `json:"id"`
	Name             string                  `json:"name"`
	MaxDepth         int                     `json:"max_depth"`
	OriginalCount    int                     `json:"original_count"`
	TotalExtracted   int                     `json:"total_extracted"`
	ErrorCount       int                     `json:"error_count"`
	DuplicateCount   int                     `json:"duplicate_count"`
	ProcessingTimeMS float64                 `json:"processing_time_ms"`
	Errors           []preprocess.ErrorEntry `json:"errors"`
	Duplicates       []preprocess.Duplicate  `json:"duplicates"`
	CreatedAt        time.Time               `json:"created_at"`
}

// Document is a persisted lineage entry. Leaves carry a StorageKey for the
// published blob; containers carry their Children ids.
type Document struct {
	ID              uuid.UUID      `json:"id"`
	BundleID        uuid.UUID      `json:"bundle_id"`
	ParentID        *uuid.UUID     `json:"parent_id"`
	OriginalPath    string         `json:"original_path"`
	FileName        string         `json:"file_name"`
	ContainerType   string         `json:"container_type"`
	ExtractionDepth int            `json:"extraction_depth"`
	FileHash        *string        `json:"file_hash"`
	SizeBytes       int64          `json:"size_bytes"`
	PageCount       *int           `json:"page_count"`
	Metadata        map[string]any `json:"metadata"`
	Children        []string       `json:"children"`
	Leaf            bool           `json:"leaf"`
	StorageKey      *string        `json:"storage_key"`
	ContentType     *string        `json:"content_type"`
	CreatedAt       time.Time      `json:"created_at"`
	BundleCreatedAt time.Time      `json:"bundle_created_at"`
}

// Lineage converts d back into the preprocess representation.
func (d Document) Lineage() *preprocess.Lineage {
	l := &preprocess.Lineage{
		DocumentID:      d.ID.String(),
		OriginalPath:    d.OriginalPath,
		ContainerType:   preprocess.ContainerType(d.ContainerType),
		ExtractionDepth: d.ExtractionDepth,
		FileHash:        d.FileHash,
		Metadata:        d.Metadata,
		Children:        d.Children,
	}
	if d.ParentID != nil {
		parent := d.ParentID.String()
		l.ParentID = &parent
	}
	return l
}

// Detail is a bundle with every document discovered in it.
type Detail struct {
	Bundle
	Documents []Document `json:"documents"`
}

// Upload is one submitted file.
type Upload struct {
	Name   string
	Reader io.Reader
}

// CreateCommand carries the files of a new bundle. An empty Name uses the
// first file name; a nil MaxDepth uses the configured default.
type CreateCommand struct {
	Name     string
	Files    []Upload
	MaxDepth *int
}
