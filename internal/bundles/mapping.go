package bundles

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/courier/pkg/query"
	"github.com/JaimeStill/courier/pkg/repository"
)

var bundleProjection = query.
	NewProjectionMap("public", "bundles", "b").
	Project("id", "ID").
	Project("name", "Name").
	Project("max_depth", "MaxDepth").
	Project("original_count", "OriginalCount").
	Project("total_extracted", "TotalExtracted").
	Project("error_count", "ErrorCount").
	Project("duplicate_count", "DuplicateCount").
	Project("processing_time_ms", "ProcessingTimeMS").
	Project("errors", "Errors").
	Project("duplicates", "Duplicates").
	Project("created_at", "CreatedAt")

var documentProjection = query.
	NewProjectionMap("public", "bundle_documents", "d").
	Project("id", "ID").
	Project("bundle_id", "BundleID").
	Project("parent_id", "ParentID").
	Project("original_path", "OriginalPath").
	Project("file_name", "FileName").
	Project("container_type", "ContainerType").
	Project("extraction_depth", "ExtractionDepth").
	Project("file_hash", "FileHash").
	Project("size_bytes", "SizeBytes").
	Project("page_count", "PageCount").
	Project("metadata", "Metadata").
	Project("children", "Children").
	Project("leaf", "Leaf").
	Project("storage_key", "StorageKey").
	Project("content_type", "ContentType").
	Project("created_at", "CreatedAt").
	Join("public", "bundles", "b", "JOIN", "b.id = d.bundle_id").
	Project("created_at", "BundleCreatedAt")

var defaultBundleSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

var defaultDocumentSort = []query.SortField{
	{Field: "ExtractionDepth"},
	{Field: "OriginalPath"},
}

// Filters contains optional filtering criteria for bundle queries.
// Name uses case-insensitive contains matching; MaxDepth is exact.
type Filters struct {
	Name     *string `json:"name,omitempty"`
	MaxDepth *int    `json:"max_depth,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereContains("Name", f.Name).
		WhereEquals("MaxDepth", f.MaxDepth)
}

// FiltersFromQuery extracts bundle filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	if d := values.Get("max_depth"); d != "" {
		if v, err := strconv.Atoi(d); err == nil {
			f.MaxDepth = &v
		}
	}

	return f
}

// DocumentFilters contains optional filtering criteria for document queries.
// FileName uses case-insensitive contains matching. ContainerTypes matches any
// listed type. Root selects uploaded files (true) or extracted ones (false).
// The rest are exact.
type DocumentFilters struct {
	BundleID        *uuid.UUID `json:"bundle_id,omitempty"`
	ParentID        *uuid.UUID `json:"parent_id,omitempty"`
	FileName        *string    `json:"file_name,omitempty"`
	ContainerTypes  []string   `json:"container_type,omitempty"`
	FileHash        *string    `json:"file_hash,omitempty"`
	ExtractionDepth *int       `json:"extraction_depth,omitempty"`
	Leaf            *bool      `json:"leaf,omitempty"`
	Root            *bool      `json:"root,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f DocumentFilters) Apply(b *query.Builder) *query.Builder {
	types := make([]any, len(f.ContainerTypes))
	for i, t := range f.ContainerTypes {
		types[i] = t
	}

	return b.
		WhereEquals("BundleID", f.BundleID).
		WhereEquals("ParentID", f.ParentID).
		WhereContains("FileName", f.FileName).
		WhereIn("ContainerType", types).
		WhereEquals("FileHash", f.FileHash).
		WhereEquals("ExtractionDepth", f.ExtractionDepth).
		WhereEquals("Leaf", f.Leaf).
		WhereNull("ParentID", f.Root)
}

// DocumentFiltersFromQuery extracts document filter values from URL query parameters.
func DocumentFiltersFromQuery(values url.Values) DocumentFilters {
	var f DocumentFilters

	if p := values.Get("parent_id"); p != "" {
		if v, err := uuid.Parse(p); err == nil {
			f.ParentID = &v
		}
	}

	if fn := values.Get("file_name"); fn != "" {
		f.FileName = &fn
	}

	for _, v := range values["container_type"] {
		for ct := range strings.SplitSeq(v, ",") {
			if ct = strings.TrimSpace(ct); ct != "" {
				f.ContainerTypes = append(f.ContainerTypes, ct)
			}
		}
	}

	if fh := values.Get("file_hash"); fh != "" {
		f.FileHash = &fh
	}

	if d := values.Get("extraction_depth"); d != "" {
		if v, err := strconv.Atoi(d); err == nil {
			f.ExtractionDepth = &v
		}
	}

	f.Leaf = queryBool(values, "leaf")
	f.Root = queryBool(values, "root")

	return f
}

func queryBool(values url.Values, name string) *bool {
	v, err := strconv.ParseBool(values.Get(name))
	if err != nil {
		return nil
	}
	return &v
}

func scanBundle(s repository.Scanner) (Bundle, error) {
	var (
		b          Bundle
		errs       []byte
		duplicates []byte
	)
	err := s.Scan(
		&b.ID,
		&b.Name,
		&b.MaxDepth,
		&b.OriginalCount,
		&b.TotalExtracted,
		&b.ErrorCount,
		&b.DuplicateCount,
		&b.ProcessingTimeMS,
		&errs,
		&duplicates,
		&b.CreatedAt,
	)
	if err != nil {
		return b, err
	}

	if err := json.Unmarshal(errs, &b.Errors); err != nil {
		return b, fmt.Errorf("decode bundle errors: %w", err)
	}
	if err := json.Unmarshal(duplicates, &b.Duplicates); err != nil {
		return b, fmt.Errorf("decode bundle duplicates: %w", err)
	}
	return b, nil
}

func scanDocument(s repository.Scanner) (Document, error) {
	var (
		d        Document
		parent   uuid.NullUUID
		metadata []byte
		children []byte
	)
	err := s.Scan(
		&d.ID,
		&d.BundleID,
		&parent,
		&d.OriginalPath,
		&d.FileName,
		&d.ContainerType,
		&d.ExtractionDepth,
		&d.FileHash,
		&d.SizeBytes,
		&d.PageCount,
		&metadata,
		&children,
		&d.Leaf,
		&d.StorageKey,
		&d.ContentType,
		&d.CreatedAt,
		&d.BundleCreatedAt,
	)
	if err != nil {
		return d, err
	}

	if parent.Valid {
		d.ParentID = &parent.UUID
	}
	if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
		return d, fmt.Errorf("decode document metadata: %w", err)
	}
	if err := json.Unmarshal(children, &d.Children); err != nil {
		return d, fmt.Errorf("decode document children: %w", err)
	}
	return d, nil
}
