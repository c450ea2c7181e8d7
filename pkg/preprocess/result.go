package preprocess

import (
	"context"
	"errors"
	"os"

	"github.com/JaimeStill/courier/pkg/archive"
	"github.com/JaimeStill/courier/pkg/mail"
	"github.com/JaimeStill/courier/pkg/safefs"
)

// ErrorKind categorizes an ErrorEntry.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindExtractionFailure ErrorKind = "extraction_failure"
	KindPathTraversal     ErrorKind = "path_traversal_rejected"
	KindDepthExceeded     ErrorKind = "depth_exceeded"
	KindCancelled         ErrorKind = "cancelled"
	KindHashFailure       ErrorKind = "hash_failure"
)

// ErrorEntry is a failure recorded during a run. None of them stop the run.
type ErrorEntry struct {
	Path          string        `json:"path"`
	Error         string        `json:"error"`
	Kind          ErrorKind     `json:"kind"`
	Depth         int           `json:"depth"`
	ContainerType ContainerType `json:"container_type,omitempty"`
}

// Duplicate notes a file skipped because its content was already processed in the run.
type Duplicate struct {
	Path        string `json:"path"`
	DuplicateOf string `json:"duplicate_of"`
	FileHash    string `json:"file_hash"`
	Depth       int    `json:"depth"`
}

// Result is the complete outcome of one Process or ProcessBatch call.
// Documents lists leaf paths in discovery order; TotalExtracted always equals
// len(Documents).
type Result struct {
	Documents        []string            `json:"documents"`
	Lineage          map[string]*Lineage `json:"lineage"`
	TotalExtracted   int                 `json:"total_extracted"`
	OriginalCount    int                 `json:"original_count"`
	Errors           []ErrorEntry        `json:"errors"`
	Duplicates       []Duplicate         `json:"duplicates"`
	ScratchDir       string              `json:"scratch_dir"`
	ProcessingTimeMS float64             `json:"processing_time_ms"`
}

// Chain returns the ancestry of documentID within this result.
func (r *Result) Chain(documentID string) LineageChain {
	return Chain(documentID, r.Lineage)
}

// Leaves returns the lineage entries of Documents in order.
func (r *Result) Leaves() []*Lineage {
	byPath := make(map[string]*Lineage, len(r.Lineage))
	for _, l := range r.Lineage {
		byPath[l.ExtractedPath] = l
	}

	leaves := make([]*Lineage, 0, len(r.Documents))
	for _, doc := range r.Documents {
		if l, ok := byPath[doc]; ok {
			leaves = append(leaves, l)
		}
	}
	return leaves
}

// ErrorsOfKind returns the recorded errors of the given kind.
func (r *Result) ErrorsOfKind(kind ErrorKind) []ErrorEntry {
	var entries []ErrorEntry
	for _, e := range r.Errors {
		if e.Kind == kind {
			entries = append(entries, e)
		}
	}
	return entries
}

// Cleanup removes the run's scratch directory and every extracted file in it.
func (r *Result) Cleanup() error {
	if r.ScratchDir == "" {
		return nil
	}
	return os.RemoveAll(r.ScratchDir)
}

func classify(err error) ErrorKind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, safefs.ErrPathTraversal):
		return KindPathTraversal
	case errors.Is(err, archive.ErrUnsupported), errors.Is(err, mail.ErrUnsupported):
		return KindUnsupportedFormat
	}
	return KindExtractionFailure
}
