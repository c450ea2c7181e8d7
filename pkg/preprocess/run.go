package preprocess

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/JaimeStill/courier/pkg/digest"
)

// run is the state of one Process or ProcessBatch call. The lineage map and
// seen-hash set are the only values shared between subtrees; both are guarded by mu.
type run struct {
	p        *Processor
	maxDepth int
	scratch  string
	sem      *semaphore.Weighted

	mu      sync.Mutex
	lineage map[string]*Lineage
	seen    map[string]string
}

// node is a path waiting to be visited.
type node struct {
	path     string
	original string
	entry    string
	parentID *string
	depth    int
}

// branch is what one subtree contributes to the result, in discovery order.
type branch struct {
	id         string
	documents  []string
	errors     []ErrorEntry
	duplicates []Duplicate
	children   []string
}

func (b *branch) merge(c *branch) {
	b.documents = append(b.documents, c.documents...)
	b.errors = append(b.errors, c.errors...)
	b.duplicates = append(b.duplicates, c.duplicates...)
}

func (b *branch) fail(path string, depth int, kind ErrorKind, container ContainerType, err error) {
	b.errors = append(b.errors, ErrorEntry{
		Path:          path,
		Error:         err.Error(),
		Kind:          kind,
		Depth:         depth,
		ContainerType: container,
	})
}

// visitAll visits nodes and merges their branches in input order, collecting
// the ids of the nodes that produced a lineage entry. With a worker budget, a
// node runs on its own goroutine when a slot is free and on the caller's
// goroutine otherwise, so nested containers never wait on slots held by
// their ancestors.
func (r *run) visitAll(ctx context.Context, nodes []node) *branch {
	branches := make([]*branch, len(nodes))

	if r.sem == nil {
		for i, n := range nodes {
			branches[i] = r.visit(ctx, n)
		}
	} else {
		var g errgroup.Group
		for i, n := range nodes {
			if r.sem.TryAcquire(1) {
				g.Go(func() error {
					defer r.sem.Release(1)
					branches[i] = r.visit(ctx, n)
					return nil
				})
				continue
			}
			branches[i] = r.visit(ctx, n)
		}
		g.Wait()
	}

	merged := &branch{}
	for _, b := range branches {
		merged.merge(b)
		if b.id != "" {
			merged.children = append(merged.children, b.id)
		}
	}
	return merged
}

func (r *run) visit(ctx context.Context, n node) *branch {
	b := &branch{}
	logger := r.p.logger

	if err := ctx.Err(); err != nil {
		b.fail(n.path, n.depth, KindCancelled, "", err)
		return b
	}

	info, err := os.Stat(n.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Error("document not found", "path", n.path, "depth", n.depth)
			b.fail(n.path, n.depth, KindNotFound, "", errors.New("file not found"))
		} else {
			b.fail(n.path, n.depth, KindExtractionFailure, "", err)
		}
		return b
	}
	if info.IsDir() {
		b.fail(n.path, n.depth, KindUnsupportedFormat, "", errors.New("path is a directory"))
		return b
	}

	var fileHash *string
	hash, err := digest.File(n.path)
	if err != nil {
		logger.Warn("hash failed", "path", n.path, "error", err)
		b.fail(n.path, n.depth, KindHashFailure, "", err)
	} else {
		if first, dup := r.claim(hash, n.path); dup {
			logger.Warn("duplicate skipped", "path", n.path, "duplicate_of", first)
			b.duplicates = append(b.duplicates, Duplicate{
				Path:        n.path,
				DuplicateOf: first,
				FileHash:    hash,
				Depth:       n.depth,
			})
			return b
		}
		fileHash = &hash
	}

	kind := r.p.Detect(n.path)
	entry := r.record(n, kind, fileHash, info.Size())
	b.id = entry.DocumentID

	if n.depth > r.maxDepth || (kind.IsContainer() && n.depth >= r.maxDepth) {
		logger.Warn("max depth reached", "path", n.path, "depth", n.depth, "detected_type", kind)
		entry.ContainerType = ContainerDocument
		entry.Metadata[MetaNote] = NoteMaxDepthReached
		entry.Metadata[MetaDetectedType] = string(kind)
		b.fail(n.path, n.depth, KindDepthExceeded, kind,
			fmt.Errorf("not expanded: depth %d reached max depth %d", n.depth, r.maxDepth))
		b.documents = append(b.documents, n.path)
		return b
	}

	if !kind.IsContainer() {
		b.documents = append(b.documents, n.path)
		return b
	}

	children, err := r.expand(ctx, n, entry, b)
	if err != nil {
		logger.Error("extraction failed", "path", n.path, "container_type", kind, "error", err)
		b.fail(n.path, n.depth, classify(err), kind, err)
		b.documents = append(b.documents, n.path)
		return b
	}

	sub := r.visitAll(ctx, children)
	b.merge(sub)
	entry.Children = nonNil(sub.children)

	return b
}

// claim marks hash as seen. When another path already holds it, claim
// returns that path and true.
func (r *run) claim(hash, path string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if first, ok := r.seen[hash]; ok {
		return first, true
	}
	r.seen[hash] = path
	return "", false
}

func (r *run) record(n node, kind ContainerType, fileHash *string, size int64) *Lineage {
	entry := &Lineage{
		DocumentID:      r.p.newID(),
		OriginalPath:    n.original,
		ExtractedPath:   n.path,
		ParentID:        n.parentID,
		ContainerType:   kind,
		ExtractionDepth: n.depth,
		FileHash:        fileHash,
		Metadata: map[string]any{
			MetaFileSize:  size,
			MetaFileName:  filepath.Base(n.path),
			MetaExtension: strings.ToLower(filepath.Ext(n.path)),
		},
		Children: []string{},
	}
	if n.entry != "" {
		entry.Metadata[MetaEntryName] = n.entry
	}

	r.mu.Lock()
	r.lineage[entry.DocumentID] = entry
	r.mu.Unlock()

	return entry
}
