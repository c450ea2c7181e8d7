package bundles

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/courier/pkg/formatting"
	"github.com/JaimeStill/courier/pkg/pagination"
	"github.com/JaimeStill/courier/pkg/preprocess"
	"github.com/JaimeStill/courier/pkg/query"
	"github.com/JaimeStill/courier/pkg/repository"
	"github.com/JaimeStill/courier/pkg/storage"
)

type repo struct {
	db           *sql.DB
	storage      storage.System
	processor    *preprocess.Processor
	logger       *slog.Logger
	pagination   pagination.Config
	defaultDepth int
	stagingDir   string
}

// New creates a bundle repository implementing the System interface.
// Uploads are staged under stagingDir before expansion; empty uses the
// system temp directory.
func New(
	db *sql.DB,
	store storage.System,
	processor *preprocess.Processor,
	logger *slog.Logger,
	pagination pagination.Config,
	defaultDepth int,
	stagingDir string,
) System {
	return &repo{
		db:           db,
		storage:      store,
		processor:    processor,
		logger:       logger.With("system", "bundles"),
		pagination:   pagination,
		defaultDepth: defaultDepth,
		stagingDir:   stagingDir,
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, r.pagination, maxUploadSize)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Bundle], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(bundleProjection, defaultBundleSort).
		WhereSearch(page.Search, "Name")

	result, err := repository.QueryPage(ctx, r.db, filters.Apply(qb), page, scanBundle)
	if err != nil {
		return nil, fmt.Errorf("query bundles: %w", err)
	}
	return result, nil
}

func (r *repo) Documents(
	ctx context.Context,
	page pagination.PageRequest,
	filters DocumentFilters,
) (*pagination.PageResult[Document], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(documentProjection, defaultDocumentSort...).
		WhereSearch(page.Search, "FileName", "OriginalPath")

	result, err := repository.QueryPage(ctx, r.db, filters.Apply(qb), page, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Detail, error) {
	b, err := r.findBundle(ctx, id)
	if err != nil {
		return nil, err
	}

	docs, err := r.bundleDocuments(ctx, id)
	if err != nil {
		return nil, err
	}

	return &Detail{Bundle: *b, Documents: docs}, nil
}

func (r *repo) Lineage(ctx context.Context, bundleID, documentID uuid.UUID) (*preprocess.LineageChain, error) {
	if _, err := r.findBundle(ctx, bundleID); err != nil {
		return nil, err
	}

	docs, err := r.bundleDocuments(ctx, bundleID)
	if err != nil {
		return nil, err
	}

	lineage := make(map[string]*preprocess.Lineage, len(docs))
	for _, d := range docs {
		lineage[d.ID.String()] = d.Lineage()
	}

	if _, ok := lineage[documentID.String()]; !ok {
		return nil, ErrDocumentMissing
	}

	chain := preprocess.Chain(documentID.String(), lineage)
	return &chain, nil
}

func (r *repo) Download(ctx context.Context, bundleID, documentID uuid.UUID) (*Document, *storage.BlobResult, error) {
	q, args := query.
		NewBuilder(documentProjection).
		WhereEquals("BundleID", bundleID).
		WhereEquals("ID", documentID).
		BuildSingleOrNull()

	doc, err := repository.QueryOne(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, nil, repository.MapError(err, ErrDocumentMissing, ErrDuplicate)
	}

	if !doc.Leaf || doc.StorageKey == nil {
		return nil, nil, ErrNotLeaf
	}

	blob, err := r.storage.Download(ctx, *doc.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: blob %s missing", ErrDocumentMissing, *doc.StorageKey)
		}
		return nil, nil, err
	}

	return &doc, blob, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Detail, error) {
	if len(cmd.Files) == 0 {
		return nil, fmt.Errorf("%w: no files", ErrInvalidRequest)
	}

	depth := r.defaultDepth
	if cmd.MaxDepth != nil {
		depth = *cmd.MaxDepth
	}

	stageDir, err := os.MkdirTemp(r.stagingDir, "courier-upload-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stageDir)

	paths, size, err := stage(stageDir, cmd.Files)
	if err != nil {
		return nil, err
	}

	result, err := r.processor.ProcessBatch(ctx, paths, depth)
	if err != nil {
		if errors.Is(err, preprocess.ErrInvalidDepth) || errors.Is(err, preprocess.ErrNoPaths) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("preprocess bundle: %w", err)
	}
	defer func() {
		if err := result.Cleanup(); err != nil {
			r.logger.Warn("scratch cleanup failed", "dir", result.ScratchDir, "error", err)
		}
	}()

	id := uuid.Must(uuid.NewV7())

	docs, keys, err := r.publish(ctx, id, stageDir, result)
	if err != nil {
		r.deleteBlobs(ctx, keys)
		return nil, err
	}

	name := cmd.Name
	if name == "" {
		name = cmd.Files[0].Name
	}

	if err := r.insert(ctx, id, name, depth, result, docs); err != nil {
		r.deleteBlobs(ctx, keys)
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info(
		"bundle created",
		"id", id,
		"name", name,
		"uploaded", formatting.FormatBytes(size, 1),
		"documents", len(docs),
		"published", len(keys),
		"errors", len(result.Errors),
	)

	return r.Find(ctx, id)
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	detail, err := r.Find(ctx, id)
	if err != nil {
		return err
	}

	err = repository.InTx(ctx, r.db, func(tx *sql.Tx) error {
		return repository.ExecExpectOne(ctx, tx, "DELETE FROM bundles WHERE id = $1", id)
	})

	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	var keys []string
	for _, d := range detail.Documents {
		if d.StorageKey != nil {
			keys = append(keys, *d.StorageKey)
		}
	}
	r.deleteBlobs(ctx, keys)

	r.logger.Info("bundle deleted", "id", id, "blobs", len(keys))
	return nil
}

func (r *repo) findBundle(ctx context.Context, id uuid.UUID) (*Bundle, error) {
	q, args := query.NewBuilder(bundleProjection).BuildSingle("ID", id)

	b, err := repository.QueryOne(ctx, r.db, q, args, scanBundle)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &b, nil
}

func (r *repo) bundleDocuments(ctx context.Context, id uuid.UUID) ([]Document, error) {
	q, args := query.
		NewBuilder(documentProjection, defaultDocumentSort...).
		WhereEquals("BundleID", id).
		Build()

	docs, err := repository.QueryMany(ctx, r.db, q, args, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("query bundle documents: %w", err)
	}
	return docs, nil
}

// publish converts every lineage entry into a Document and uploads each leaf.
// On error the keys already uploaded are returned for compensation.
func (r *repo) publish(
	ctx context.Context,
	bundleID uuid.UUID,
	stageDir string,
	result *preprocess.Result,
) ([]Document, []string, error) {
	entries := slices.Collect(maps.Values(result.Lineage))
	slices.SortFunc(entries, func(a, b *preprocess.Lineage) int {
		return cmp.Or(
			cmp.Compare(a.ExtractionDepth, b.ExtractionDepth),
			strings.Compare(a.OriginalPath, b.OriginalPath),
		)
	})

	leaves := make(map[string]bool, len(result.Documents))
	for _, l := range result.Leaves() {
		leaves[l.DocumentID] = true
	}

	docs := make([]Document, 0, len(entries))
	var keys []string

	for _, l := range entries {
		doc, err := newDocument(bundleID, stageDir, l)
		if err != nil {
			return nil, keys, err
		}

		if leaves[l.DocumentID] {
			key := storageKey(bundleID, doc.ID)
			contentType, pageCount, err := r.upload(ctx, key, l.ExtractedPath)
			if err != nil {
				return nil, keys, fmt.Errorf("publish %s: %w", doc.OriginalPath, err)
			}
			keys = append(keys, key)

			doc.Leaf = true
			doc.StorageKey = &key
			doc.ContentType = &contentType
			doc.PageCount = pageCount
		}

		docs = append(docs, doc)
	}

	return docs, keys, nil
}

func (r *repo) insert(
	ctx context.Context,
	id uuid.UUID,
	name string,
	depth int,
	result *preprocess.Result,
	docs []Document,
) error {
	errs, err := json.Marshal(result.Errors)
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}
	duplicates, err := json.Marshal(result.Duplicates)
	if err != nil {
		return fmt.Errorf("encode duplicates: %w", err)
	}

	return repository.InTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO bundles(id, name, max_depth, original_count, total_extracted, error_count, duplicate_count, processing_time_ms, errors, duplicates)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, name, depth,
			result.OriginalCount, result.TotalExtracted,
			len(result.Errors), len(result.Duplicates),
			result.ProcessingTimeMS,
			errs, duplicates,
		); err != nil {
			return err
		}

		return repository.ExecEach(ctx, tx, `
			INSERT INTO bundle_documents(id, bundle_id, parent_id, original_path, file_name, container_type, extraction_depth, file_hash, size_bytes, page_count, metadata, children, leaf, storage_key, content_type)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			docs,
			func(d Document) ([]any, error) {
				metadata, err := json.Marshal(d.Metadata)
				if err != nil {
					return nil, fmt.Errorf("encode metadata: %w", err)
				}
				children, err := json.Marshal(d.Children)
				if err != nil {
					return nil, fmt.Errorf("encode children: %w", err)
				}
				return []any{
					d.ID, id, d.ParentID,
					d.OriginalPath, d.FileName, d.ContainerType,
					d.ExtractionDepth, d.FileHash, d.SizeBytes, d.PageCount,
					metadata, children,
					d.Leaf, d.StorageKey, d.ContentType,
				}, nil
			},
		)
	})
}

func (r *repo) deleteBlobs(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := r.storage.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			r.logger.Warn("blob delete failed", "key", key, "error", err)
		}
	}
}
