package bundles

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/courier/pkg/pagination"
	"github.com/JaimeStill/courier/pkg/preprocess"
	"github.com/JaimeStill/courier/pkg/storage"
)

// System defines the public contract for bundle domain operations.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Bundle], error)

	Documents(
		ctx context.Context,
		page pagination.PageRequest,
		filters DocumentFilters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Detail, error)
	Lineage(ctx context.Context, bundleID, documentID uuid.UUID) (*preprocess.LineageChain, error)

	// Download opens the published blob of a leaf document. The caller must
	// close the returned Body.
	Download(ctx context.Context, bundleID, documentID uuid.UUID) (*Document, *storage.BlobResult, error)

	Create(ctx context.Context, cmd CreateCommand) (*Detail, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
