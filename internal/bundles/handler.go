package bundles

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/courier/pkg/handlers"
	"github.com/JaimeStill/courier/pkg/pagination"
	"github.com/JaimeStill/courier/pkg/routes"
)

// Handler provides HTTP endpoints for bundle operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// SearchRequest combines pagination and filter criteria for the bundle search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// DocumentSearchRequest combines pagination and filter criteria for the document search endpoint.
type DocumentSearchRequest struct {
	pagination.PageRequest
	DocumentFilters
}

// NewHandler creates a Handler with the given system, logger, pagination config, and upload size limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "bundles"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for bundle endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/bundles",
		Tags:    []string{"Bundles"},
		Schemas: Spec.Schemas,
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: Spec.List},
			{Method: "POST", Pattern: "", Handler: h.Create, OpenAPI: Spec.Create},
			{Method: "POST", Pattern: "/search", Handler: h.Search, OpenAPI: Spec.Search},
			{Method: "POST", Pattern: "/documents/search", Handler: h.SearchDocuments, OpenAPI: Spec.SearchDocuments},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: Spec.Find},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: Spec.Delete},
			{Method: "GET", Pattern: "/{id}/documents", Handler: h.Documents, OpenAPI: Spec.Documents},
			{Method: "GET", Pattern: "/{id}/lineage/{documentId}", Handler: h.Lineage, OpenAPI: Spec.Lineage},
			{Method: "GET", Pattern: "/{id}/documents/{documentId}/download", Handler: h.Download, OpenAPI: Spec.Download},
		},
	}
}

// List returns a paginated list of bundles with optional query parameter filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Search accepts a JSON body with pagination and filter criteria and returns matching bundles.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// SearchDocuments accepts a JSON body with pagination and filter criteria and
// returns matching documents across all bundles.
func (h *Handler) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var req DocumentSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidRequest)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.Documents(r.Context(), req.PageRequest, req.DocumentFilters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a bundle and all of its documents.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, detail)
}

// Documents returns a paginated list of one bundle's documents.
func (h *Handler) Documents(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	page, err := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	filters := DocumentFiltersFromQuery(r.URL.Query())
	filters.BundleID = &id

	result, err := h.sys.Documents(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Lineage returns the ancestry chain of a document, root first.
func (h *Handler) Lineage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	documentID, ok := h.pathID(w, r, "documentId")
	if !ok {
		return
	}

	chain, err := h.sys.Lineage(r.Context(), id, documentID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, chain)
}

// Download streams the published blob of a leaf document.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	documentID, ok := h.pathID(w, r, "documentId")
	if !ok {
		return
	}

	doc, blob, err := h.sys.Download(r.Context(), id, documentID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}
	defer blob.Body.Close()

	if err := handlers.RespondAttachment(w, blob.ContentType, blob.ContentLength, doc.FileName, blob.Body); err != nil {
		h.logger.Warn("download interrupted", "document_id", documentID, "error", err)
	}
}

// Create expands the uploaded files into a new bundle. The multipart form
// carries one or more "file" parts, an optional "name", and an optional
// "max_depth".
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, ErrFileTooLarge)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	cmd := CreateCommand{Name: r.FormValue("name")}

	if v := r.FormValue("max_depth"); v != "" {
		depth, err := strconv.Atoi(v)
		if err != nil || depth < 0 {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: max_depth %q", ErrInvalidRequest, v))
			return
		}
		cmd.MaxDepth = &depth
	}

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: no file parts", ErrInvalidRequest))
		return
	}

	files := make([]multipart.File, 0, len(headers))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidRequest, err))
			return
		}
		files = append(files, f)
		cmd.Files = append(cmd.Files, Upload{Name: fh.Filename, Reader: f})
	}

	detail, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, detail)
}

// Delete removes a bundle, its documents, and their published blobs.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %s", ErrInvalidRequest, name))
		return uuid.Nil, false
	}
	return id, true
}
