package api

import (
	"log/slog"
	"net/http"
	"path"

	"github.com/JaimeStill/courier/pkg/handlers"
	"github.com/JaimeStill/courier/pkg/openapi"
	"github.com/JaimeStill/courier/pkg/routes"
	"github.com/JaimeStill/courier/pkg/storage"
)

var keyParam = openapi.StringPathParam("key", "Blob key, e.g. bundles/{id}/{documentId}")

type storageHandler struct {
	store       storage.System
	logger      *slog.Logger
	maxListSize int32
}

func newStorageHandler(
	store storage.System,
	logger *slog.Logger,
	maxListSize int32,
) *storageHandler {
	return &storageHandler{
		store:       store,
		logger:      logger.With("handler", "storage"),
		maxListSize: maxListSize,
	}
}

func (h *storageHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/storage",
		Tags:   []string{"Storage"},
		Schemas: map[string]*openapi.Schema{
			"BlobMeta": {
				Type: "object",
				Properties: map[string]*openapi.Schema{
					"key":            {Type: "string"},
					"content_type":   {Type: "string"},
					"content_length": {Type: "integer"},
					"last_modified":  {Type: "string", Format: "date-time"},
				},
			},
			"BlobList": {
				Type: "object",
				Properties: map[string]*openapi.Schema{
					"blobs":       {Type: "array", Items: openapi.SchemaRef("BlobMeta")},
					"next_marker": {Type: "string"},
				},
			},
		},
		Routes: []routes.Route{
			{
				Method: "GET", Pattern: "", Handler: h.list,
				OpenAPI: &openapi.Operation{
					Summary: "List published blobs",
					Parameters: []*openapi.Parameter{
						openapi.QueryParam("prefix", "string", "Key prefix, e.g. bundles/{id}/", false),
						openapi.QueryParam("marker", "string", "Continuation marker from a previous page", false),
						openapi.QueryParam("max_results", "integer", "Maximum blobs per page", false),
					},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Blob page", "BlobList"),
						400: openapi.ResponseRef("BadRequest"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/download/{key...}", Handler: h.download,
				OpenAPI: &openapi.Operation{
					Summary:    "Download blob",
					Parameters: []*openapi.Parameter{keyParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseBinary("Blob content", "application/octet-stream"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
			{
				Method: "GET", Pattern: "/{key...}", Handler: h.find,
				OpenAPI: &openapi.Operation{
					Summary:    "Blob properties",
					Parameters: []*openapi.Parameter{keyParam},
					Responses: map[int]*openapi.Response{
						200: openapi.ResponseJSON("Blob metadata", "BlobMeta"),
						404: openapi.ResponseRef("NotFound"),
					},
				},
			},
		},
	}
}

// list pages through blobs under an optional prefix using Azure continuation markers.
func (h *storageHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	maxResults, err := storage.ParseMaxResults(q.Get("max_results"), h.maxListSize)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.store.List(r.Context(), q.Get("prefix"), q.Get("marker"), maxResults)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *storageHandler) find(w http.ResponseWriter, r *http.Request) {
	meta, err := h.store.Find(r.Context(), r.PathValue("key"))
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, meta)
}

func (h *storageHandler) download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	result, err := h.store.Download(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer result.Body.Close()

	if err := handlers.RespondAttachment(w, result.ContentType, result.ContentLength, path.Base(key), result.Body); err != nil {
		h.logger.Warn("download interrupted", "key", key, "error", err)
	}
}
