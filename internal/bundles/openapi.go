package bundles

import "github.com/JaimeStill/courier/pkg/openapi"

type spec struct {
	List            *openapi.Operation
	Search          *openapi.Operation
	SearchDocuments *openapi.Operation
	Find            *openapi.Operation
	Documents       *openapi.Operation
	Lineage         *openapi.Operation
	Download        *openapi.Operation
	Create          *openapi.Operation
	Delete          *openapi.Operation
	Schemas         map[string]*openapi.Schema
}

var errorResponses = map[int]*openapi.Response{
	400: openapi.ResponseRef("BadRequest"),
	404: openapi.ResponseRef("NotFound"),
}

var Spec = spec{
	List: &openapi.Operation{
		Summary:     "List bundles",
		Description: "Returns a paginated list of bundles, newest first.",
		Parameters: []*openapi.Parameter{
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
			openapi.QueryParam("search", "string", "Search bundle names", false),
			openapi.QueryParam("sort", "string", "Comma-separated sort fields", false),
			openapi.QueryParam("name", "string", "Filter by name (contains)", false),
			openapi.QueryParam("max_depth", "integer", "Filter by max depth", false),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Paginated bundles", "BundlePage"),
		},
	},
	Search: &openapi.Operation{
		Summary:     "Search bundles",
		RequestBody: openapi.RequestBodyJSON("BundleSearchRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Paginated bundles", "BundlePage"),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	SearchDocuments: &openapi.Operation{
		Summary:     "Search documents across bundles",
		Description: "Filters by bundle, parent, file name, container type, file hash, depth, or leaf status.",
		RequestBody: openapi.RequestBodyJSON("DocumentSearchRequest", true),
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Paginated documents", "DocumentPage"),
			400: openapi.ResponseRef("BadRequest"),
		},
	},
	Find: &openapi.Operation{
		Summary:    "Find bundle",
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "Bundle ID")},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Bundle with documents", "BundleDetail"),
			400: errorResponses[400],
			404: errorResponses[404],
		},
	},
	Documents: &openapi.Operation{
		Summary: "List bundle documents",
		Parameters: []*openapi.Parameter{
			openapi.PathParam("id", "Bundle ID"),
			openapi.QueryParam("page", "integer", "Page number", false),
			openapi.QueryParam("page_size", "integer", "Results per page", false),
			openapi.QueryParam("container_type", "string", "Filter by container type", false),
			openapi.QueryParam("leaf", "boolean", "Filter by leaf status", false),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Paginated documents", "DocumentPage"),
			400: errorResponses[400],
		},
	},
	Lineage: &openapi.Operation{
		Summary: "Document lineage",
		Description: "Returns the chain of containers from the uploaded file down to the document. " +
			"Depth counts the ancestors above the document.",
		Parameters: []*openapi.Parameter{
			openapi.PathParam("id", "Bundle ID"),
			openapi.PathParam("documentId", "Document ID"),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseJSON("Lineage chain", "LineageChain"),
			400: errorResponses[400],
			404: errorResponses[404],
		},
	},
	Download: &openapi.Operation{
		Summary: "Download leaf document",
		Parameters: []*openapi.Parameter{
			openapi.PathParam("id", "Bundle ID"),
			openapi.PathParam("documentId", "Document ID"),
		},
		Responses: map[int]*openapi.Response{
			200: openapi.ResponseBinary("Document content", "application/octet-stream"),
			400: errorResponses[400],
			404: errorResponses[404],
			409: openapi.ResponseRef("Conflict"),
		},
	},
	Create: &openapi.Operation{
		Summary:     "Create bundle",
		Description: "Uploads one or more container files, expands them recursively, and publishes every leaf.",
		RequestBody: &openapi.RequestBody{
			Required: true,
			Content: map[string]*openapi.MediaType{
				"multipart/form-data": {
					Schema: &openapi.Schema{
						Type:     "object",
						Required: []string{"file"},
						Properties: map[string]*openapi.Schema{
							"file": {
								Type:        "array",
								Items:       &openapi.Schema{Type: "string", Format: "binary"},
								Description: "Files to expand",
							},
							"name":      {Type: "string", Description: "Bundle name; defaults to the first file name"},
							"max_depth": {Type: "integer", Description: "Maximum nesting depth to expand"},
						},
					},
				},
			},
		},
		Responses: map[int]*openapi.Response{
			201: openapi.ResponseJSON("Created bundle", "BundleDetail"),
			400: errorResponses[400],
			413: openapi.ResponseRef("PayloadTooLarge"),
		},
	},
	Delete: &openapi.Operation{
		Summary:    "Delete bundle",
		Parameters: []*openapi.Parameter{openapi.PathParam("id", "Bundle ID")},
		Responses: map[int]*openapi.Response{
			204: {Description: "Bundle deleted"},
			404: errorResponses[404],
		},
	},
	Schemas: map[string]*openapi.Schema{
		"Bundle": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":                 {Type: "string", Format: "uuid"},
				"name":               {Type: "string"},
				"max_depth":          {Type: "integer"},
				"original_count":     {Type: "integer"},
				"total_extracted":    {Type: "integer"},
				"error_count":        {Type: "integer"},
				"duplicate_count":    {Type: "integer"},
				"processing_time_ms": {Type: "number"},
				"errors":             {Type: "array", Items: openapi.SchemaRef("ErrorEntry")},
				"duplicates":         {Type: "array", Items: openapi.SchemaRef("Duplicate")},
				"created_at":         {Type: "string", Format: "date-time"},
			},
		},
		"ErrorEntry": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"path":  {Type: "string"},
				"error": {Type: "string"},
				"kind": {
					Type: "string",
					Enum: []any{
						"not_found", "unsupported_format", "extraction_failure",
						"path_traversal_rejected", "depth_exceeded", "cancelled", "hash_failure",
					},
				},
				"depth":          {Type: "integer"},
				"container_type": {Type: "string"},
			},
		},
		"Duplicate": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"path":         {Type: "string"},
				"duplicate_of": {Type: "string"},
				"file_hash":    {Type: "string"},
				"depth":        {Type: "integer"},
			},
		},
		"Document": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":               {Type: "string", Format: "uuid"},
				"bundle_id":        {Type: "string", Format: "uuid"},
				"parent_id":        {Type: "string", Format: "uuid"},
				"original_path":    {Type: "string"},
				"file_name":        {Type: "string"},
				"container_type":   {Type: "string", Enum: []any{"archive", "email", "pdf_portfolio", "document"}},
				"extraction_depth": {Type: "integer"},
				"file_hash":        {Type: "string"},
				"size_bytes":       {Type: "integer"},
				"page_count":       {Type: "integer"},
				"metadata":         {Type: "object"},
				"children":         {Type: "array", Items: &openapi.Schema{Type: "string", Format: "uuid"}},
				"leaf":             {Type: "boolean"},
				"storage_key":      {Type: "string"},
				"content_type":     {Type: "string"},
				"created_at":       {Type: "string", Format: "date-time"},
			},
		},
		"BundleDetail": {
			Type: "object",
			Description: "Bundle fields plus documents",
			Properties: map[string]*openapi.Schema{
				"documents": {Type: "array", Items: openapi.SchemaRef("Document")},
			},
		},
		"LineageChain": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"document_id":   {Type: "string"},
				"lineage_chain": {Type: "array", Items: &openapi.Schema{Type: "object"}},
				"depth":         {Type: "integer"},
			},
		},
		"BundlePage": pageSchema("Bundle"),
		"DocumentPage": pageSchema("Document"),
		"BundleSearchRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"page":      {Type: "integer"},
				"page_size": {Type: "integer"},
				"search":    {Type: "string"},
				"sort":      {Type: "string"},
				"name":      {Type: "string"},
				"max_depth": {Type: "integer"},
			},
		},
		"DocumentSearchRequest": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"page":             {Type: "integer"},
				"page_size":        {Type: "integer"},
				"search":           {Type: "string"},
				"sort":             {Type: "string"},
				"bundle_id":        {Type: "string", Format: "uuid"},
				"parent_id":        {Type: "string", Format: "uuid"},
				"file_name":        {Type: "string"},
				"container_type":   {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"file_hash":        {Type: "string"},
				"extraction_depth": {Type: "integer"},
				"leaf":             {Type: "boolean"},
				"root":             {Type: "boolean"},
			},
		},
	},
}

func pageSchema(item string) *openapi.Schema {
	return &openapi.Schema{
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"data":        {Type: "array", Items: openapi.SchemaRef(item)},
			"total":       {Type: "integer"},
			"page":        {Type: "integer"},
			"page_size":   {Type: "integer"},
			"total_pages": {Type: "integer"},
		},
	}
}
