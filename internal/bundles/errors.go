package bundles

import (
	"errors"
	"net/http"
)

// Domain errors for bundle operations.
var (
	ErrNotFound        = errors.New("bundle not found")
	ErrDocumentMissing = errors.New("document not found in bundle")
	ErrNotLeaf         = errors.New("document is a container and has no published blob")
	ErrDuplicate       = errors.New("bundle already exists")
	ErrFileTooLarge    = errors.New("upload exceeds maximum size")
	ErrInvalidRequest  = errors.New("invalid bundle request")
)

// MapHTTPStatus maps bundle domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDocumentMissing):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrNotLeaf):
		return http.StatusConflict
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
