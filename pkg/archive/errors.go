package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported indicates a path whose extension maps to no archive format.
	ErrUnsupported = errors.New("unsupported archive format")
	// ErrUnavailable indicates a known format that is disabled in this extractor.
	ErrUnavailable = errors.New("archive format unavailable")
	// ErrEntryTooLarge indicates an entry that expands beyond the per-entry limit.
	ErrEntryTooLarge = errors.New("entry exceeds maximum size")
	// ErrArchiveTooLarge indicates an archive whose entries together exceed the total limit.
	ErrArchiveTooLarge = errors.New("archive exceeds maximum total size")
)

// EntryError reports a failure for a single archive entry.
// Extraction of the remaining entries continues.
type EntryError struct {
	Entry string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %s: %v", e.Entry, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}
