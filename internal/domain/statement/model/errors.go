package model

import "errors"

var (
	// ErrFormatMismatch is returned when a document's detected format differs
	// from the format its template declares.
	ErrFormatMismatch = errors.New("document format does not match template format")
	// ErrExtraction is returned when positioned text cannot be extracted, for
	// example from a corrupted or encrypted PDF.
	ErrExtraction = errors.New("text extraction failed")
)
