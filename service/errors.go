package services

import "errors"

// Error taxonomy for the analysis pipeline and the read path.
var (
	// ErrExtraction marks an unrecoverable PDF parse failure (encrypted,
	// corrupt, or no extractable pages). The document is failed, never retried.
	ErrExtraction = errors.New("extraction failed")

	// ErrProviderUnavailable means every configured AI provider failed or
	// timed out for a call. Callers fall back to the heuristic result.
	ErrProviderUnavailable = errors.New("all AI providers unavailable")

	// ErrDocumentNotFound is returned when no document exists for an id.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDocumentNotReady is returned when a read requires a completed
	// document but the analysis is still pending, processing, or failed.
	ErrDocumentNotReady = errors.New("document analysis not completed")

	// ErrValidation marks a malformed upload rejected before any pipeline work.
	ErrValidation = errors.New("validation failed")
)
