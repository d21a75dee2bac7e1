package domain

import "errors"

// Sentinel errors for the core pipeline. Callers distinguish "operation
// failed" from "no match found": the latter is reported as an empty result,
// never as an error.
var (
	// ErrValidation marks input rejected before any state mutation
	// (unreadable image, empty descriptor set, missing product name).
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a lookup for an unknown identifier, such as a
	// restore request for a version that was never archived.
	ErrNotFound = errors.New("not found")

	// ErrExternal marks a failure of an external primitive (keypoint
	// extraction, background removal, ffmpeg, transcription). The current
	// request aborts with no partial feature store mutation.
	ErrExternal = errors.New("external primitive failed")

	// ErrConsistency marks a partial failure between the feature store and
	// the version archive. A mutation without a recoverable snapshot breaks
	// the restore guarantee and is reported, never ignored.
	ErrConsistency = errors.New("store and archive inconsistent")
)
