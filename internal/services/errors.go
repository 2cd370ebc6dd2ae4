package services

import "errors"

// Fatal intake error categories. Handlers report the wrapped message to the
// caller; the categories exist so callers and tests can classify failures
// with errors.Is. Vision-extraction failure has no category here because it
// is non-fatal and degrades to an empty enhancement.
var (
	ErrValidation  = errors.New("invalid submission")
	ErrDecryption  = errors.New("decryption failed")
	ErrExtraction  = errors.New("address extraction failed")
	ErrPersistence = errors.New("persistence failed")
)
