package repository

import "errors"

// Error taxonomy for the prediction pipeline. Callers classify failures
// with errors.Is and map them to HTTP statuses at the handler layer.
var (
	// ErrFeedUnavailable marks transport or parse failures talking to the
	// external flux feed. An empty feed result is not an error.
	ErrFeedUnavailable = errors.New("feed unavailable")

	// ErrStoreUnavailable marks connectivity failures at the persistence layer.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStoreWriteRejected marks a write the store refused.
	ErrStoreWriteRejected = errors.New("store write rejected")

	// ErrAuthRejected marks an unauthorized trigger call.
	ErrAuthRejected = errors.New("auth rejected")
)
