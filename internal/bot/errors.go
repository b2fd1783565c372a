package bot

import "errors"

var (
	// ErrStorageUnavailable means the ledger could not be reached; the submission
	// is retried on the next poll.
	ErrStorageUnavailable = errors.New("ledger storage unavailable")
	// ErrResolutionFailed means a single link could not be archived.
	ErrResolutionFailed = errors.New("archive resolution failed")
	// ErrSourceUnavailable means the quote wiki page could not be fetched.
	ErrSourceUnavailable = errors.New("quote source unavailable")
	// ErrPostFailed means the reply could not be submitted.
	ErrPostFailed = errors.New("reply post failed")
	// ErrUnexpected wraps anything else that escapes a poll cycle.
	ErrUnexpected = errors.New("unexpected error")
)
