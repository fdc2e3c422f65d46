package domain

import "errors"

// Errors returned by the engine core. Callers check them with errors.Is.
var (
	// ErrStaleCache is returned when a handle's frame cache is queried
	// without a read scope ever having populated it, or after the shared
	// index moved to a newer epoch. Recoverable by re-entering a scope.
	ErrStaleCache = errors.New("walsync: stale frame cache")

	// ErrEpochMismatch is returned when the remote watermark refers to a
	// different log generation than the local snapshot. A partial push
	// across generations is never computed; the caller must trigger a
	// full resync.
	ErrEpochMismatch = errors.New("walsync: log epoch mismatch")

	// ErrConflict is returned when a commit detects a concurrent writer,
	// violating the single-writer invariant. The commit attempt fails;
	// the shared index is left intact.
	ErrConflict = errors.New("walsync: concurrent commit conflict")

	// ErrRangeRead is returned when the log cannot supply a requested
	// frame range (gap, truncation, or corruption). Retryable; no push
	// watermark may advance on this error.
	ErrRangeRead = errors.New("walsync: frame range read failed")

	// ErrSnapshotContention is returned when a shared index snapshot
	// could not be validated within the configured attempt budget.
	ErrSnapshotContention = errors.New("walsync: shared index snapshot contention")

	// ErrFrameTooLarge is returned when an append exceeds the maximum
	// frame payload size. Nothing is written; the log is unchanged.
	ErrFrameTooLarge = errors.New("walsync: frame payload too large")

	// ErrClosed is returned by operations on a closed log.
	ErrClosed = errors.New("walsync: log closed")
)
