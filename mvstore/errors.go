package mvstore

import "errors"

// ErrInvalidBlockSize signals that an invalid block size has been provided
var ErrInvalidBlockSize = errors.New("invalid block size")

// ErrDeltaAppliedOnDeletedValue signals that a delta targets a key deleted earlier in the block
var ErrDeltaAppliedOnDeletedValue = errors.New("delta applied on a deleted value")

// ErrUnresolvedBaseValue signals that the base value below a committing delta is not settled.
// All lower transactions are committed before a delta is materialized, so this is an invariant breach.
var ErrUnresolvedBaseValue = errors.New("unresolved base value below a committing delta")
