package aggregator

import "errors"

// ErrDeltaOverflow signals that applying a delta would exceed its declared limit
var ErrDeltaOverflow = errors.New("delta application overflows the declared limit")

// ErrDeltaUnderflow signals that applying a delta would drop the value below zero
var ErrDeltaUnderflow = errors.New("delta application underflows zero")

// ErrDeltaOutOfRange signals that composing deltas exceeded the representable range
var ErrDeltaOutOfRange = errors.New("delta composition is out of range")

// ErrMismatchedDeltaLimits signals that deltas with different declared limits were composed
var ErrMismatchedDeltaLimits = errors.New("mismatched delta limits")

// ErrBaseValueOverLimit signals that the base value a delta is applied on already exceeds the limit
var ErrBaseValueOverLimit = errors.New("base value exceeds the declared limit")
