package scheduler

import "errors"

// ErrInvalidBlockSize signals that an invalid block size has been provided
var ErrInvalidBlockSize = errors.New("invalid block size")
