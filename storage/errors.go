package storage

import "errors"

// ErrNilStorageView signals that a nil storage view has been provided
var ErrNilStorageView = errors.New("nil storage view")

// ErrInvalidCacheCapacity signals that an invalid cache capacity has been provided
var ErrInvalidCacheCapacity = errors.New("invalid cache capacity")
