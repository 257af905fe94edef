package config

import "errors"

// ErrInvalidNumWorkers signals that a negative workers count has been provided
var ErrInvalidNumWorkers = errors.New("invalid number of workers")

// ErrInvalidStorageCacheCapacity signals that a negative cache capacity has been provided
var ErrInvalidStorageCacheCapacity = errors.New("invalid storage cache capacity")
