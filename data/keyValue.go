package data

import (
	"github.com/multiversx/mx-chain-parallel-executor-go/aggregator"
)

// KeyValue is one write produced by a transaction. Deleted marks a tombstone.
type KeyValue[K Key, V any] struct {
	Key     K
	Value   V
	Deleted bool
}

// KeyDelta is one commutative numeric update produced by a transaction
type KeyDelta[K Key] struct {
	Key   K
	Delta aggregator.Delta
}

// AggregatorValue is a delta materialized into a concrete numeric value at commit time
type AggregatorValue[K Key] struct {
	Key   K
	Value uint64
}
