package mvstore

import (
	"github.com/multiversx/mx-chain-parallel-executor-go/aggregator"
	"github.com/multiversx/mx-chain-parallel-executor-go/data"
)

// ReadStatus is the outcome class of a speculative read
type ReadStatus int

const (
	// ReadStatusResolved means the read stopped on an in-block concrete value or deletion
	ReadStatusResolved ReadStatus = iota
	// ReadStatusNotFound means no in-block entry qualifies; the caller resolves against storage
	ReadStatusNotFound
	// ReadStatusBaseWithDeltas means only delta entries were found; the caller applies the
	// accumulated delta on the storage base value
	ReadStatusBaseWithDeltas
	// ReadStatusBlocked means the nearest entry is an estimate of an in-flight producer
	ReadStatusBlocked
	// ReadStatusError means the read failed while composing deltas
	ReadStatusError
)

// ReadResult is the outcome of a speculative read at a given transaction index
type ReadResult[V any] struct {
	Status           ReadStatus
	Value            V
	Deleted          bool
	HasDelta         bool
	Delta            aggregator.Delta
	BlockedOnTxIndex int
	Descriptors      []data.VersionDescriptor
	Err              error
}
