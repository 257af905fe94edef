package executor

import (
	"github.com/multiversx/mx-chain-parallel-executor-go/data"
)

// ReadView is the state view a transaction executes against. Reads resolve
// speculatively: values written by lower-indexed transactions of the same
// block become visible before those transactions commit.
type ReadView[K data.Key, V any] interface {
	// Read returns the value, whether it exists, and an error. Tasks must stop
	// and return when the error is not nil: the view already recorded the cause.
	Read(key K) (V, bool, error)
}

// ExecutorTask is the pluggable per-transaction execution logic. Execute must
// be a pure function of the view and the transaction index: it may be invoked
// several times for the same index, once per incarnation.
type ExecutorTask[K data.Key, V any] interface {
	Execute(view ReadView[K, V], txIndex int) *ExecutionResult[K, V]
	SkipOutput() TransactionOutput[K, V]
	IsInterfaceNil() bool
}

// TransactionOutput exposes the effects produced by one transaction execution
type TransactionOutput[K data.Key, V any] interface {
	GetWrites() []data.KeyValue[K, V]
	GetDeltas() []data.KeyDelta[K]
	IsInterfaceNil() bool
}

// StorageView supplies base values for keys no in-block transaction wrote
type StorageView[K data.Key, V any] interface {
	GetBaseValue(key K) (V, bool, error)
	IsInterfaceNil() bool
}

// AggregatorCodec converts between the block's value type and the uint64
// domain aggregator deltas operate on
type AggregatorCodec[V any] interface {
	ToUint64(value V) (uint64, error)
	FromUint64(value uint64) V
	IsInterfaceNil() bool
}

// BlockExecutor runs a whole block and returns per-transaction results or a
// fallback signal
type BlockExecutor[K data.Key, V any] interface {
	Execute() (*BlockResult[K, V], error)
	IsInterfaceNil() bool
}
