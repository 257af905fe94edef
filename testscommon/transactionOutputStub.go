package testscommon

import (
	"github.com/multiversx/mx-chain-parallel-executor-go/data"
)

// TransactionOutputStub -
type TransactionOutputStub[K data.Key, V any] struct {
	Writes []data.KeyValue[K, V]
	Deltas []data.KeyDelta[K]
}

// GetWrites -
func (stub *TransactionOutputStub[K, V]) GetWrites() []data.KeyValue[K, V] {
	return stub.Writes
}

// GetDeltas -
func (stub *TransactionOutputStub[K, V]) GetDeltas() []data.KeyDelta[K] {
	return stub.Deltas
}

// IsInterfaceNil -
func (stub *TransactionOutputStub[K, V]) IsInterfaceNil() bool {
	return stub == nil
}
