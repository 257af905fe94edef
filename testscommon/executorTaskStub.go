package testscommon

import (
	"github.com/multiversx/mx-chain-parallel-executor-go/data"
	"github.com/multiversx/mx-chain-parallel-executor-go/executor"
)

// ExecutorTaskStub -
type ExecutorTaskStub[K data.Key, V any] struct {
	ExecuteCalled    func(view executor.ReadView[K, V], txIndex int) *executor.ExecutionResult[K, V]
	SkipOutputCalled func() executor.TransactionOutput[K, V]
}

// Execute -
func (stub *ExecutorTaskStub[K, V]) Execute(view executor.ReadView[K, V], txIndex int) *executor.ExecutionResult[K, V] {
	if stub.ExecuteCalled != nil {
		return stub.ExecuteCalled(view, txIndex)
	}

	return executor.NewSuccessResult[K, V](&TransactionOutputStub[K, V]{})
}

// SkipOutput -
func (stub *ExecutorTaskStub[K, V]) SkipOutput() executor.TransactionOutput[K, V] {
	if stub.SkipOutputCalled != nil {
		return stub.SkipOutputCalled()
	}

	return &TransactionOutputStub[K, V]{}
}

// IsInterfaceNil -
func (stub *ExecutorTaskStub[K, V]) IsInterfaceNil() bool {
	return stub == nil
}
