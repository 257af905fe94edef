package executor

import (
	"github.com/multiversx/mx-chain-parallel-executor-go/data"
)

// ExecutionStatus classifies the outcome of one transaction execution attempt
type ExecutionStatus int

const (
	// ExecutionSuccess means the transaction produced a regular output
	ExecutionSuccess ExecutionStatus = iota
	// ExecutionSkipRest means the transaction asks the engine to treat it and
	// every higher-indexed transaction as a no-op
	ExecutionSkipRest
	// ExecutionAborted means the transaction logic itself declared failure;
	// the error is surfaced verbatim and never retried on its own account
	ExecutionAborted
)

// ExecutionResult is what an executor task returns for one attempt
type ExecutionResult[K data.Key, V any] struct {
	Status ExecutionStatus
	Output TransactionOutput[K, V]
	Err    error
}

// NewSuccessResult creates a regular execution result
func NewSuccessResult[K data.Key, V any](output TransactionOutput[K, V]) *ExecutionResult[K, V] {
	return &ExecutionResult[K, V]{Status: ExecutionSuccess, Output: output}
}

// NewSkipRestResult creates a result that turns the rest of the block into no-ops
func NewSkipRestResult[K data.Key, V any]() *ExecutionResult[K, V] {
	return &ExecutionResult[K, V]{Status: ExecutionSkipRest}
}

// NewAbortResult creates a result carrying the transaction's own failure
func NewAbortResult[K data.Key, V any](err error) *ExecutionResult[K, V] {
	return &ExecutionResult[K, V]{Status: ExecutionAborted, Err: err}
}

// TransactionResult is the committed outcome of one transaction
type TransactionResult[K data.Key, V any] struct {
	// Output is the task-produced output; nil when the transaction was skipped or failed
	Output TransactionOutput[K, V]
	// AggregatorValues holds the transaction's deltas materialized at commit time
	AggregatorValues []data.AggregatorValue[K]
	Err              error
	Skipped          bool
}

// ExecutionStats holds counters describing one block run
type ExecutionStats struct {
	// NumExecutions counts execution attempts, re-executions included
	NumExecutions int64
	// NumAborts counts validation failures that triggered a re-execution
	NumAborts int64
}

// BlockResult is the outcome of a whole-block execution
type BlockResult[K data.Key, V any] struct {
	Outputs  []TransactionResult[K, V]
	Fallback data.FallbackReason
	Stats    ExecutionStats
}

// RequiresFallback returns true when the caller must re-run the block sequentially
func (result *BlockResult[K, V]) RequiresFallback() bool {
	return result.Fallback != data.FallbackReasonNone
}

// hasOverlappingOutputKeys reports whether the output writes and delta-updates
// the same key; such outputs are rejected before any effect is applied
func hasOverlappingOutputKeys[K data.Key, V any](
	writes []data.KeyValue[K, V],
	deltas []data.KeyDelta[K],
) bool {
	if len(writes) == 0 || len(deltas) == 0 {
		return false
	}

	written := make(map[K]struct{}, len(writes))
	for _, write := range writes {
		written[write.Key] = struct{}{}
	}
	for _, delta := range deltas {
		if _, found := written[delta.Key]; found {
			return true
		}
	}

	return false
}
