package executor

import (
	"github.com/multiversx/mx-chain-core-go/core/check"

	"github.com/multiversx/mx-chain-parallel-executor-go/data"
	"github.com/multiversx/mx-chain-parallel-executor-go/mvstore"
)

// ArgsSequentialBlockExecutor holds the arguments needed to create a sequential block executor
type ArgsSequentialBlockExecutor[K data.Key, V any] struct {
	BlockSize   int
	Task        ExecutorTask[K, V]
	StorageView StorageView[K, V]
	Codec       AggregatorCodec[V]
}

// sequentialBlockExecutor executes the block strictly in order on the calling
// goroutine. It is the reference the parallel engine must be indistinguishable
// from, and the path callers take after a fallback signal.
type sequentialBlockExecutor[K data.Key, V any] struct {
	blockSize   int
	task        ExecutorTask[K, V]
	storageView StorageView[K, V]
	codec       AggregatorCodec[V]
}

// NewSequentialBlockExecutor creates a sequential block executor
func NewSequentialBlockExecutor[K data.Key, V any](args ArgsSequentialBlockExecutor[K, V]) (*sequentialBlockExecutor[K, V], error) {
	if args.BlockSize < 0 {
		return nil, ErrInvalidBlockSize
	}
	if check.IfNil(args.Task) {
		return nil, ErrNilExecutorTask
	}
	if check.IfNil(args.StorageView) {
		return nil, ErrNilStorageView
	}
	if check.IfNil(args.Codec) {
		return nil, ErrNilAggregatorCodec
	}

	return &sequentialBlockExecutor[K, V]{
		blockSize:   args.BlockSize,
		task:        args.Task,
		storageView: args.StorageView,
		codec:       args.Codec,
	}, nil
}

// Execute runs every transaction in block order against an overlay of the storage view
func (sbe *sequentialBlockExecutor[K, V]) Execute() (*BlockResult[K, V], error) {
	outputs := make([]TransactionResult[K, V], sbe.blockSize)
	overlay := make(map[K]overlayCell[V])
	skipRest := false
	numExecutions := int64(0)

	for txIndex := 0; txIndex < sbe.blockSize; txIndex++ {
		if skipRest {
			outputs[txIndex] = TransactionResult[K, V]{Output: sbe.task.SkipOutput(), Skipped: true}
			continue
		}

		view := &overlayReadView[K, V]{overlay: overlay, storageView: sbe.storageView}
		numExecutions++
		result := sbe.task.Execute(view, txIndex)
		if result == nil {
			result = NewAbortResult[K, V](ErrNilExecutionResult)
		}
		if result.Status == ExecutionSuccess && check.IfNil(result.Output) {
			result = NewAbortResult[K, V](ErrNilTransactionOutput)
		}

		switch result.Status {
		case ExecutionSkipRest:
			skipRest = true
			outputs[txIndex] = TransactionResult[K, V]{Output: sbe.task.SkipOutput(), Skipped: true}
		case ExecutionAborted:
			outputs[txIndex] = TransactionResult[K, V]{Err: result.Err}
		default:
			outputs[txIndex] = sbe.applyOutput(overlay, result.Output)
		}
	}

	return &BlockResult[K, V]{
		Outputs: outputs,
		Stats:   ExecutionStats{NumExecutions: numExecutions},
	}, nil
}

func (sbe *sequentialBlockExecutor[K, V]) applyOutput(
	overlay map[K]overlayCell[V],
	output TransactionOutput[K, V],
) TransactionResult[K, V] {
	writes := output.GetWrites()
	deltas := output.GetDeltas()
	if hasOverlappingOutputKeys(writes, deltas) {
		return TransactionResult[K, V]{Err: ErrOverlappingWriteAndDelta}
	}

	for _, write := range writes {
		overlay[write.Key] = overlayCell[V]{value: write.Value, deleted: write.Deleted}
	}
	aggregatorValues := make([]data.AggregatorValue[K], 0, len(deltas))
	for _, delta := range deltas {
		base, err := sbe.resolveDeltaBase(overlay, delta.Key)
		if err != nil {
			return TransactionResult[K, V]{Err: err}
		}

		value, err := delta.Delta.Apply(base)
		if err != nil {
			return TransactionResult[K, V]{Err: err}
		}

		overlay[delta.Key] = overlayCell[V]{value: sbe.codec.FromUint64(value)}
		aggregatorValues = append(aggregatorValues, data.AggregatorValue[K]{Key: delta.Key, Value: value})
	}

	if len(aggregatorValues) == 0 {
		aggregatorValues = nil
	}

	return TransactionResult[K, V]{Output: output, AggregatorValues: aggregatorValues}
}

func (sbe *sequentialBlockExecutor[K, V]) resolveDeltaBase(overlay map[K]overlayCell[V], key K) (uint64, error) {
	cell, found := overlay[key]
	if found {
		if cell.deleted {
			return 0, mvstore.ErrDeltaAppliedOnDeletedValue
		}
		return sbe.codec.ToUint64(cell.value)
	}

	baseValue, exists, err := sbe.storageView.GetBaseValue(key)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	return sbe.codec.ToUint64(baseValue)
}

type overlayCell[V any] struct {
	value   V
	deleted bool
}

// overlayReadView resolves reads through the sequential overlay, then storage
type overlayReadView[K data.Key, V any] struct {
	overlay     map[K]overlayCell[V]
	storageView StorageView[K, V]
}

// Read resolves a key against the overlay and the storage view
func (view *overlayReadView[K, V]) Read(key K) (V, bool, error) {
	var zero V

	cell, found := view.overlay[key]
	if found {
		if cell.deleted {
			return zero, false, nil
		}
		return cell.value, true, nil
	}

	return view.storageView.GetBaseValue(key)
}

// IsInterfaceNil returns true if there is no value under the interface
func (sbe *sequentialBlockExecutor[K, V]) IsInterfaceNil() bool {
	return sbe == nil
}
