package executor

import (
	"sync"
	"sync/atomic"

	cmap "github.com/orcaman/concurrent-map"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"

	"github.com/multiversx/mx-chain-parallel-executor-go/data"
	"github.com/multiversx/mx-chain-parallel-executor-go/mvstore"
	"github.com/multiversx/mx-chain-parallel-executor-go/scheduler"
)

var log = logger.GetOrCreate("executor")

// ArgsParallelBlockExecutor holds the arguments needed to create a parallel block executor
type ArgsParallelBlockExecutor[K data.Key, V any] struct {
	BlockSize  int
	NumWorkers int
	// MaxIncarnations caps re-executions per transaction before the engine
	// requests a sequential fallback; 0 means no cap
	MaxIncarnations uint32
	Task            ExecutorTask[K, V]
	StorageView     StorageView[K, V]
	Codec           AggregatorCodec[V]
}

// parallelBlockExecutor executes a block speculatively on a fixed worker pool,
// producing the same per-transaction outputs as a strictly sequential run
type parallelBlockExecutor[K data.Key, V any] struct {
	blockSize       int
	numWorkers      int
	maxIncarnations uint32
	task            ExecutorTask[K, V]
	storageView     StorageView[K, V]
	codec           AggregatorCodec[V]
}

// NewParallelBlockExecutor creates a parallel block executor
func NewParallelBlockExecutor[K data.Key, V any](args ArgsParallelBlockExecutor[K, V]) (*parallelBlockExecutor[K, V], error) {
	if args.BlockSize < 0 {
		return nil, ErrInvalidBlockSize
	}
	if args.NumWorkers < 1 {
		return nil, ErrInvalidNumWorkers
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

	return &parallelBlockExecutor[K, V]{
		blockSize:       args.BlockSize,
		numWorkers:      args.NumWorkers,
		maxIncarnations: args.MaxIncarnations,
		task:            args.Task,
		storageView:     args.StorageView,
		codec:           args.Codec,
	}, nil
}

// Execute runs the whole block and returns the per-transaction results, or a
// fallback signal telling the caller to re-run the block sequentially
func (pbe *parallelBlockExecutor[K, V]) Execute() (*BlockResult[K, V], error) {
	if pbe.blockSize == 0 {
		return &BlockResult[K, V]{Outputs: make([]TransactionResult[K, V], 0)}, nil
	}

	run, err := pbe.newBlockRun()
	if err != nil {
		return nil, err
	}

	wg := sync.WaitGroup{}
	for i := 0; i < pbe.numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run.workerLoop()
		}()
	}
	wg.Wait()

	stats := ExecutionStats{
		NumExecutions: run.numExecutions.Load(),
		NumAborts:     run.numAborts.Load(),
	}

	reason := run.scheduler.FallbackReason()
	if reason != data.FallbackReasonNone {
		log.Debug("parallel execution abandoned", "reason", reason.String())
		return &BlockResult[K, V]{Fallback: reason, Stats: stats}, nil
	}

	log.Trace("parallel execution finished",
		"transactions", pbe.blockSize,
		"executions", stats.NumExecutions,
		"aborts", stats.NumAborts,
	)

	return &BlockResult[K, V]{Outputs: run.outputs, Stats: stats}, nil
}

func (pbe *parallelBlockExecutor[K, V]) newBlockRun() (*blockRun[K, V], error) {
	store, err := mvstore.NewVersionedStore[K, V](pbe.blockSize)
	if err != nil {
		return nil, err
	}

	sched, err := scheduler.NewScheduler(scheduler.ArgsScheduler{
		BlockSize:       pbe.blockSize,
		MaxIncarnations: pbe.maxIncarnations,
	})
	if err != nil {
		return nil, err
	}

	return &blockRun[K, V]{
		executor:       pbe,
		store:          store,
		scheduler:      sched,
		results:        make([]atomic.Pointer[ExecutionResult[K, V]], pbe.blockSize),
		outputs:        make([]TransactionResult[K, V], pbe.blockSize),
		committable:    make([]bool, pbe.blockSize),
		skipFromIndex:  -1,
		modulesWritten: cmap.New(),
		modulesRead:    cmap.New(),
	}, nil
}

// blockRun is the transient state of one block execution
type blockRun[K data.Key, V any] struct {
	executor  *parallelBlockExecutor[K, V]
	store     *mvstore.VersionedStore[K, V]
	scheduler blockRunScheduler

	results []atomic.Pointer[ExecutionResult[K, V]]

	// guarded by materializeMut; the commit drain is ascending, so outputs are
	// finalized strictly in index order
	materializeMut    sync.Mutex
	outputs           []TransactionResult[K, V]
	committable       []bool
	nextToMaterialize int
	skipFromIndex     int

	modulesWritten cmap.ConcurrentMap
	modulesRead    cmap.ConcurrentMap

	numExecutions atomic.Int64
	numAborts     atomic.Int64
}

// blockRunScheduler is the scheduler surface the run depends on
type blockRunScheduler interface {
	Done() bool
	Halt(reason data.FallbackReason)
	FallbackReason() data.FallbackReason
	NextTask() *data.Task
	AddDependency(txIndex int, blockingTxIndex int) bool
	FinishExecution(version data.Version, wroteNewKey bool) *data.Task
	TryValidationAbort(version data.Version) bool
	ValidationEpoch(txIndex int) uint64
	MarkValidated(version data.Version, epoch uint64) []int
	FinishValidation(txIndex int, aborted bool) *data.Task
	DeferValidation(txIndex int)
	IsInterfaceNil() bool
}

func (run *blockRun[K, V]) workerLoop() {
	var task *data.Task
	for {
		if task != nil {
			switch task.Kind {
			case data.TaskExecute:
				task = run.tryExecute(task.Version)
			case data.TaskValidate:
				task = run.tryValidate(task.Version)
			default:
				task = nil
			}
			continue
		}

		task = run.scheduler.NextTask()
		if task == nil && run.scheduler.Done() {
			return
		}
	}
}

func (run *blockRun[K, V]) tryExecute(version data.Version) *data.Task {
	run.numExecutions.Add(1)

	view := newSpeculativeReadView(run.store, run.executor.storageView, run.executor.codec, version.TxIndex)
	result := run.executor.task.Execute(view, version.TxIndex)

	if view.blockedOnTxIndex >= 0 {
		registered := run.scheduler.AddDependency(version.TxIndex, view.blockedOnTxIndex)
		if registered {
			// suspended; the producer's FinishExecution will resume it
			return nil
		}
		// dependency resolved in the meantime, retry right away
		return &data.Task{Kind: data.TaskExecute, Version: version}
	}

	if result == nil {
		result = NewAbortResult[K, V](ErrNilExecutionResult)
	}
	if result.Status == ExecutionSuccess && check.IfNil(result.Output) {
		result = NewAbortResult[K, V](ErrNilTransactionOutput)
	}

	var writes []data.KeyValue[K, V]
	var deltas []data.KeyDelta[K]
	if result.Status == ExecutionSuccess {
		writes = result.Output.GetWrites()
		deltas = result.Output.GetDeltas()
	}
	if hasOverlappingOutputKeys(writes, deltas) {
		result = NewAbortResult[K, V](ErrOverlappingWriteAndDelta)
		writes = nil
		deltas = nil
	}

	if run.detectModulePathHazard(view.moduleReads, writes, deltas) {
		run.scheduler.Halt(data.FallbackReasonModulePathHazard)
		return nil
	}

	wroteNewKey := run.store.Record(version, view.readSet, writes, deltas)
	run.results[version.TxIndex].Store(result)

	return run.scheduler.FinishExecution(version, wroteNewKey)
}

func (run *blockRun[K, V]) tryValidate(version data.Version) *data.Task {
	// snapshot the epoch before replaying the read set, so a concurrent change
	// below this index invalidates the result we are about to compute
	epoch := run.scheduler.ValidationEpoch(version.TxIndex)

	valid, blocked := run.store.ValidateReadSet(version.TxIndex)
	if blocked {
		run.scheduler.DeferValidation(version.TxIndex)
		return run.scheduler.FinishValidation(version.TxIndex, false)
	}

	aborted := !valid && run.scheduler.TryValidationAbort(version)
	if aborted {
		run.numAborts.Add(1)
		run.store.MarkEstimates(version.TxIndex)
	} else if valid {
		committed := run.scheduler.MarkValidated(version, epoch)
		if len(committed) > 0 {
			run.materializeCommitted(committed)
		}
	}

	return run.scheduler.FinishValidation(version.TxIndex, aborted)
}

// detectModulePathHazard reports whether a module-path key has now been seen
// both written and read across the block
func (run *blockRun[K, V]) detectModulePathHazard(
	moduleReads []K,
	writes []data.KeyValue[K, V],
	deltas []data.KeyDelta[K],
) bool {
	hazard := false

	for _, key := range moduleReads {
		identifier := key.String()
		run.modulesRead.Set(identifier, struct{}{})
		if run.modulesWritten.Has(identifier) {
			hazard = true
		}
	}

	checkWrittenKey := func(key K) {
		if !key.IsModulePath() {
			return
		}
		identifier := key.String()
		run.modulesWritten.Set(identifier, struct{}{})
		if run.modulesRead.Has(identifier) {
			hazard = true
		}
	}
	for _, write := range writes {
		checkWrittenKey(write.Key)
	}
	for _, delta := range deltas {
		checkWrittenKey(delta.Key)
	}

	if hazard {
		log.Debug("module path hazard detected")
	}

	return hazard
}

// materializeCommitted finalizes outputs for newly committed transactions.
// Ranges coming from concurrent validators are disjoint; the mutex plus the
// committable bitmap guarantee materialization happens in ascending order, so
// delta bases below a committing transaction are always settled.
func (run *blockRun[K, V]) materializeCommitted(committed []int) {
	run.materializeMut.Lock()
	defer run.materializeMut.Unlock()

	for _, txIndex := range committed {
		run.committable[txIndex] = true
	}

	for run.nextToMaterialize < len(run.outputs) && run.committable[run.nextToMaterialize] {
		run.materializeOne(run.nextToMaterialize)
		run.nextToMaterialize++
	}
}

func (run *blockRun[K, V]) materializeOne(txIndex int) {
	result := run.results[txIndex].Load()
	if result == nil {
		run.outputs[txIndex] = TransactionResult[K, V]{Err: ErrNilExecutionResult}
		return
	}

	if result.Status == ExecutionSkipRest && run.skipFromIndex < 0 {
		run.skipFromIndex = txIndex
	}
	if run.skipFromIndex >= 0 && txIndex >= run.skipFromIndex {
		run.store.PurgeWrites(txIndex)
		run.outputs[txIndex] = TransactionResult[K, V]{
			Output:  run.executor.task.SkipOutput(),
			Skipped: true,
		}
		return
	}

	if result.Status == ExecutionAborted {
		run.outputs[txIndex] = TransactionResult[K, V]{Err: result.Err}
		return
	}

	aggregatorValues, err := run.store.MaterializeDeltas(
		txIndex,
		run.executor.codec.ToUint64,
		run.storageBaseValue,
	)
	if err != nil {
		log.Debug("delta materialization failed", "txIndex", txIndex, "error", err.Error())
		run.outputs[txIndex] = TransactionResult[K, V]{Err: err}
		return
	}

	run.outputs[txIndex] = TransactionResult[K, V]{
		Output:           result.Output,
		AggregatorValues: aggregatorValues,
	}
}

func (run *blockRun[K, V]) storageBaseValue(key K) (uint64, bool, error) {
	value, found, err := run.executor.storageView.GetBaseValue(key)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, nil
	}

	converted, err := run.executor.codec.ToUint64(value)
	if err != nil {
		return 0, false, err
	}

	return converted, true, nil
}

// IsInterfaceNil returns true if there is no value under the interface
func (pbe *parallelBlockExecutor[K, V]) IsInterfaceNil() bool {
	return pbe == nil
}
