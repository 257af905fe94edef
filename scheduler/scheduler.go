package scheduler

import (
	"fmt"
	"sync"
	"sync/atomic"

	coreAtomic "github.com/multiversx/mx-chain-core-go/core/atomic"
	logger "github.com/multiversx/mx-chain-logger-go"

	"github.com/multiversx/mx-chain-parallel-executor-go/data"
)

var log = logger.GetOrCreate("scheduler")

const (
	statusReady = iota
	statusExecuting
	statusExecuted
	statusAborting
	statusValidated
	statusCommitted
)

// txState is the per-transaction-index state machine cell. validationEpoch is
// bumped whenever a lower transaction's writes change, so validation results
// computed against the old store contents are rejected on arrival.
type txState struct {
	sync.RWMutex
	status          int
	incarnation     uint32
	validationEpoch uint64
}

type txDependencies struct {
	sync.Mutex
	dependencies map[int]struct{}
}

type txBlockers struct {
	sync.Mutex
	blockers map[int]struct{}
}

// ArgsScheduler holds the arguments needed to create a scheduler
type ArgsScheduler struct {
	BlockSize int
	// MaxIncarnations caps re-executions per transaction; 0 means no cap
	MaxIncarnations uint32
}

// blockScheduler hands out execute and validate work items for one block,
// tracks per-transaction incarnations and dependencies, and drives every
// transaction towards Committed in ascending index order.
type blockScheduler struct {
	blockSize       int
	maxIncarnations uint32

	executionIndex  atomic.Int64
	validationIndex atomic.Int64
	doneFlag        coreAtomic.Flag
	haltFlag        coreAtomic.Flag
	fallbackReason  atomic.Int32

	commitMut   sync.Mutex
	commitIndex int

	txStates       []*txState
	txDependencies []*txDependencies
	txBlockers     []*txBlockers
}

// NewScheduler creates a scheduler for a block of the given size
func NewScheduler(args ArgsScheduler) (*blockScheduler, error) {
	if args.BlockSize < 0 {
		return nil, ErrInvalidBlockSize
	}

	states := make([]*txState, args.BlockSize)
	dependencies := make([]*txDependencies, args.BlockSize)
	blockers := make([]*txBlockers, args.BlockSize)
	for i := 0; i < args.BlockSize; i++ {
		states[i] = &txState{}
		dependencies[i] = &txDependencies{}
		blockers[i] = &txBlockers{}
	}

	s := &blockScheduler{
		blockSize:       args.BlockSize,
		maxIncarnations: args.MaxIncarnations,
		txStates:        states,
		txDependencies:  dependencies,
		txBlockers:      blockers,
	}
	if args.BlockSize == 0 {
		s.doneFlag.SetValue(true)
	}

	return s, nil
}

// Done returns true once every transaction is committed or the scheduler halted
func (s *blockScheduler) Done() bool {
	return s.doneFlag.IsSet() || s.haltFlag.IsSet()
}

// Halt stops handing out work; the first reason recorded wins
func (s *blockScheduler) Halt(reason data.FallbackReason) {
	s.fallbackReason.CompareAndSwap(int32(data.FallbackReasonNone), int32(reason))
	if !s.haltFlag.SetReturningPrevious() {
		log.Debug("scheduler halted", "reason", reason.String())
	}
}

// FallbackReason returns why the scheduler halted, or FallbackReasonNone
func (s *blockScheduler) FallbackReason() data.FallbackReason {
	return data.FallbackReason(s.fallbackReason.Load())
}

// NextTask returns the next work item for an idle worker, or nil when there is
// no immediately available work. Validation of already-executed transactions is
// preferred over first-time execution.
func (s *blockScheduler) NextTask() *data.Task {
	if s.Done() {
		return nil
	}

	if s.validationIndex.Load() < s.executionIndex.Load() {
		version := s.nextVersionToValidate()
		if version != nil {
			return &data.Task{Kind: data.TaskValidate, Version: *version}
		}
	}

	version := s.nextVersionToExecute()
	if version != nil {
		return &data.Task{Kind: data.TaskExecute, Version: *version}
	}

	return nil
}

// AddDependency suspends txIndex until blockingTxIndex finishes its current
// incarnation. It returns false if the dependency is already resolved, in which
// case the caller should retry the execution right away.
func (s *blockScheduler) AddDependency(txIndex int, blockingTxIndex int) bool {
	dependencies := s.txDependencies[blockingTxIndex]
	dependencies.Lock()
	defer dependencies.Unlock()

	blockingState := s.txStates[blockingTxIndex]
	blockingState.RLock()
	blockingStatus := blockingState.status
	blockingState.RUnlock()
	isBlockingSettled := blockingStatus == statusExecuted ||
		blockingStatus == statusValidated ||
		blockingStatus == statusCommitted
	if isBlockingSettled {
		return false
	}

	state := s.txStates[txIndex]
	state.Lock()
	state.status = statusAborting
	state.Unlock()

	if dependencies.dependencies == nil {
		dependencies.dependencies = make(map[int]struct{})
	}
	dependencies.dependencies[txIndex] = struct{}{}

	blockers := s.txBlockers[txIndex]
	blockers.Lock()
	if blockers.blockers == nil {
		blockers.blockers = make(map[int]struct{})
	}
	blockers.blockers[blockingTxIndex] = struct{}{}
	blockers.Unlock()

	return true
}

// FinishExecution transitions the transaction to Executed, wakes its dependents
// and schedules (re)validation. It may return a validation task for the caller.
func (s *blockScheduler) FinishExecution(version data.Version, wroteNewKey bool) *data.Task {
	state := s.txStates[version.TxIndex]
	state.RLock()
	status := state.status
	state.RUnlock()
	if status != statusExecuting {
		panic(fmt.Errorf("transaction %d finished execution while not executing", version.TxIndex))
	}

	// demote higher validated transactions before this one becomes validatable:
	// once it is Executed it can be validated and committed, and the commit
	// drain would carry along validations computed against the old writes
	if wroteNewKey {
		s.demoteValidatedFrom(version.TxIndex + 1)
	}

	state.Lock()
	state.status = statusExecuted
	state.Unlock()

	txDeps := s.txDependencies[version.TxIndex]
	txDeps.Lock()
	dependencies := txDeps.dependencies
	txDeps.dependencies = nil
	txDeps.Unlock()

	s.resumeDependencies(version.TxIndex, dependencies)

	if s.validationIndex.Load() > int64(version.TxIndex) {
		if wroteNewKey {
			s.decreaseValidationIndex(version.TxIndex)
		} else {
			return &data.Task{Kind: data.TaskValidate, Version: version}
		}
	}

	return nil
}

// TryValidationAbort marks the transaction as aborting if the given incarnation
// is still current; only one concurrent validator wins the abort.
func (s *blockScheduler) TryValidationAbort(version data.Version) bool {
	state := s.txStates[version.TxIndex]
	state.Lock()
	defer state.Unlock()

	isAbortable := state.incarnation == version.Incarnation &&
		(state.status == statusExecuted || state.status == statusValidated)
	if isAbortable {
		state.status = statusAborting
		return true
	}

	return false
}

// ValidationEpoch returns the transaction's current validation epoch. Callers
// snapshot it before replaying the read set and hand it back to MarkValidated.
func (s *blockScheduler) ValidationEpoch(txIndex int) uint64 {
	state := s.txStates[txIndex]
	state.RLock()
	defer state.RUnlock()

	return state.validationEpoch
}

// MarkValidated records a successful validation of the given incarnation and
// returns the indices newly committed by the ascending drain, if any. The
// result is dropped when the epoch moved since the validation started.
func (s *blockScheduler) MarkValidated(version data.Version, epoch uint64) []int {
	state := s.txStates[version.TxIndex]
	state.Lock()
	isCurrent := state.incarnation == version.Incarnation &&
		state.status == statusExecuted &&
		state.validationEpoch == epoch
	if !isCurrent {
		state.Unlock()
		return nil
	}
	state.status = statusValidated
	state.Unlock()

	return s.drainCommitted()
}

// FinishValidation finalizes a validation task. On abort it bumps the
// incarnation, schedules re-validation of higher transactions and may return
// the re-execution task to the caller.
func (s *blockScheduler) FinishValidation(txIndex int, aborted bool) *data.Task {
	if !aborted {
		return nil
	}

	s.setReadyWithNextIncarnation(txIndex)
	s.decreaseValidationIndex(txIndex + 1)

	if s.executionIndex.Load() > int64(txIndex) {
		version := s.tryIncarnation(txIndex)
		if version != nil {
			return &data.Task{Kind: data.TaskExecute, Version: *version}
		}
	}

	return nil
}

// DeferValidation re-schedules a validation that hit an in-flight producer
func (s *blockScheduler) DeferValidation(txIndex int) {
	s.decreaseValidationIndex(txIndex)
}

// IsTxCommitted returns true if the transaction reached the terminal state.
// Integrators embedding the scheduler can poll it to stream out results of
// already-committed transactions while higher ones are still running.
func (s *blockScheduler) IsTxCommitted(txIndex int) bool {
	state := s.txStates[txIndex]
	state.RLock()
	defer state.RUnlock()

	return state.status == statusCommitted
}

func (s *blockScheduler) resumeDependencies(blockingTxIndex int, dependencies map[int]struct{}) {
	if len(dependencies) == 0 {
		return
	}

	minResumedIndex := -1
	for dependentIndex := range dependencies {
		blockers := s.txBlockers[dependentIndex]
		blockers.Lock()
		delete(blockers.blockers, blockingTxIndex)
		canResume := len(blockers.blockers) == 0
		blockers.Unlock()

		if !canResume {
			continue
		}

		s.resumeSuspended(dependentIndex)
		if minResumedIndex == -1 || dependentIndex < minResumedIndex {
			minResumedIndex = dependentIndex
		}
	}

	if minResumedIndex != -1 {
		s.decreaseExecutionIndex(minResumedIndex)
	}
}

// resumeSuspended puts a dependency-suspended transaction back to Ready with
// the same incarnation: suspension is not an abort, nothing was recorded.
func (s *blockScheduler) resumeSuspended(txIndex int) {
	state := s.txStates[txIndex]
	state.Lock()
	defer state.Unlock()

	if state.status == statusAborting {
		state.status = statusReady
	}
}

func (s *blockScheduler) setReadyWithNextIncarnation(txIndex int) {
	state := s.txStates[txIndex]
	state.Lock()
	state.incarnation++
	state.status = statusReady
	incarnation := state.incarnation
	state.Unlock()

	if s.maxIncarnations > 0 && incarnation > s.maxIncarnations {
		log.Debug("transaction exceeded the incarnations cap",
			"txIndex", txIndex, "incarnation", incarnation, "cap", s.maxIncarnations)
		s.Halt(data.FallbackReasonTooManyRetries)
	}
}

func (s *blockScheduler) nextVersionToValidate() *data.Version {
	if s.validationIndex.Load() >= int64(s.blockSize) {
		return nil
	}

	validationIndex := s.validationIndex.Add(1) - 1
	if validationIndex >= int64(s.blockSize) {
		return nil
	}

	state := s.txStates[validationIndex]
	state.RLock()
	status, incarnation := state.status, state.incarnation
	state.RUnlock()

	if status == statusExecuted || status == statusValidated {
		return &data.Version{TxIndex: int(validationIndex), Incarnation: incarnation}
	}

	return nil
}

func (s *blockScheduler) nextVersionToExecute() *data.Version {
	if s.executionIndex.Load() >= int64(s.blockSize) {
		return nil
	}

	executionIndex := s.executionIndex.Add(1) - 1
	if executionIndex >= int64(s.blockSize) {
		return nil
	}

	return s.tryIncarnation(int(executionIndex))
}

func (s *blockScheduler) tryIncarnation(txIndex int) *data.Version {
	if txIndex >= s.blockSize {
		return nil
	}

	state := s.txStates[txIndex]
	state.Lock()
	defer state.Unlock()

	if state.status != statusReady {
		return nil
	}
	state.status = statusExecuting

	return &data.Version{TxIndex: txIndex, Incarnation: state.incarnation}
}

// drainCommitted advances the commit pointer over contiguous validated
// transactions. Committing is safe exactly then: every lower transaction is
// final, so the validated read set can no longer be invalidated.
func (s *blockScheduler) drainCommitted() []int {
	s.commitMut.Lock()
	defer s.commitMut.Unlock()

	var committed []int
	for s.commitIndex < s.blockSize {
		state := s.txStates[s.commitIndex]
		state.Lock()
		if state.status != statusValidated {
			state.Unlock()
			break
		}
		state.status = statusCommitted
		state.Unlock()

		committed = append(committed, s.commitIndex)
		s.commitIndex++
	}

	if s.commitIndex == s.blockSize {
		s.doneFlag.SetValue(true)
	}

	return committed
}

// decreaseValidationIndex schedules re-validation from target upwards. Already
// validated (but uncommitted) transactions above the target are demoted and
// their epochs bumped, so stale in-flight validation results get dropped.
func (s *blockScheduler) decreaseValidationIndex(target int) {
	s.demoteValidatedFrom(target)

	for {
		current := s.validationIndex.Load()
		if current <= int64(target) {
			return
		}
		if s.validationIndex.CompareAndSwap(current, int64(target)) {
			return
		}
	}
}

func (s *blockScheduler) demoteValidatedFrom(target int) {
	s.commitMut.Lock()
	defer s.commitMut.Unlock()

	start := target
	if start < s.commitIndex {
		start = s.commitIndex
	}
	for i := start; i < s.blockSize; i++ {
		state := s.txStates[i]
		state.Lock()
		state.validationEpoch++
		if state.status == statusValidated {
			state.status = statusExecuted
		}
		state.Unlock()
	}
}

func (s *blockScheduler) decreaseExecutionIndex(target int) {
	for {
		current := s.executionIndex.Load()
		if current <= int64(target) {
			return
		}
		if s.executionIndex.CompareAndSwap(current, int64(target)) {
			return
		}
	}
}

// IsInterfaceNil returns true if there is no value under the interface
func (s *blockScheduler) IsInterfaceNil() bool {
	return s == nil
}
