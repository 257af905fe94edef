package executor

import "errors"

// ErrNilExecutorTask signals that a nil executor task has been provided
var ErrNilExecutorTask = errors.New("nil executor task")

// ErrNilStorageView signals that a nil storage view has been provided
var ErrNilStorageView = errors.New("nil storage view")

// ErrNilAggregatorCodec signals that a nil aggregator codec has been provided
var ErrNilAggregatorCodec = errors.New("nil aggregator codec")

// ErrInvalidBlockSize signals that an invalid block size has been provided
var ErrInvalidBlockSize = errors.New("invalid block size")

// ErrInvalidNumWorkers signals that an invalid number of workers has been provided
var ErrInvalidNumWorkers = errors.New("invalid number of workers")

// ErrNilExecutionResult signals that the task returned a nil execution result
var ErrNilExecutionResult = errors.New("nil execution result")

// ErrNilTransactionOutput signals that a successful execution carries no output
var ErrNilTransactionOutput = errors.New("nil transaction output")

// ErrBlockedOnDependency signals that a speculative read hit a value still being
// produced by a lower transaction; the execution attempt must be abandoned
var ErrBlockedOnDependency = errors.New("read blocked on an in-flight dependency")

// ErrOverlappingWriteAndDelta signals that a transaction output carries both a
// write and a delta on the same key; the two update classes are mutually
// exclusive per key within one transaction
var ErrOverlappingWriteAndDelta = errors.New("transaction output has a write and a delta on the same key")
