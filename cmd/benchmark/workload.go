package main

import (
	"fmt"
	"math"

	"github.com/multiversx/mx-chain-parallel-executor-go/aggregator"
	"github.com/multiversx/mx-chain-parallel-executor-go/data"
	"github.com/multiversx/mx-chain-parallel-executor-go/executor"
)

const initialBalance = uint64(1_000_000)

// benchKey is the key type of the synthetic workload
type benchKey struct {
	identifier string
}

// String returns the key identifier
func (key benchKey) String() string {
	return key.identifier
}

// IsModulePath returns false: the workload only touches data paths
func (key benchKey) IsModulePath() bool {
	return false
}

func accountKey(index int) benchKey {
	return benchKey{identifier: fmt.Sprintf("account:%d", index)}
}

var transfersCounterKey = benchKey{identifier: "counter:transfers"}

// benchOutput is the transaction output of the synthetic workload
type benchOutput struct {
	writes []data.KeyValue[benchKey, uint64]
	deltas []data.KeyDelta[benchKey]
}

// GetWrites returns the produced writes
func (output *benchOutput) GetWrites() []data.KeyValue[benchKey, uint64] {
	return output.writes
}

// GetDeltas returns the produced deltas
func (output *benchOutput) GetDeltas() []data.KeyDelta[benchKey] {
	return output.deltas
}

// IsInterfaceNil returns true if there is no value under the interface
func (output *benchOutput) IsInterfaceNil() bool {
	return output == nil
}

// transferTask moves funds between deterministic pseudo-random account pairs
// and bumps a shared transfer counter through an aggregator delta
type transferTask struct {
	numAccounts int
}

// Execute runs one synthetic transfer
func (task *transferTask) Execute(view executor.ReadView[benchKey, uint64], txIndex int) *executor.ExecutionResult[benchKey, uint64] {
	senderIndex := (txIndex * 7) % task.numAccounts
	receiverIndex := (txIndex*13 + 5) % task.numAccounts
	amount := uint64(txIndex%10 + 1)

	sender := accountKey(senderIndex)
	receiver := accountKey(receiverIndex)

	senderBalance, _, err := view.Read(sender)
	if err != nil {
		return executor.NewAbortResult[benchKey, uint64](err)
	}

	output := &benchOutput{
		deltas: []data.KeyDelta[benchKey]{
			{Key: transfersCounterKey, Delta: aggregator.NewAdditionDelta(1, math.MaxUint64)},
		},
	}

	if senderIndex == receiverIndex || senderBalance < amount {
		return executor.NewSuccessResult[benchKey, uint64](output)
	}

	receiverBalance, _, err := view.Read(receiver)
	if err != nil {
		return executor.NewAbortResult[benchKey, uint64](err)
	}

	output.writes = []data.KeyValue[benchKey, uint64]{
		{Key: sender, Value: senderBalance - amount},
		{Key: receiver, Value: receiverBalance + amount},
	}

	return executor.NewSuccessResult[benchKey, uint64](output)
}

// SkipOutput returns the empty output
func (task *transferTask) SkipOutput() executor.TransactionOutput[benchKey, uint64] {
	return &benchOutput{}
}

// IsInterfaceNil returns true if there is no value under the interface
func (task *transferTask) IsInterfaceNil() bool {
	return task == nil
}

// benchStorageView serves the initial account balances
type benchStorageView struct {
	numAccounts int
}

// GetBaseValue returns the initial balance for account keys
func (view *benchStorageView) GetBaseValue(key benchKey) (uint64, bool, error) {
	if key == transfersCounterKey {
		return 0, false, nil
	}

	return initialBalance, true, nil
}

// IsInterfaceNil returns true if there is no value under the interface
func (view *benchStorageView) IsInterfaceNil() bool {
	return view == nil
}

// uint64Codec is the identity aggregator codec
type uint64Codec struct {
}

// ToUint64 -
func (codec *uint64Codec) ToUint64(value uint64) (uint64, error) {
	return value, nil
}

// FromUint64 -
func (codec *uint64Codec) FromUint64(value uint64) uint64 {
	return value
}

// IsInterfaceNil returns true if there is no value under the interface
func (codec *uint64Codec) IsInterfaceNil() bool {
	return codec == nil
}
