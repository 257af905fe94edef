package executor

import (
	"github.com/multiversx/mx-chain-parallel-executor-go/data"
	"github.com/multiversx/mx-chain-parallel-executor-go/mvstore"
)

// speculativeReadView is the per-incarnation view handed to the executor task.
// It resolves reads through the versioned store, records the read set for
// validation, tracks module-path reads for hazard detection, and remembers the
// first in-flight producer that blocked a read.
type speculativeReadView[K data.Key, V any] struct {
	store            *mvstore.VersionedStore[K, V]
	storageView      StorageView[K, V]
	codec            AggregatorCodec[V]
	txIndex          int
	readSet          data.ReadSet[K]
	moduleReads      []K
	blockedOnTxIndex int
}

func newSpeculativeReadView[K data.Key, V any](
	store *mvstore.VersionedStore[K, V],
	storageView StorageView[K, V],
	codec AggregatorCodec[V],
	txIndex int,
) *speculativeReadView[K, V] {
	return &speculativeReadView[K, V]{
		store:            store,
		storageView:      storageView,
		codec:            codec,
		txIndex:          txIndex,
		readSet:          make(data.ReadSet[K], 0),
		blockedOnTxIndex: -1,
	}
}

// Read resolves a key at this transaction's index
func (view *speculativeReadView[K, V]) Read(key K) (V, bool, error) {
	var zero V

	if key.IsModulePath() {
		view.moduleReads = append(view.moduleReads, key)
	}

	result := view.store.Read(key, view.txIndex)
	switch result.Status {
	case mvstore.ReadStatusBlocked:
		if view.blockedOnTxIndex < 0 {
			view.blockedOnTxIndex = result.BlockedOnTxIndex
		}
		return zero, false, ErrBlockedOnDependency
	case mvstore.ReadStatusError:
		// the failing resolution chain is recorded too, so validation catches a
		// committed failure whose underlying entries changed afterwards
		view.recordRead(key, result.Descriptors)
		return zero, false, result.Err
	case mvstore.ReadStatusResolved:
		view.recordRead(key, result.Descriptors)
		if result.Deleted {
			if result.HasDelta {
				return zero, false, mvstore.ErrDeltaAppliedOnDeletedValue
			}
			return zero, false, nil
		}
		if !result.HasDelta {
			return result.Value, true, nil
		}

		return view.applyDelta(result.Value, true, result)
	case mvstore.ReadStatusBaseWithDeltas:
		view.recordRead(key, result.Descriptors)
		baseValue, found, err := view.storageView.GetBaseValue(key)
		if err != nil {
			return zero, false, err
		}

		return view.applyDelta(baseValue, found, result)
	default:
		view.recordRead(key, result.Descriptors)
		baseValue, found, err := view.storageView.GetBaseValue(key)
		if err != nil {
			return zero, false, err
		}

		return baseValue, found, nil
	}
}

// applyDelta resolves the accumulated delta over a base value. A bound
// violation detected here is returned to the task: it is handled like any
// other execution failure and re-checked on re-execution.
func (view *speculativeReadView[K, V]) applyDelta(base V, baseFound bool, result mvstore.ReadResult[V]) (V, bool, error) {
	var zero V

	baseValue := uint64(0)
	if baseFound {
		converted, err := view.codec.ToUint64(base)
		if err != nil {
			return zero, false, err
		}
		baseValue = converted
	}

	value, err := result.Delta.Apply(baseValue)
	if err != nil {
		return zero, false, err
	}

	return view.codec.FromUint64(value), true, nil
}

func (view *speculativeReadView[K, V]) recordRead(key K, descriptors []data.VersionDescriptor) {
	view.readSet = append(view.readSet, data.KeyRead[K]{Key: key, Descriptors: descriptors})
}
