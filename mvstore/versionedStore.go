package mvstore

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/maps/treemap"
	cmap "github.com/orcaman/concurrent-map"
	logger "github.com/multiversx/mx-chain-logger-go"
	"golang.org/x/exp/slices"

	"github.com/multiversx/mx-chain-parallel-executor-go/aggregator"
	"github.com/multiversx/mx-chain-parallel-executor-go/data"
)

var log = logger.GetOrCreate("mvstore")

type entryKind int

const (
	entryConcrete entryKind = iota
	entryTombstone
	entryEstimate
	entryDelta
)

// versionEntry is the write recorded by one transaction index on one key
type versionEntry[V any] struct {
	kind        entryKind
	incarnation uint32
	value       V
	delta       aggregator.Delta

	// set at commit time, when the delta is resolved into a concrete value
	materialized    uint64
	hasMaterialized bool
}

// versionChain holds the per-transaction-index entries of one key, ordered by index
type versionChain[K data.Key, V any] struct {
	mut     sync.RWMutex
	key     K
	entries *treemap.Map
}

func newVersionChain[K data.Key, V any](key K) *versionChain[K, V] {
	return &versionChain[K, V]{
		key:     key,
		entries: treemap.NewWithIntComparator(),
	}
}

// VersionedStore is a concurrent multi-version map from logical key to ordered
// per-transaction-index entries. Speculative reads resolve to the nearest entry
// below the reader's index and record the chain of entries they touched, so the
// same walk can be replayed at validation time.
type VersionedStore[K data.Key, V any] struct {
	chains        cmap.ConcurrentMap
	lastWriteSets []atomic.Pointer[[]K]
	lastReadSets  []atomic.Pointer[data.ReadSet[K]]
	blockSize     int
}

// NewVersionedStore creates a versioned store sized for a block
func NewVersionedStore[K data.Key, V any](blockSize int) (*VersionedStore[K, V], error) {
	if blockSize < 0 {
		return nil, ErrInvalidBlockSize
	}

	return &VersionedStore[K, V]{
		chains:        cmap.New(),
		lastWriteSets: make([]atomic.Pointer[[]K], blockSize),
		lastReadSets:  make([]atomic.Pointer[data.ReadSet[K]], blockSize),
		blockSize:     blockSize,
	}, nil
}

// Record applies the write and delta sets produced by one incarnation, removing
// keys the previous incarnation wrote but this one did not, and stores the read
// set for later validation. It returns true if the incarnation wrote at least
// one key its predecessor did not touch.
func (store *VersionedStore[K, V]) Record(
	version data.Version,
	readSet data.ReadSet[K],
	writes []data.KeyValue[K, V],
	deltas []data.KeyDelta[K],
) bool {
	newKeys := make([]K, 0, len(writes)+len(deltas))
	seenKeys := make(map[K]struct{}, len(writes)+len(deltas))

	for _, write := range writes {
		kind := entryConcrete
		if write.Deleted {
			kind = entryTombstone
		}
		store.writeEntry(write.Key, version, &versionEntry[V]{
			kind:        kind,
			incarnation: version.Incarnation,
			value:       write.Value,
		})
		if _, found := seenKeys[write.Key]; !found {
			seenKeys[write.Key] = struct{}{}
			newKeys = append(newKeys, write.Key)
		}
	}
	for _, delta := range deltas {
		store.writeEntry(delta.Key, version, &versionEntry[V]{
			kind:        entryDelta,
			incarnation: version.Incarnation,
			delta:       delta.Delta,
		})
		if _, found := seenKeys[delta.Key]; !found {
			seenKeys[delta.Key] = struct{}{}
			newKeys = append(newKeys, delta.Key)
		}
	}

	wroteNewKey := false
	previousKeys := store.lastWriteSets[version.TxIndex].Load()
	if previousKeys == nil {
		wroteNewKey = len(newKeys) > 0
	} else {
		previousSet := make(map[K]struct{}, len(*previousKeys))
		for _, key := range *previousKeys {
			previousSet[key] = struct{}{}
		}
		for _, key := range newKeys {
			if _, found := previousSet[key]; !found {
				wroteNewKey = true
				break
			}
		}
		for _, key := range *previousKeys {
			if _, found := seenKeys[key]; !found {
				store.Delete(key, version.TxIndex)
			}
		}
	}

	store.lastWriteSets[version.TxIndex].Store(&newKeys)
	store.lastReadSets[version.TxIndex].Store(&readSet)

	return wroteNewKey
}

// Read resolves a key speculatively at the given reader index. The scan walks
// downward from readerIndex-1, accumulating delta entries until it reaches a
// concrete value, a deletion, an estimate or the storage base. Every entry
// touched contributes a descriptor, so validation can replay the walk exactly.
func (store *VersionedStore[K, V]) Read(key K, readerIndex int) ReadResult[V] {
	result := ReadResult[V]{BlockedOnTxIndex: -1}
	result.Descriptors = make([]data.VersionDescriptor, 0, 1)

	chain, found := store.getChain(key)
	if found {
		chain.mut.RLock()
		defer chain.mut.RUnlock()

		scanIndex := readerIndex - 1
		for {
			foundKey, foundValue := chain.entries.Floor(scanIndex)
			if foundKey == nil {
				break
			}

			entryIndex := foundKey.(int)
			entry := foundValue.(*versionEntry[V])
			descriptor := data.VersionDescriptor{
				Kind:    data.ReadKindVersioned,
				Version: data.Version{TxIndex: entryIndex, Incarnation: entry.incarnation},
			}

			switch entry.kind {
			case entryEstimate:
				result.Status = ReadStatusBlocked
				result.BlockedOnTxIndex = entryIndex
				return result
			case entryDelta:
				result.Descriptors = append(result.Descriptors, descriptor)
				if !result.HasDelta {
					result.HasDelta = true
					result.Delta = entry.delta
					scanIndex = entryIndex - 1
					continue
				}

				merged, err := entry.delta.Merge(result.Delta)
				if err != nil {
					result.Status = ReadStatusError
					result.Err = err
					return result
				}
				result.Delta = merged
				scanIndex = entryIndex - 1
				continue
			case entryTombstone:
				result.Descriptors = append(result.Descriptors, descriptor)
				result.Status = ReadStatusResolved
				result.Deleted = true
				return result
			default:
				result.Descriptors = append(result.Descriptors, descriptor)
				result.Status = ReadStatusResolved
				result.Value = entry.value
				return result
			}
		}
	}

	result.Descriptors = append(result.Descriptors, data.VersionDescriptor{Kind: data.ReadKindStorage})
	if result.HasDelta {
		result.Status = ReadStatusBaseWithDeltas
	} else {
		result.Status = ReadStatusNotFound
	}

	return result
}

// MarkEstimates flips the latest incarnation's entries to estimate placeholders,
// so concurrent readers block on the producer instead of reading stale data
func (store *VersionedStore[K, V]) MarkEstimates(txIndex int) {
	writtenKeys := store.lastWriteSets[txIndex].Load()
	if writtenKeys == nil {
		return
	}

	for _, key := range *writtenKeys {
		chain, found := store.getChain(key)
		if !found {
			continue
		}

		chain.mut.Lock()
		raw, exists := chain.entries.Get(txIndex)
		if exists {
			raw.(*versionEntry[V]).kind = entryEstimate
		}
		chain.mut.Unlock()
	}
}

// Delete removes the entry written by the given transaction index on the key
func (store *VersionedStore[K, V]) Delete(key K, txIndex int) {
	chain, found := store.getChain(key)
	if !found {
		return
	}

	chain.mut.Lock()
	chain.entries.Remove(txIndex)
	chain.mut.Unlock()
}

// PurgeWrites removes every entry recorded by the given transaction index,
// used when a committed SkipRest turns the transaction into a no-op
func (store *VersionedStore[K, V]) PurgeWrites(txIndex int) {
	writtenKeys := store.lastWriteSets[txIndex].Load()
	if writtenKeys == nil {
		return
	}

	for _, key := range *writtenKeys {
		store.Delete(key, txIndex)
	}

	emptyKeys := make([]K, 0)
	store.lastWriteSets[txIndex].Store(&emptyKeys)
}

// ValidateReadSet replays every read recorded by the transaction's last
// incarnation and compares the resolution chains. Reads that failed during
// execution are replayed the same way: a reproducible failure keeps its
// recorded chain and validates, a changed chain does not. It returns whether
// the read set still holds and whether the check hit an in-flight producer
// (in which case validation must be deferred, not failed).
func (store *VersionedStore[K, V]) ValidateReadSet(txIndex int) (bool, bool) {
	readSet := store.lastReadSets[txIndex].Load()
	if readSet == nil {
		return true, false
	}

	for _, keyRead := range *readSet {
		result := store.Read(keyRead.Key, txIndex)
		if result.Status == ReadStatusBlocked {
			return false, true
		}
		if !descriptorsMatch(keyRead.Descriptors, result.Descriptors) {
			return false, false
		}
	}

	return true, false
}

// MaterializeDeltas resolves the delta entries of a committing transaction into
// concrete values. All lower transactions are committed at this point, so the
// base below each delta is final: either a concrete in-block value, a lower
// materialized delta, or the caller-supplied storage base (zero when absent).
// A bound violation here is terminal for the transaction.
func (store *VersionedStore[K, V]) MaterializeDeltas(
	txIndex int,
	toUint64 func(value V) (uint64, error),
	storageBase func(key K) (uint64, bool, error),
) ([]data.AggregatorValue[K], error) {
	writtenKeys := store.lastWriteSets[txIndex].Load()
	if writtenKeys == nil {
		return nil, nil
	}

	var materialized []data.AggregatorValue[K]
	for _, key := range *writtenKeys {
		chain, found := store.getChain(key)
		if !found {
			continue
		}

		chain.mut.Lock()
		raw, exists := chain.entries.Get(txIndex)
		if !exists || raw.(*versionEntry[V]).kind != entryDelta {
			chain.mut.Unlock()
			continue
		}
		entry := raw.(*versionEntry[V])

		base, err := store.resolveCommittedBase(chain, key, txIndex, toUint64, storageBase)
		if err != nil {
			chain.mut.Unlock()
			return nil, err
		}

		value, err := entry.delta.Apply(base)
		if err != nil {
			chain.mut.Unlock()
			return nil, fmt.Errorf("%w for key %s at index %d", err, key.String(), txIndex)
		}

		entry.materialized = value
		entry.hasMaterialized = true
		chain.mut.Unlock()

		materialized = append(materialized, data.AggregatorValue[K]{Key: key, Value: value})
	}

	return materialized, nil
}

// resolveCommittedBase must be called with the chain lock held
func (store *VersionedStore[K, V]) resolveCommittedBase(
	chain *versionChain[K, V],
	key K,
	txIndex int,
	toUint64 func(value V) (uint64, error),
	storageBase func(key K) (uint64, bool, error),
) (uint64, error) {
	scanIndex := txIndex - 1
	for {
		foundKey, foundValue := chain.entries.Floor(scanIndex)
		if foundKey == nil {
			break
		}

		entryIndex := foundKey.(int)
		entry := foundValue.(*versionEntry[V])
		switch entry.kind {
		case entryConcrete:
			return toUint64(entry.value)
		case entryTombstone:
			return 0, fmt.Errorf("%w: key %s at index %d", ErrDeltaAppliedOnDeletedValue, key.String(), txIndex)
		case entryDelta:
			if !entry.hasMaterialized {
				return 0, fmt.Errorf("%w: key %s at index %d", ErrUnresolvedBaseValue, key.String(), entryIndex)
			}
			return entry.materialized, nil
		default:
			return 0, fmt.Errorf("%w: key %s at index %d", ErrUnresolvedBaseValue, key.String(), entryIndex)
		}
	}

	base, found, err := storageBase(key)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	return base, nil
}

// Snapshot returns the final committed key-value pairs, in deterministic key order.
// Deleted keys are omitted; committed delta entries expose their materialized value.
// Integrators call it after the block fully commits to flush the block's effects
// into their own storage.
func (store *VersionedStore[K, V]) Snapshot(fromUint64 func(value uint64) V) []data.KeyValue[K, V] {
	snapshot := make([]data.KeyValue[K, V], 0, store.chains.Count())

	for item := range store.chains.IterBuffered() {
		chain := item.Val.(*versionChain[K, V])

		chain.mut.RLock()
		pair, found := store.resolveTopValue(chain, fromUint64)
		chain.mut.RUnlock()

		if found {
			snapshot = append(snapshot, pair)
		}
	}

	slices.SortFunc(snapshot, func(a, b data.KeyValue[K, V]) int {
		switch {
		case a.Key.String() < b.Key.String():
			return -1
		case a.Key.String() > b.Key.String():
			return 1
		default:
			return 0
		}
	})

	return snapshot
}

// resolveTopValue must be called with the chain lock held
func (store *VersionedStore[K, V]) resolveTopValue(
	chain *versionChain[K, V],
	fromUint64 func(value uint64) V,
) (data.KeyValue[K, V], bool) {
	scanIndex := store.blockSize - 1
	for {
		foundKey, foundValue := chain.entries.Floor(scanIndex)
		if foundKey == nil {
			return data.KeyValue[K, V]{}, false
		}

		entryIndex := foundKey.(int)
		entry := foundValue.(*versionEntry[V])
		switch entry.kind {
		case entryConcrete:
			return data.KeyValue[K, V]{Key: chain.key, Value: entry.value}, true
		case entryTombstone:
			return data.KeyValue[K, V]{}, false
		case entryDelta:
			if entry.hasMaterialized {
				return data.KeyValue[K, V]{Key: chain.key, Value: fromUint64(entry.materialized)}, true
			}

			log.Warn("snapshot over an unmaterialized delta entry", "key", chain.key.String(), "index", entryIndex)
			scanIndex = entryIndex - 1
		default:
			log.Warn("snapshot over an estimate entry", "key", chain.key.String(), "index", entryIndex)
			scanIndex = entryIndex - 1
		}
	}
}

func (store *VersionedStore[K, V]) writeEntry(key K, version data.Version, entry *versionEntry[V]) {
	chain := store.getOrCreateChain(key)

	chain.mut.Lock()
	defer chain.mut.Unlock()

	raw, exists := chain.entries.Get(version.TxIndex)
	if exists {
		existing := raw.(*versionEntry[V])
		if existing.incarnation > version.Incarnation {
			panic(fmt.Errorf("entry for key %s at index %d has a higher incarnation than %d",
				key.String(), version.TxIndex, version.Incarnation))
		}
	}

	chain.entries.Put(version.TxIndex, entry)
}

func (store *VersionedStore[K, V]) getChain(key K) (*versionChain[K, V], bool) {
	raw, found := store.chains.Get(key.String())
	if !found {
		return nil, false
	}

	return raw.(*versionChain[K, V]), true
}

func (store *VersionedStore[K, V]) getOrCreateChain(key K) *versionChain[K, V] {
	identifier := key.String()
	raw, found := store.chains.Get(identifier)
	if found {
		return raw.(*versionChain[K, V])
	}

	chain := newVersionChain[K, V](key)
	inserted := store.chains.SetIfAbsent(identifier, chain)
	if inserted {
		return chain
	}

	raw, _ = store.chains.Get(identifier)
	return raw.(*versionChain[K, V])
}

func descriptorsMatch(recorded []data.VersionDescriptor, current []data.VersionDescriptor) bool {
	if len(recorded) != len(current) {
		return false
	}
	for i := range recorded {
		if !recorded[i].SameAs(current[i]) {
			return false
		}
	}

	return true
}

// IsInterfaceNil returns true if there is no value under the interface
func (store *VersionedStore[K, V]) IsInterfaceNil() bool {
	return store == nil
}
