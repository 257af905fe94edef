package storage

import (
	"github.com/multiversx/mx-chain-core-go/core/check"
	"github.com/multiversx/mx-chain-storage-go/lrucache"

	"github.com/multiversx/mx-chain-parallel-executor-go/data"
	"github.com/multiversx/mx-chain-parallel-executor-go/executor"
)

// baseValueCacher is the cache surface used underneath, satisfied by the
// storage-go lru cache
type baseValueCacher interface {
	Get(key []byte) (interface{}, bool)
	Put(key []byte, value interface{}, sizeInBytes int) bool
}

type cachedBaseValue[V any] struct {
	value V
	found bool
}

// cachingStorageView decorates a storage view with an lru cache over base
// values. Speculative execution re-reads the same base keys once per
// incarnation; the cache keeps those hits away from the (possibly trie-backed)
// inner view. Storage is immutable for the duration of a block, so cached
// entries never go stale.
type cachingStorageView[K data.Key, V any] struct {
	inner executor.StorageView[K, V]
	cache baseValueCacher
}

// NewCachingStorageView creates a caching decorator over a storage view
func NewCachingStorageView[K data.Key, V any](
	inner executor.StorageView[K, V],
	capacity int,
) (*cachingStorageView[K, V], error) {
	if check.IfNil(inner) {
		return nil, ErrNilStorageView
	}
	if capacity < 1 {
		return nil, ErrInvalidCacheCapacity
	}

	cache, err := lrucache.NewCache(capacity)
	if err != nil {
		return nil, err
	}

	return &cachingStorageView[K, V]{
		inner: inner,
		cache: cache,
	}, nil
}

// GetBaseValue resolves a base value through the cache
func (view *cachingStorageView[K, V]) GetBaseValue(key K) (V, bool, error) {
	cacheKey := []byte(key.String())

	raw, hit := view.cache.Get(cacheKey)
	if hit {
		cached := raw.(cachedBaseValue[V])
		return cached.value, cached.found, nil
	}

	value, found, err := view.inner.GetBaseValue(key)
	if err != nil {
		var zero V
		return zero, false, err
	}

	view.cache.Put(cacheKey, cachedBaseValue[V]{value: value, found: found}, len(cacheKey))

	return value, found, nil
}

// IsInterfaceNil returns true if there is no value under the interface
func (view *cachingStorageView[K, V]) IsInterfaceNil() bool {
	return view == nil
}
