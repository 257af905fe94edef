package testscommon

import (
	"github.com/multiversx/mx-chain-parallel-executor-go/data"
)

// StorageViewStub -
type StorageViewStub[K data.Key, V any] struct {
	GetBaseValueCalled func(key K) (V, bool, error)
}

// GetBaseValue -
func (stub *StorageViewStub[K, V]) GetBaseValue(key K) (V, bool, error) {
	if stub.GetBaseValueCalled != nil {
		return stub.GetBaseValueCalled(key)
	}

	var zero V
	return zero, false, nil
}

// IsInterfaceNil -
func (stub *StorageViewStub[K, V]) IsInterfaceNil() bool {
	return stub == nil
}
