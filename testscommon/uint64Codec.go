package testscommon

// Uint64Codec is the identity aggregator codec for blocks whose value type is uint64
type Uint64Codec struct {
}

// ToUint64 -
func (codec *Uint64Codec) ToUint64(value uint64) (uint64, error) {
	return value, nil
}

// FromUint64 -
func (codec *Uint64Codec) FromUint64(value uint64) uint64 {
	return value
}

// IsInterfaceNil -
func (codec *Uint64Codec) IsInterfaceNil() bool {
	return codec == nil
}
