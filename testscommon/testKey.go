package testscommon

// TestKey is a simple key implementation for tests and benchmarks
type TestKey struct {
	Identifier string
	Module     bool
}

// NewTestKey creates an ordinary data key
func NewTestKey(identifier string) TestKey {
	return TestKey{Identifier: identifier}
}

// NewModuleTestKey creates a module-path key
func NewModuleTestKey(identifier string) TestKey {
	return TestKey{Identifier: identifier, Module: true}
}

// String returns the key identifier
func (key TestKey) String() string {
	return key.Identifier
}

// IsModulePath returns true for module-path keys
func (key TestKey) IsModulePath() bool {
	return key.Module
}
