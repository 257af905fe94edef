package data

// ReadKind describes how one step of a speculative read resolved
type ReadKind int

const (
	// ReadKindVersioned means the step resolved to an in-block entry (concrete value, deletion or delta)
	ReadKindVersioned ReadKind = iota
	// ReadKindStorage means the scan ran below the block and the value comes from the caller-supplied storage view
	ReadKindStorage
)

// VersionDescriptor records one entry touched while resolving a speculative read.
// A read that crosses delta entries touches several of them before reaching a
// concrete value or the storage base; validation re-walks the same chain and
// compares descriptor by descriptor.
type VersionDescriptor struct {
	Kind    ReadKind
	Version Version
}

// SameAs returns true if the two descriptors resolved identically
func (descriptor VersionDescriptor) SameAs(other VersionDescriptor) bool {
	return descriptor.Kind == other.Kind && descriptor.Version == other.Version
}

// KeyRead is the recorded outcome of one read operation over one key
type KeyRead[K Key] struct {
	Key         K
	Descriptors []VersionDescriptor
}

// ReadSet holds all reads performed by one incarnation of a transaction
type ReadSet[K Key] []KeyRead[K]
