package data

// FallbackReason explains why the engine gave up on speculative execution for the whole block
type FallbackReason int

const (
	// FallbackReasonNone means the block completed speculatively
	FallbackReasonNone FallbackReason = iota
	// FallbackReasonModulePathHazard means a module-path key was both written and read inside the block
	FallbackReasonModulePathHazard
	// FallbackReasonTooManyRetries means a transaction exceeded the configured incarnations cap
	FallbackReasonTooManyRetries
)

// String returns a human readable representation of the fallback reason
func (reason FallbackReason) String() string {
	switch reason {
	case FallbackReasonNone:
		return "none"
	case FallbackReasonModulePathHazard:
		return "module path hazard"
	case FallbackReasonTooManyRetries:
		return "too many retries"
	default:
		return "unknown"
	}
}
