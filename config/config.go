package config

// Config holds the engine configuration
type Config struct {
	Execution ExecutionConfig
}

// ExecutionConfig holds the tuning knobs of the parallel block executor
type ExecutionConfig struct {
	// NumWorkers is the worker pool size; 0 means one worker per CPU
	NumWorkers int
	// MaxIncarnations caps re-executions per transaction before the engine
	// requests a sequential fallback; 0 disables the cap
	MaxIncarnations uint32
	// StorageCacheCapacity sizes the base-value cache in front of the caller's storage view
	StorageCacheCapacity int
}
