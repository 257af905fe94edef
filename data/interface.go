package data

// Key constrains the logical key type a block of transactions operates on.
// String is used for bucketing inside concurrent maps and for logging.
// IsModulePath reports whether the key addresses published code rather than
// ordinary data; a key observed both ways across a block forces the engine
// to request a sequential fallback.
type Key interface {
	comparable
	String() string
	IsModulePath() bool
}
