package data

// Version identifies one execution attempt (incarnation) of a transaction within a block
type Version struct {
	TxIndex     int
	Incarnation uint32
}

// TaskKind defines the type of work item handed to a worker
type TaskKind int

const (
	// TaskExecute signals that the transaction must be (re)executed
	TaskExecute TaskKind = iota
	// TaskValidate signals that the transaction's recorded read set must be re-checked
	TaskValidate
)

// Task is a unit of work handed out by the scheduler
type Task struct {
	Kind    TaskKind
	Version Version
}
