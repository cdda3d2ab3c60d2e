package core

import (
	"time"
)

// TargetID identifies the record an operation modifies. It is the unique
// key used for conflict and dependency matching within a batch.
type TargetID string

// MergeStrategy controls how a partial update is combined with existing
// record data.
type MergeStrategy string

const (
	// MergeShallow replaces top-level fields wholesale.
	MergeShallow MergeStrategy = "shallow"
	// MergeDeep merges nested maps recursively.
	MergeDeep MergeStrategy = "deep"
)

// Valid reports whether the strategy is one of the known values.
func (s MergeStrategy) Valid() bool {
	return s == MergeShallow || s == MergeDeep
}

// Operation is a proposed change to a single record.
//
// MergedFrom and ManuallyResolved are annotations set by conflict
// resolution; callers constructing operations leave them zero.
type Operation struct {
	TargetID         TargetID
	Data             map[string]interface{}
	DependsOn        []TargetID
	MergeStrategy    MergeStrategy
	MergedFrom       []TargetID
	ManuallyResolved bool
}

// EffectiveStrategy returns the operation's merge strategy, defaulting to
// shallow when unset.
func (op Operation) EffectiveStrategy() MergeStrategy {
	if op.MergeStrategy == MergeDeep {
		return MergeDeep
	}
	return MergeShallow
}

// Clone returns a deep copy of the operation. Nested maps inside Data are
// copied recursively so resolution and execution never alias caller data.
func (op Operation) Clone() Operation {
	out := op
	out.Data = cloneData(op.Data)
	if op.DependsOn != nil {
		out.DependsOn = append([]TargetID(nil), op.DependsOn...)
	}
	if op.MergedFrom != nil {
		out.MergedFrom = append([]TargetID(nil), op.MergedFrom...)
	}
	return out
}

// CloneOperations deep-copies a whole operation list.
func CloneOperations(ops []Operation) []Operation {
	out := make([]Operation, len(ops))
	for i, op := range ops {
		out[i] = op.Clone()
	}
	return out
}

func cloneData(data map[string]interface{}) map[string]interface{} {
	if data == nil {
		return nil
	}
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = cloneData(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// ConflictType categorizes an incompatibility between pending operations.
type ConflictType string

const (
	// ConflictUser marks two operations targeting the same record.
	ConflictUser ConflictType = "user_conflict"
	// ConflictField marks two operations writing different values to the
	// same field.
	ConflictField ConflictType = "field_conflict"
	// ConflictCircular marks a dependency cycle between operations.
	ConflictCircular ConflictType = "circular_dependency"
)

// Resolution names a strategy for resolving a conflict.
type Resolution string

const (
	ResolutionKeepFirst        Resolution = "keep_first"
	ResolutionKeepLast         Resolution = "keep_last"
	ResolutionMerge            Resolution = "merge"
	ResolutionManual           Resolution = "manual_resolve"
	ResolutionRemoveDependency Resolution = "remove_dependency"
	ResolutionReorder          Resolution = "reorder"
)

// ResolutionsFor returns the resolutions legal for a conflict type. The
// returned slice is freshly allocated on each call.
func ResolutionsFor(t ConflictType) []Resolution {
	switch t {
	case ConflictUser:
		return []Resolution{ResolutionKeepFirst, ResolutionKeepLast, ResolutionMerge}
	case ConflictField:
		return []Resolution{ResolutionKeepFirst, ResolutionKeepLast, ResolutionMerge, ResolutionManual}
	case ConflictCircular:
		return []Resolution{ResolutionRemoveDependency, ResolutionReorder}
	default:
		return nil
	}
}

// Conflict describes a pairwise or cyclic problem between operations.
// Indices are positions in the operation list at detection time; any
// mutation of the list invalidates them, so conflicts are always
// recomputed in full rather than patched.
type Conflict struct {
	Type        ConflictType
	Indices     []int
	Fields      []string
	Resolutions []Resolution
}

// Allows reports whether the resolution is legal for this conflict.
func (c Conflict) Allows(r Resolution) bool {
	for _, allowed := range c.Resolutions {
		if allowed == r {
			return true
		}
	}
	return false
}

// RunStatus is the lifecycle state of a batch run.
type RunStatus string

const (
	StatusIdle    RunStatus = "idle"
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusError   RunStatus = "error"
)

// OperationResult records the outcome of one executed operation.
type OperationResult struct {
	TargetID TargetID
	Success  bool
	Value    map[string]interface{}
	Err      error
	Attempts int
}

// RunResult is the state of a batch run. Results appear in execution
// order, which may differ from input order after dependency scheduling.
type RunResult struct {
	Status       RunStatus
	Progress     int
	Results      []OperationResult
	ErrorDetails error
	Duration     time.Duration
}

// ExecOptions configures a batch run.
type ExecOptions struct {
	// Transactional stops issuing further operations after the first
	// exhausted failure. It never undoes already-applied updates.
	Transactional bool
	// RetryCount is the number of retries after the initial attempt.
	RetryCount int
	// ParallelOps executes in input order, ignoring DependsOn. Execution
	// remains one operation at a time; the flag only affects ordering.
	ParallelOps bool
	// RetryBaseDelay scales the exponential backoff between attempts.
	RetryBaseDelay time.Duration
}

// DefaultRetryBaseDelay is the production backoff unit: the wait before
// retry n is 2^n * DefaultRetryBaseDelay.
const DefaultRetryBaseDelay = 500 * time.Millisecond

// DefaultExecOptions returns the standard run configuration.
func DefaultExecOptions() ExecOptions {
	return ExecOptions{
		Transactional:  true,
		RetryCount:     3,
		ParallelOps:    false,
		RetryBaseDelay: DefaultRetryBaseDelay,
	}
}
