// Package execution orders and runs conflict-free batches against the
// caller's update capability.
package execution

import (
	"github.com/arthur-debert/batchkit/pkg/batch/core"
)

// Schedule produces a dependency-respecting execution order for a batch.
//
// The algorithm repeatedly scans the pending operations for one whose
// every dependency target is already completed, which is Kahn's algorithm
// with FIFO tie-breaking: among simultaneously eligible operations the
// first in current scan order wins, so the result is stable and
// deterministic. Dependencies on targets not present in the batch are
// treated as satisfied.
//
// When a full scan makes no progress while operations remain, Schedule
// fails with *core.CircularDependencyError and no partial order escapes.
// This is the authoritative cycle check that halts execution; the
// detector's earlier cycle conflicts are advisory, for display.
func Schedule(ops []core.Operation) ([]core.Operation, error) {
	present := make(map[core.TargetID]bool, len(ops))
	for _, op := range ops {
		present[op.TargetID] = true
	}

	pending := make([]core.Operation, len(ops))
	copy(pending, ops)
	ordered := make([]core.Operation, 0, len(ops))
	completed := make(map[core.TargetID]bool, len(ops))

	for len(pending) > 0 {
		progressed := false
		for i := 0; i < len(pending); i++ {
			if !eligible(pending[i], present, completed) {
				continue
			}
			op := pending[i]
			pending = append(pending[:i], pending[i+1:]...)
			ordered = append(ordered, op)
			completed[op.TargetID] = true
			progressed = true
			break
		}
		if !progressed {
			remaining := make([]core.TargetID, len(pending))
			for i, op := range pending {
				remaining[i] = op.TargetID
			}
			return nil, &core.CircularDependencyError{Remaining: remaining}
		}
	}
	return ordered, nil
}

func eligible(op core.Operation, present, completed map[core.TargetID]bool) bool {
	for _, dep := range op.DependsOn {
		if present[dep] && !completed[dep] {
			return false
		}
	}
	return true
}
