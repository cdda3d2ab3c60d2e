package conflict

import (
	"fmt"

	"github.com/arthur-debert/batchkit/pkg/batch/core"
)

// Resolve applies a resolution strategy to one conflict and returns the
// new operation list together with a fresh conflict set. Inputs are never
// mutated; operations are deep-copied before any change, so callers can
// safely hold references to the old list.
//
// A conflictIndex that does not reference an existing conflict is a
// no-op: the inputs are returned unchanged with a nil error. Resolving
// one conflict may reveal or clear others, so callers must re-read the
// returned conflict set rather than assuming monotonic progress.
func Resolve(ops []core.Operation, conflicts []core.Conflict, conflictIndex int,
	resolution core.Resolution, manualValues map[string]interface{}) ([]core.Operation, []core.Conflict, error) {

	if conflictIndex < 0 || conflictIndex >= len(conflicts) {
		return ops, conflicts, nil
	}
	c := conflicts[conflictIndex]
	if !c.Allows(resolution) {
		return ops, conflicts, &core.ValidationError{
			Reason: fmt.Sprintf("resolution %q is not legal for a %s conflict", resolution, c.Type),
		}
	}
	for _, idx := range c.Indices {
		if idx < 0 || idx >= len(ops) {
			return ops, conflicts, nil
		}
	}

	work := core.CloneOperations(ops)
	var err error

	switch c.Type {
	case core.ConflictUser, core.ConflictField:
		work, err = resolvePair(work, c, resolution, manualValues)
	case core.ConflictCircular:
		work = resolveCycle(work, c, resolution)
	}
	if err != nil {
		return ops, conflicts, err
	}

	return work, Detect(work), nil
}

// resolvePair handles the two-operation conflict types. The conflict's
// first index is always the earlier operation.
func resolvePair(ops []core.Operation, c core.Conflict, resolution core.Resolution,
	manualValues map[string]interface{}) ([]core.Operation, error) {

	if len(c.Indices) < 2 {
		return ops, nil
	}
	first, second := c.Indices[0], c.Indices[1]

	switch resolution {
	case core.ResolutionKeepFirst:
		return removeAt(ops, second), nil

	case core.ResolutionKeepLast:
		return removeAt(ops, first), nil

	case core.ResolutionMerge:
		earlier := &ops[first]
		later := ops[second]
		if earlier.Data == nil {
			earlier.Data = make(map[string]interface{}, len(later.Data))
		}
		if c.Type == core.ConflictField {
			for _, f := range c.Fields {
				earlier.Data[f] = mergeValue(earlier.Data[f], later.Data[f], earlier.EffectiveStrategy())
			}
		} else {
			for k, v := range later.Data {
				earlier.Data[k] = mergeValue(earlier.Data[k], v, earlier.EffectiveStrategy())
			}
		}
		earlier.MergedFrom = append(earlier.MergedFrom, later.TargetID)
		return removeAt(ops, second), nil

	case core.ResolutionManual:
		if manualValues == nil {
			return ops, &core.ValidationError{
				Reason: "manual_resolve requires a field to value mapping",
			}
		}
		earlier := &ops[first]
		for _, f := range c.Fields {
			if v, ok := manualValues[f]; ok {
				earlier.Data[f] = v
			}
		}
		earlier.ManuallyResolved = true
		return removeAt(ops, second), nil
	}
	return ops, nil
}

// resolveCycle handles circular_dependency conflicts. The recorded cycle
// ends with the back-edge target, which repeats its first member; the
// last distinct index is the cycle's final operation.
func resolveCycle(ops []core.Operation, c core.Conflict, resolution core.Resolution) []core.Operation {
	if len(c.Indices) < 2 {
		return ops
	}

	switch resolution {
	case core.ResolutionRemoveDependency:
		// The edge that closes the cycle runs from the second-to-last to
		// the last recorded index.
		from := c.Indices[len(c.Indices)-2]
		to := c.Indices[len(c.Indices)-1]
		target := ops[to].TargetID
		deps := ops[from].DependsOn[:0]
		for _, dep := range ops[from].DependsOn {
			if dep != target {
				deps = append(deps, dep)
			}
		}
		ops[from].DependsOn = deps

	case core.ResolutionReorder:
		first := c.Indices[0]
		last := c.Indices[len(c.Indices)-1]
		if last == first {
			last = c.Indices[len(c.Indices)-2]
		}
		if first == last {
			return ops
		}
		moved := ops[first]
		ops = append(ops[:first], ops[first+1:]...)
		insert := last
		if first > last {
			insert = last + 1
		}
		ops = append(ops, core.Operation{})
		copy(ops[insert+1:], ops[insert:])
		ops[insert] = moved
	}
	return ops
}

// mergeValue folds the later value onto the earlier one. Deep strategy
// merges nested maps key by key; anything else is replaced outright.
func mergeValue(earlier, later interface{}, strategy core.MergeStrategy) interface{} {
	if strategy != core.MergeDeep {
		return later
	}
	em, eok := earlier.(map[string]interface{})
	lm, lok := later.(map[string]interface{})
	if !eok || !lok {
		return later
	}
	out := make(map[string]interface{}, len(em)+len(lm))
	for k, v := range em {
		out[k] = v
	}
	for k, v := range lm {
		out[k] = mergeValue(out[k], v, strategy)
	}
	return out
}

func removeAt(ops []core.Operation, i int) []core.Operation {
	return append(ops[:i], ops[i+1:]...)
}
