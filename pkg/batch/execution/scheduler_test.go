package execution_test

import (
	"errors"
	"testing"

	"github.com/arthur-debert/batchkit/pkg/batch/core"
	"github.com/arthur-debert/batchkit/pkg/batch/execution"
)

func op(id string, deps ...string) core.Operation {
	o := core.Operation{TargetID: core.TargetID(id)}
	for _, d := range deps {
		o.DependsOn = append(o.DependsOn, core.TargetID(d))
	}
	return o
}

func order(ops []core.Operation) map[core.TargetID]int {
	out := make(map[core.TargetID]int, len(ops))
	for i, o := range ops {
		out[o.TargetID] = i
	}
	return out
}

func TestScheduleAcyclic(t *testing.T) {
	t.Run("dependencies come first", func(t *testing.T) {
		ops := []core.Operation{
			op("c", "a", "b"),
			op("b", "a"),
			op("a"),
		}
		ordered, err := execution.Schedule(ops)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ordered) != 3 {
			t.Fatalf("expected a permutation of 3 operations, got %d", len(ordered))
		}
		pos := order(ordered)
		for _, o := range ops {
			for _, dep := range o.DependsOn {
				if pos[dep] > pos[o.TargetID] {
					t.Errorf("%s scheduled before its dependency %s", o.TargetID, dep)
				}
			}
		}
	})

	t.Run("FIFO tie-break keeps input order among eligible operations", func(t *testing.T) {
		ops := []core.Operation{op("x"), op("y"), op("z")}
		ordered, err := execution.Schedule(ops)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, want := range []core.TargetID{"x", "y", "z"} {
			if ordered[i].TargetID != want {
				t.Errorf("position %d: expected %s, got %s", i, want, ordered[i].TargetID)
			}
		}
	})

	t.Run("dependency on a target outside the batch is satisfied", func(t *testing.T) {
		ops := []core.Operation{op("a", "not-in-batch")}
		ordered, err := execution.Schedule(ops)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ordered) != 1 {
			t.Errorf("expected 1 operation, got %d", len(ordered))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		ordered, err := execution.Schedule(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(ordered) != 0 {
			t.Errorf("expected empty order, got %v", ordered)
		}
	})
}

func TestScheduleCycle(t *testing.T) {
	t.Run("two-node cycle fails with no partial order", func(t *testing.T) {
		ops := []core.Operation{
			op("A", "B"),
			op("B", "A"),
		}
		ordered, err := execution.Schedule(ops)
		if err == nil {
			t.Fatal("expected CircularDependency failure")
		}
		var cdErr *core.CircularDependencyError
		if !errors.As(err, &cdErr) {
			t.Fatalf("expected *core.CircularDependencyError, got %T", err)
		}
		if len(cdErr.Remaining) != 2 {
			t.Errorf("expected both targets reported, got %v", cdErr.Remaining)
		}
		if ordered != nil {
			t.Errorf("expected no partial order, got %v", ordered)
		}
	})

	t.Run("cycle behind a valid prefix", func(t *testing.T) {
		ops := []core.Operation{
			op("a"),
			op("b", "c"),
			op("c", "b"),
		}
		_, err := execution.Schedule(ops)
		var cdErr *core.CircularDependencyError
		if !errors.As(err, &cdErr) {
			t.Fatalf("expected *core.CircularDependencyError, got %v", err)
		}
		if len(cdErr.Remaining) != 2 {
			t.Errorf("expected the two cyclic targets, got %v", cdErr.Remaining)
		}
	})
}
