// Package conflict detects and resolves incompatibilities between pending
// batch operations before they are handed to the executor.
package conflict

import (
	"reflect"
	"sort"

	"github.com/gammazero/toposort"

	"github.com/arthur-debert/batchkit/pkg/batch/core"
)

// Detect computes the full conflict set for an operation list. It is a
// pure function: no caching, no shared state, total over any finite list.
//
// Conflicts are returned in pass order (target identity, dependency
// cycles, field overlaps) and within a pass in scan-discovery order.
// Callers resolve conflicts by index into this list, so the ordering is
// part of the contract.
func Detect(ops []core.Operation) []core.Conflict {
	conflicts := detectTargetConflicts(ops)
	userPairs := make(map[[2]int]bool, len(conflicts))
	for _, c := range conflicts {
		if len(c.Indices) == 2 {
			userPairs[[2]int{c.Indices[0], c.Indices[1]}] = true
		}
	}
	conflicts = append(conflicts, detectCycles(ops)...)
	conflicts = append(conflicts, detectFieldConflicts(ops, userPairs)...)
	return conflicts
}

// detectTargetConflicts flags operations that address the same record.
// Only the first repeat of a target is flagged per scan; further repeats
// of an already-flagged target are left for the next recomputation.
func detectTargetConflicts(ops []core.Operation) []core.Conflict {
	var conflicts []core.Conflict
	firstIndex := make(map[core.TargetID]int, len(ops))
	flagged := make(map[core.TargetID]bool)

	for i, op := range ops {
		first, seen := firstIndex[op.TargetID]
		if !seen {
			firstIndex[op.TargetID] = i
			continue
		}
		if flagged[op.TargetID] {
			continue
		}
		flagged[op.TargetID] = true
		conflicts = append(conflicts, core.Conflict{
			Type:        core.ConflictUser,
			Indices:     []int{first, i},
			Resolutions: core.ResolutionsFor(core.ConflictUser),
		})
	}
	return conflicts
}

// dependencyGraph maps each operation index to the indices of the
// operations it depends on. A dependency on a target that appears more
// than once resolves to the target's first occurrence.
func dependencyGraph(ops []core.Operation) [][]int {
	firstIndex := make(map[core.TargetID]int, len(ops))
	for i, op := range ops {
		if _, seen := firstIndex[op.TargetID]; !seen {
			firstIndex[op.TargetID] = i
		}
	}

	adj := make([][]int, len(ops))
	for i, op := range ops {
		for _, dep := range op.DependsOn {
			if j, ok := firstIndex[dep]; ok {
				adj[i] = append(adj[i], j)
			}
		}
	}
	return adj
}

// detectCycles emits one circular_dependency conflict per back-edge in
// the dependency graph. A topological sort over the edges serves as the
// fast path: when it succeeds the graph is acyclic and the traversal is
// skipped entirely.
func detectCycles(ops []core.Operation) []core.Conflict {
	adj := dependencyGraph(ops)

	edges := make([]toposort.Edge, 0)
	for i, deps := range adj {
		for _, j := range deps {
			edges = append(edges, toposort.Edge{j, i})
		}
	}
	if len(edges) == 0 {
		return nil
	}
	if _, err := toposort.Toposort(edges); err == nil {
		return nil
	}

	return enumerateCycles(adj)
}

// enumerateCycles walks the graph with an explicit frame stack so native
// call depth stays bounded for large batches. A back-edge into the
// current traversal stack is a cycle; the recorded indices are the stack
// contents in discovery order plus the back-edge target.
func enumerateCycles(adj [][]int) []core.Conflict {
	type frame struct {
		node int
		next int
	}

	n := len(adj)
	visited := make([]bool, n)
	onStack := make([]bool, n)
	var conflicts []core.Conflict

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}

		stack := []frame{{node: start}}
		order := []int{start}
		onStack[start] = true

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.next < len(adj[top.node]) {
				nb := adj[top.node][top.next]
				top.next++

				if onStack[nb] {
					indices := make([]int, len(order), len(order)+1)
					copy(indices, order)
					indices = append(indices, nb)
					conflicts = append(conflicts, core.Conflict{
						Type:        core.ConflictCircular,
						Indices:     indices,
						Resolutions: core.ResolutionsFor(core.ConflictCircular),
					})
					continue
				}
				if !visited[nb] {
					stack = append(stack, frame{node: nb})
					order = append(order, nb)
					onStack[nb] = true
				}
				continue
			}

			visited[top.node] = true
			onStack[top.node] = false
			order = order[:len(order)-1]
			stack = stack[:len(stack)-1]
		}
	}
	return conflicts
}

// detectFieldConflicts flags pairs that write different values to the
// same field. Pairs already flagged as target conflicts are skipped so a
// duplicated target is not reported twice.
func detectFieldConflicts(ops []core.Operation, userPairs map[[2]int]bool) []core.Conflict {
	var conflicts []core.Conflict
	for i := 0; i < len(ops); i++ {
		for j := i + 1; j < len(ops); j++ {
			if userPairs[[2]int{i, j}] {
				continue
			}
			fields := overlappingFields(ops[i].Data, ops[j].Data)
			if len(fields) == 0 {
				continue
			}
			conflicts = append(conflicts, core.Conflict{
				Type:        core.ConflictField,
				Indices:     []int{i, j},
				Fields:      fields,
				Resolutions: core.ResolutionsFor(core.ConflictField),
			})
		}
	}
	return conflicts
}

// overlappingFields returns the sorted field names present in both maps
// with unequal values.
func overlappingFields(a, b map[string]interface{}) []string {
	var fields []string
	for k, av := range a {
		bv, ok := b[k]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(av, bv) {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return fields
}
