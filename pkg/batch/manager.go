package batch

import (
	"context"
	"sync"

	"github.com/arthur-debert/batchkit/pkg/batch/conflict"
	"github.com/arthur-debert/batchkit/pkg/batch/core"
	"github.com/arthur-debert/batchkit/pkg/batch/execution"
)

// Manager holds batch state across calls: the pending operation list, its
// conflict set, and the state of the current or most recent run. It
// composes the detector, resolver, scheduler, and executor.
//
// The manager is safe for concurrent use, but at most one Execute may be
// in flight at a time; a second call fails fast with *BatchRunningError.
// Operations added or resolved while a run is in flight do not affect it:
// the executor works on a snapshot.
type Manager struct {
	mu        sync.Mutex
	logger    core.Logger
	executor  *execution.Executor
	ops       []core.Operation
	conflicts []core.Conflict
	run       core.RunResult
	cancel    context.CancelFunc
	running   bool
	closed    bool
}

// NewManager creates a manager around the given update capability. A nil
// logger disables logging.
func NewManager(updater Updater, logger core.Logger) *Manager {
	if logger == nil {
		logger = core.NopLogger{}
	}
	m := &Manager{
		logger:   logger,
		executor: execution.NewExecutor(updater, logger),
		run:      core.RunResult{Status: core.StatusIdle},
	}

	// Keep the run snapshot's progress live while a batch executes.
	m.executor.EventBus().Subscribe(core.EventBatchProgress,
		core.EventHandlerFunc(func(_ context.Context, event core.Event) error {
			if pe, ok := event.(*core.BatchProgressEvent); ok {
				m.mu.Lock()
				if m.running {
					m.run.Progress = pe.Progress
				}
				m.mu.Unlock()
			}
			return nil
		}))

	return m
}

// EventBus exposes the run events (batch.*, operation.*) for subscription.
func (m *Manager) EventBus() core.EventBus {
	return m.executor.EventBus()
}

// Add appends one operation and recomputes the conflict set.
func (m *Manager) Add(op core.Operation) {
	m.AddAll(op)
}

// AddAll appends operations and recomputes the conflict set once.
func (m *Manager) AddAll(ops ...core.Operation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, op := range ops {
		clone := op.Clone()
		if clone.MergeStrategy == "" {
			clone.MergeStrategy = core.MergeShallow
		}
		m.ops = append(m.ops, clone)
	}
	m.conflicts = conflict.Detect(m.ops)

	m.logger.Info().
		Int("added", len(ops)).
		Int("total_operations", len(m.ops)).
		Int("conflicts", len(m.conflicts)).
		Msg("operations added to batch")
}

// Operations returns a deep copy of the pending operation list.
func (m *Manager) Operations() []core.Operation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return core.CloneOperations(m.ops)
}

// Conflicts returns a copy of the current conflict set.
func (m *Manager) Conflicts() []core.Conflict {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyConflicts(m.conflicts)
}

// Executable reports whether the batch can run: at least one operation
// and no unresolved conflicts.
func (m *Manager) Executable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ops) > 0 && len(m.conflicts) == 0
}

// ResolveConflict applies a resolution to the conflict at the given index
// and recomputes the conflict set. An index that references no existing
// conflict is a no-op. An illegal resolution for the conflict's type
// returns a *core.ValidationError.
func (m *Manager) ResolveConflict(conflictIndex int, resolution core.Resolution,
	manualValues map[string]interface{}) error {

	m.mu.Lock()
	defer m.mu.Unlock()

	newOps, newConflicts, err := conflict.Resolve(m.ops, m.conflicts, conflictIndex, resolution, manualValues)
	if err != nil {
		return err
	}
	m.ops = newOps
	m.conflicts = newConflicts

	m.logger.Info().
		Int("conflict_index", conflictIndex).
		Str("resolution", string(resolution)).
		Int("remaining_operations", len(m.ops)).
		Int("remaining_conflicts", len(m.conflicts)).
		Msg("conflict resolved")
	return nil
}

// Execute runs the current batch to completion and returns its final
// state. It blocks for the duration of the run; Cancel may be called from
// another goroutine. A second Execute while one is in flight fails with
// *core.BatchRunningError.
func (m *Manager) Execute(ctx context.Context, opts core.ExecOptions) (*core.RunResult, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, &core.ValidationError{Reason: "manager is closed"}
	}
	if m.running {
		status := m.run.Status
		m.mu.Unlock()
		return nil, &core.BatchRunningError{Status: status}
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.run = core.RunResult{Status: core.StatusRunning}
	ops := core.CloneOperations(m.ops)
	conflicts := copyConflicts(m.conflicts)
	m.mu.Unlock()

	result := m.executor.Execute(runCtx, ops, conflicts, opts)
	cancel()

	m.mu.Lock()
	m.run = *result
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	return result, nil
}

// Cancel aborts an in-flight run. Cancellation is cooperative: the
// current updater call is not forcibly interrupted beyond its context,
// and no further operations start once the signal is observed.
func (m *Manager) Cancel() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		m.logger.Info().Msg("cancelling in-flight batch")
		cancel()
	}
}

// Clear drops all operations, conflicts, and run state. It does not
// cancel an in-flight run.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = nil
	m.conflicts = nil
	if !m.running {
		m.run = core.RunResult{Status: core.StatusIdle}
	}
}

// Run returns a snapshot of the current or most recent run state.
func (m *Manager) Run() core.RunResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.run
	snapshot.Results = append([]core.OperationResult(nil), m.run.Results...)
	return snapshot
}

// Close cancels any in-flight run and rejects further Execute calls.
// Teardown must go through Close so no timers or update calls linger.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.closed = true
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func copyConflicts(conflicts []core.Conflict) []core.Conflict {
	out := make([]core.Conflict, len(conflicts))
	for i, c := range conflicts {
		out[i] = c
		out[i].Indices = append([]int(nil), c.Indices...)
		out[i].Fields = append([]string(nil), c.Fields...)
		out[i].Resolutions = append([]core.Resolution(nil), c.Resolutions...)
	}
	return out
}
