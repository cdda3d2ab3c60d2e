// Package testutil provides a scripted Updater for exercising batch runs
// without a real backend.
package testutil

import (
	"context"
	"sync"

	"github.com/arthur-debert/batchkit/pkg/batch"
	"github.com/arthur-debert/batchkit/pkg/batch/core"
)

// Call records one ApplyUpdate invocation.
type Call struct {
	TargetID core.TargetID
	Data     map[string]interface{}
	Strategy core.MergeStrategy
}

// script controls how a target behaves across attempts.
type script struct {
	failures int // fail this many attempts before succeeding; -1 fails forever
	kind     batch.UpdateErrorKind
	seen     int
}

// MockUpdater is a programmable Updater. By default every update succeeds
// and echoes the submitted data back as the updated record.
type MockUpdater struct {
	mu      sync.Mutex
	calls   []Call
	scripts map[core.TargetID]*script
}

// NewMockUpdater creates an updater where all targets succeed.
func NewMockUpdater() *MockUpdater {
	return &MockUpdater{scripts: make(map[core.TargetID]*script)}
}

// FailTimes makes a target fail its first n attempts, then succeed.
func (m *MockUpdater) FailTimes(id core.TargetID, n int, kind batch.UpdateErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[id] = &script{failures: n, kind: kind}
}

// FailAlways makes every attempt against a target fail.
func (m *MockUpdater) FailAlways(id core.TargetID, kind batch.UpdateErrorKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[id] = &script{failures: -1, kind: kind}
}

// Calls returns a copy of every recorded invocation, in call order.
func (m *MockUpdater) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CallsFor returns how many attempts were made against one target.
func (m *MockUpdater) CallsFor(id core.TargetID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.TargetID == id {
			n++
		}
	}
	return n
}

// ApplyUpdate implements batch.Updater.
func (m *MockUpdater) ApplyUpdate(ctx context.Context, id core.TargetID, data map[string]interface{},
	strategy core.MergeStrategy) (map[string]interface{}, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{TargetID: id, Data: data, Strategy: strategy})

	if s, ok := m.scripts[id]; ok {
		s.seen++
		if s.failures < 0 || s.seen <= s.failures {
			return nil, &batch.UpdateError{Kind: s.kind, TargetID: id}
		}
	}

	updated := make(map[string]interface{}, len(data)+1)
	updated["id"] = string(id)
	for k, v := range data {
		updated[k] = v
	}
	return updated, nil
}
