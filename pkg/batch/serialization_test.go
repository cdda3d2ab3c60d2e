package batch_test

import (
	"strings"
	"testing"
	"time"

	"github.com/arthur-debert/batchkit/pkg/batch"
	"github.com/arthur-debert/batchkit/pkg/batch/core"
)

func TestPlanRoundTrip(t *testing.T) {
	ops := []core.Operation{
		{
			TargetID:      "user-1",
			Data:          map[string]interface{}{"email": "a@x.com"},
			MergeStrategy: core.MergeDeep,
		},
		{
			TargetID:  "user-2",
			Data:      map[string]interface{}{"role": "admin"},
			DependsOn: []core.TargetID{"user-1"},
		},
	}

	plan := batch.PlanFromOperations(ops, "test plan")
	data, err := batch.MarshalPlan(plan)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	parsed, err := batch.UnmarshalPlan(data)
	if err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if parsed.Metadata.Version != batch.PlanVersion {
		t.Errorf("expected version %s, got %s", batch.PlanVersion, parsed.Metadata.Version)
	}
	if parsed.Metadata.Description != "test plan" {
		t.Errorf("expected description preserved, got %q", parsed.Metadata.Description)
	}
	created, err := time.Parse(time.RFC3339, parsed.Metadata.CreatedAt)
	if err != nil {
		t.Errorf("expected an RFC3339 creation stamp, got %q: %v", parsed.Metadata.CreatedAt, err)
	} else if time.Since(created) > time.Minute {
		t.Errorf("expected a recent creation stamp, got %s", created)
	}

	restored := parsed.ToOperations()
	if len(restored) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(restored))
	}
	if restored[0].MergeStrategy != core.MergeDeep {
		t.Errorf("expected deep strategy preserved, got %s", restored[0].MergeStrategy)
	}
	if restored[1].MergeStrategy != core.MergeShallow {
		t.Errorf("expected shallow default, got %s", restored[1].MergeStrategy)
	}
	if len(restored[1].DependsOn) != 1 || restored[1].DependsOn[0] != "user-1" {
		t.Errorf("expected dependency preserved, got %v", restored[1].DependsOn)
	}
}

func TestUnmarshalPlanValidation(t *testing.T) {
	t.Run("missing target_id", func(t *testing.T) {
		_, err := batch.UnmarshalPlan([]byte(`{"operations":[{"data":{"x":1}}]}`))
		if err == nil || !strings.Contains(err.Error(), "target_id") {
			t.Errorf("expected target_id error, got %v", err)
		}
	})

	t.Run("unknown merge strategy", func(t *testing.T) {
		_, err := batch.UnmarshalPlan([]byte(
			`{"operations":[{"target_id":"a","merge_strategy":"sideways"}]}`))
		if err == nil || !strings.Contains(err.Error(), "merge strategy") {
			t.Errorf("expected merge strategy error, got %v", err)
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		if _, err := batch.UnmarshalPlan([]byte(`{`)); err == nil {
			t.Error("expected an error for malformed JSON")
		}
	})
}

func TestUpdateErrorKindOf(t *testing.T) {
	err := &batch.UpdateError{Kind: batch.UpdateErrNotFound, TargetID: "a"}
	if got := batch.UpdateErrorKindOf(err); got != batch.UpdateErrNotFound {
		t.Errorf("expected %s, got %s", batch.UpdateErrNotFound, got)
	}
	if got := batch.UpdateErrorKindOf(nil); got != "" {
		t.Errorf("expected empty kind for nil, got %s", got)
	}
}
