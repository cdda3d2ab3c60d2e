package batch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/arthur-debert/batchkit/pkg/batch/core"
)

// UpdatePlan is a serializable batch of proposed updates.
type UpdatePlan struct {
	Operations []PlanOperation `json:"operations"`
	Metadata   PlanMetadata    `json:"metadata"`
}

// PlanMetadata contains information about the plan.
type PlanMetadata struct {
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// PlanOperation is the JSON structure for one proposed update.
type PlanOperation struct {
	TargetID      string                 `json:"target_id"`
	Data          map[string]interface{} `json:"data"`
	DependsOn     []string               `json:"depends_on,omitempty"`
	MergeStrategy string                 `json:"merge_strategy,omitempty"`
}

// PlanVersion is the current plan format version.
const PlanVersion = "1.0"

// MarshalPlan serializes an update plan to JSON.
func MarshalPlan(plan *UpdatePlan) ([]byte, error) {
	return json.MarshalIndent(plan, "", "  ")
}

// UnmarshalPlan deserializes and validates an update plan.
func UnmarshalPlan(data []byte) (*UpdatePlan, error) {
	var plan UpdatePlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to unmarshal update plan: %w", err)
	}

	for i, op := range plan.Operations {
		if op.TargetID == "" {
			return nil, fmt.Errorf("operation %d is missing target_id", i)
		}
		if op.MergeStrategy != "" && !core.MergeStrategy(op.MergeStrategy).Valid() {
			return nil, fmt.Errorf("operation %d has unknown merge strategy %q", i, op.MergeStrategy)
		}
	}
	return &plan, nil
}

// ToOperations converts the plan into executable operations.
func (p *UpdatePlan) ToOperations() []core.Operation {
	ops := make([]core.Operation, len(p.Operations))
	for i, po := range p.Operations {
		op := core.Operation{
			TargetID:      core.TargetID(po.TargetID),
			Data:          po.Data,
			MergeStrategy: core.MergeStrategy(po.MergeStrategy),
		}
		if op.MergeStrategy == "" {
			op.MergeStrategy = core.MergeShallow
		}
		for _, dep := range po.DependsOn {
			op.DependsOn = append(op.DependsOn, core.TargetID(dep))
		}
		ops[i] = op.Clone()
	}
	return ops
}

// PlanFromOperations builds a serializable plan from operations.
func PlanFromOperations(ops []core.Operation, description string) *UpdatePlan {
	plan := &UpdatePlan{
		Operations: make([]PlanOperation, len(ops)),
		Metadata: PlanMetadata{
			Version:     PlanVersion,
			Description: description,
			CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		},
	}
	for i, op := range ops {
		po := PlanOperation{
			TargetID:      string(op.TargetID),
			Data:          op.Data,
			MergeStrategy: string(op.EffectiveStrategy()),
		}
		for _, dep := range op.DependsOn {
			po.DependsOn = append(po.DependsOn, string(dep))
		}
		plan.Operations[i] = po
	}
	return plan
}
