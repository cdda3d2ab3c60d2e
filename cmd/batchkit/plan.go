package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/batchkit/pkg/batch"
	"github.com/arthur-debert/batchkit/pkg/batch/conflict"
	"github.com/arthur-debert/batchkit/pkg/batch/core"
	"github.com/arthur-debert/batchkit/pkg/batch/execution"
	"github.com/arthur-debert/batchkit/pkg/batch/httpupdate"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Manage update plans",
		Long:  "Create, validate, and execute serialized update plans",
	}

	cmd.AddCommand(newPlanCreateCommand())
	cmd.AddCommand(newPlanValidateCommand())
	cmd.AddCommand(newPlanExecuteCommand())

	return cmd
}

func newPlanCreateCommand() *cobra.Command {
	var (
		description string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a skeleton update plan",
		Long:  "Write a skeleton plan file to edit by hand",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan := batch.PlanFromOperations([]core.Operation{
				{
					TargetID: "user-1",
					Data:     map[string]interface{}{"email": "user@example.com"},
				},
				{
					TargetID:  "user-2",
					Data:      map[string]interface{}{"role": "admin"},
					DependsOn: []core.TargetID{"user-1"},
				},
			}, description)

			data, err := batch.MarshalPlan(plan)
			if err != nil {
				return fmt.Errorf("failed to marshal plan: %w", err)
			}

			if output == "" {
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write plan file %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Plan written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "plan description")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func newPlanValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [plan-file]",
		Short: "Validate an update plan",
		Long:  "Parse a plan file and report conflicts between its operations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := loadPlanOperations(args[0])
			if err != nil {
				return err
			}

			conflicts := conflict.Detect(ops)
			if len(conflicts) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Plan is valid: %d operations, no conflicts\n", len(ops))
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Plan has %d conflicts:\n", len(conflicts))
			for i, c := range conflicts {
				fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i, describeConflict(ops, c))
			}
			return fmt.Errorf("plan has %d unresolved conflicts", len(conflicts))
		},
	}
	return cmd
}

func newPlanExecuteCommand() *cobra.Command {
	var (
		endpoint      string
		transactional bool
		retries       int
		parallel      bool
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "execute [plan-file]",
		Short: "Execute an update plan",
		Long:  "Execute a plan file against a REST endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cfgFile)
			if err != nil {
				return err
			}
			logger, err := setupLogger(cfg)
			if err != nil {
				return err
			}

			ops, err := loadPlanOperations(args[0])
			if err != nil {
				return err
			}

			if dryRun {
				order, err := execution.Schedule(ops)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Execution order:")
				for i, op := range order {
					fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, op.TargetID)
				}
				return nil
			}

			if endpoint == "" {
				endpoint = cfg.Endpoint
			}
			if endpoint == "" {
				return fmt.Errorf("no endpoint configured; use --endpoint or a config file")
			}

			opts := core.DefaultExecOptions()
			opts.ParallelOps = parallel
			if cmd.Flags().Changed("transactional") {
				opts.Transactional = transactional
			} else if cfg.Transactional != nil {
				opts.Transactional = *cfg.Transactional
			}
			if cmd.Flags().Changed("retries") {
				opts.RetryCount = retries
			} else if cfg.Retries != nil {
				opts.RetryCount = *cfg.Retries
			}

			mgr := batch.NewManager(httpupdate.New(endpoint), batch.NewLoggerAdapter(&logger))
			defer mgr.Close()
			mgr.AddAll(ops...)

			if conflicts := mgr.Conflicts(); len(conflicts) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Plan has %d conflicts:\n", len(conflicts))
				for i, c := range conflicts {
					fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i, describeConflict(mgr.Operations(), c))
				}
				return fmt.Errorf("resolve conflicts before executing")
			}

			result, err := mgr.Execute(cmd.Context(), opts)
			if err != nil {
				return err
			}

			printRunResult(cmd, result)
			if result.Status != core.StatusSuccess {
				return fmt.Errorf("batch finished with status %s", result.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "API base URL")
	cmd.Flags().BoolVar(&transactional, "transactional", true, "stop on first failed operation")
	cmd.Flags().IntVar(&retries, "retries", 3, "retries per operation after the first attempt")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "execute in input order, ignoring dependencies")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the execution order without calling the API")
	return cmd
}

func loadPlanOperations(path string) ([]core.Operation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file %s: %w", path, err)
	}
	plan, err := batch.UnmarshalPlan(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	return plan.ToOperations(), nil
}

func describeConflict(ops []core.Operation, c core.Conflict) string {
	targets := make([]string, 0, len(c.Indices))
	for _, idx := range c.Indices {
		if idx >= 0 && idx < len(ops) {
			targets = append(targets, string(ops[idx].TargetID))
		}
	}
	switch c.Type {
	case core.ConflictField:
		return fmt.Sprintf("field conflict between %v on fields %v", targets, c.Fields)
	case core.ConflictCircular:
		return fmt.Sprintf("circular dependency through %v", targets)
	default:
		return fmt.Sprintf("duplicate target %v", targets)
	}
}

func printRunResult(cmd *cobra.Command, result *core.RunResult) {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, r := range result.Results {
		if r.Success {
			fmt.Fprintf(out, "  %s %s (%d attempts)\n", green("ok"), r.TargetID, r.Attempts)
		} else {
			fmt.Fprintf(out, "  %s %s (%d attempts): %v\n", red("failed"), r.TargetID, r.Attempts, r.Err)
		}
	}

	if result.Status == core.StatusSuccess {
		fmt.Fprintf(out, "%s: %d operations in %s\n", green("Batch succeeded"), len(result.Results), result.Duration)
	} else {
		fmt.Fprintf(out, "%s after %d operations: %v\n", red("Batch failed"), len(result.Results), result.ErrorDetails)
	}
}
