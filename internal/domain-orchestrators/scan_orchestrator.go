// Package orchestrators coordinates complex workflows across multiple domain services.
package orchestrators

import (
	"context"
	"fmt"
	"time"

	"github.com/ochairo/sonarscan/internal/domain/entities"
	"github.com/ochairo/sonarscan/internal/domain/interfaces"
	"github.com/ochairo/sonarscan/internal/domain/interfaces/gateways"
	"github.com/ochairo/sonarscan/internal/domain/scanerr"
)

// ScanOrchestrator runs the steps of a toolchain plan strictly in order
type ScanOrchestrator struct {
	runner gateways.CommandRunner
	logger interfaces.Logger
}

// NewScanOrchestrator creates a new scan orchestrator
func NewScanOrchestrator(runner gateways.CommandRunner, logger interfaces.Logger) *ScanOrchestrator {
	return &ScanOrchestrator{
		runner: runner,
		logger: interfaces.OrNoOp(logger),
	}
}

// Execute runs every step of plan. The first failing step stops the plan;
// the returned error carries the masked command line and its error text.
// The outcome is returned in both cases with the results gathered so far.
func (o *ScanOrchestrator) Execute(ctx context.Context, plan *entities.ToolchainPlan) (*entities.ScanOutcome, error) {
	const op = "scan.execute"

	if plan == nil || len(plan.Steps) == 0 {
		return nil, scanerr.New(scanerr.CodeInternal, op, "empty toolchain plan")
	}

	startTime := time.Now()
	outcome := &entities.ScanOutcome{
		ProjectKey: plan.ProjectKey,
		Toolchain:  plan.Toolchain,
		Results:    make([]entities.CommandResult, 0, len(plan.Steps)),
		State:      entities.ScanStateRunning,
	}

	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			outcome.State = entities.ScanStateFailed
			outcome.Duration = time.Since(startTime)
			return outcome, fmt.Errorf("scan canceled before step %s: %w", step.Name, err)
		}

		o.logger.Info("running plan step",
			interfaces.F("project_key", plan.ProjectKey),
			interfaces.F("step", fmt.Sprintf("%d/%d %s", i+1, len(plan.Steps), step.Name)),
		)

		result := o.runner.Run(ctx, step)
		if result == nil {
			result = &entities.CommandResult{Step: step, ExitCode: -1, ErrorText: "no result from command runner"}
		}
		outcome.Results = append(outcome.Results, *result)

		if !result.Success {
			outcome.State = entities.ScanStateFailed
			outcome.Duration = time.Since(startTime)
			return outcome, commandFailure(op, step, result)
		}
	}

	outcome.State = entities.ScanStateDone
	outcome.Duration = time.Since(startTime)
	return outcome, nil
}

// commandFailure builds the coded error for a failed step
func commandFailure(op string, step entities.PlanStep, result *entities.CommandResult) error {
	code := scanerr.CodeExecutionFailed
	message := "command failed"
	if result.TimedOut {
		code = scanerr.CodeTimeout
		message = "command timed out"
	}
	return scanerr.New(code, op, message).
		With("command", step.CommandLine()).
		With("error", step.Mask(result.ErrorText))
}
