package gateways

import (
	"context"

	"github.com/ochairo/sonarscan/internal/domain/entities"
)

// CommandRunner executes one external program and reports the outcome as data.
// Implementations never return an error for a failed child process.
type CommandRunner interface {
	Run(ctx context.Context, step entities.PlanStep) *entities.CommandResult
}
