package gateways

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/ochairo/sonarscan/internal/domain/entities"
	"github.com/ochairo/sonarscan/internal/domain/interfaces"
)

// defaultCommandTimeout bounds a single build or scan invocation
const defaultCommandTimeout = 30 * time.Minute

// defaultKillGracePeriod is how long output pipes may stay open after the
// child is killed. Build tools that leave daemons behind (gradle, msbuild
// node reuse) keep the pipes open otherwise.
const defaultKillGracePeriod = 10 * time.Second

// CommandRunner executes plan steps as child processes.
// Arguments are passed as a vector; no shell is involved.
type CommandRunner struct {
	timeout     time.Duration
	gracePeriod time.Duration
	secrets     []string
	logger      interfaces.Logger
}

// CommandRunnerConfig contains configuration for the command runner
type CommandRunnerConfig struct {
	Timeout         time.Duration
	KillGracePeriod time.Duration
	Secrets         []string // masked in addition to each step's own secrets
	Logger          interfaces.Logger
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(config CommandRunnerConfig) *CommandRunner {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	gracePeriod := config.KillGracePeriod
	if gracePeriod <= 0 {
		gracePeriod = defaultKillGracePeriod
	}
	return &CommandRunner{
		timeout:     timeout,
		gracePeriod: gracePeriod,
		secrets:     config.Secrets,
		logger:      interfaces.OrNoOp(config.Logger),
	}
}

// Run executes one step and blocks until the child exits or the timeout
// expires. A failed child is reported in the result, never as an error.
func (r *CommandRunner) Run(ctx context.Context, step entities.PlanStep) *entities.CommandResult {
	startTime := time.Now()
	result := &entities.CommandResult{Step: step}
	commandLine := step.CommandLine(r.secrets...)

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	//nolint:gosec // G204: program and arguments come from the toolchain plan, not a shell string
	cmd := exec.CommandContext(execCtx, step.Program, step.Args...)
	cmd.Dir = step.WorkingDir
	cmd.WaitDelay = r.gracePeriod

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	r.logger.Info("executing command",
		interfaces.F("step", step.Name),
		interfaces.F("command", commandLine),
		interfaces.F("dir", step.WorkingDir),
	)

	err := cmd.Run()
	result.Duration = time.Since(startTime)
	result.Output = step.Mask(entities.MaskSecrets(combined.String(), r.secrets...))

	if err == nil {
		result.Success = true
		result.ExitCode = 0
		r.logger.Info("command succeeded",
			interfaces.F("step", step.Name),
			interfaces.F("duration", result.Duration.String()),
		)
		return result
	}

	var exitErr *exec.ExitError
	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.ExitCode = -1
		result.ErrorText = fmt.Sprintf("command timed out after %v", r.timeout)
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		result.ErrorText = fmt.Sprintf("%v\n%s", err, result.Output)
	default:
		// Program not found, bad working directory, parent cancellation.
		result.ExitCode = -1
		result.ErrorText = err.Error()
	}
	result.ErrorText = step.Mask(entities.MaskSecrets(result.ErrorText, r.secrets...))

	r.logger.Error("command failed",
		interfaces.F("step", step.Name),
		interfaces.F("command", commandLine),
		interfaces.F("exit_code", result.ExitCode),
		interfaces.F("timed_out", result.TimedOut),
		interfaces.F("duration", result.Duration.String()),
	)
	return result
}
