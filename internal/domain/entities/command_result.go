package entities

import "time"

// CommandResult is the captured outcome of one executed plan step
type CommandResult struct {
	Step      PlanStep
	Success   bool
	Output    string // combined stdout/stderr
	ErrorText string // set when Success is false
	ExitCode  int
	Duration  time.Duration
	TimedOut  bool
}
