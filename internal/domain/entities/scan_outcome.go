package entities

import "time"

// ScanState tracks where a request is in the scan pipeline
type ScanState string

// Pipeline states: staged -> resolved -> running -> done | failed
const (
	ScanStateStaged   ScanState = "staged"
	ScanStateResolved ScanState = "resolved"
	ScanStateRunning  ScanState = "running"
	ScanStateDone     ScanState = "done"
	ScanStateFailed   ScanState = "failed"
)

// ScanOutcome holds the ordered results of a completed plan
type ScanOutcome struct {
	ProjectKey string
	Toolchain  Toolchain
	Results    []CommandResult
	State      ScanState
	Duration   time.Duration
}

// Outputs returns the captured output of every step, in plan order
func (o *ScanOutcome) Outputs() []string {
	outputs := make([]string, 0, len(o.Results))
	for _, r := range o.Results {
		outputs = append(outputs, r.Output)
	}
	return outputs
}
