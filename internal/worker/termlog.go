package worker

import (
	"github.com/fatih/color"
)

// TermLog prints the worker's local job-lifecycle transitions to its own terminal, purely for
// operator feedback; it never substitutes for the coordinator-facing protocol calls. Grounded on
// five82-reel's internal/reporter/terminal.go.
type TermLog struct {
	info  func(format string, a ...any) (int, error)
	warn  func(format string, a ...any) (int, error)
	error_ func(format string, a ...any) (int, error)
}

func NewTermLog() *TermLog {
	return &TermLog{
		info:   color.New(color.FgCyan).PrintfFunc(),
		warn:   color.New(color.FgYellow).PrintfFunc(),
		error_: color.New(color.FgRed, color.Bold).PrintfFunc(),
	}
}

func (t *TermLog) Claimed(jobID, itemPath string) {
	t.info("[%s] claimed %s\n", jobID, itemPath)
}

func (t *TermLog) Progress(jobID string, pct float64, etaSec int64) {
	t.info("[%s] %.1f%% eta=%ds\n", jobID, pct, etaSec)
}

func (t *TermLog) Completed(jobID string, savingsPct float64) {
	t.info("[%s] done, savings=%.1f%%\n", jobID, savingsPct*100)
}

func (t *TermLog) Failed(jobID, reason string) {
	t.error_("[%s] failed: %s\n", jobID, reason)
}

func (t *TermLog) Cancelled(jobID string) {
	t.warn("[%s] cancelled\n", jobID)
}
