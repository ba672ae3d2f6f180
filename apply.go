package forkline

import "context"

// ApplyStatus is the terminal state of one patch in an apply run.
type ApplyStatus int

// Per-patch apply outcomes.
const (
	StatusApplied ApplyStatus = iota
	StatusAppliedThreeWay
	StatusAppliedWhitespace
	StatusManuallyFixed
	StatusSkipped
	StatusFailed
)

// String returns the operator-facing label for the status.
func (s ApplyStatus) String() string {
	switch s {
	case StatusApplied:
		return "Applied"
	case StatusAppliedThreeWay:
		return "Applied (3-way)"
	case StatusAppliedWhitespace:
		return "Applied (whitespace)"
	case StatusManuallyFixed:
		return "Manually fixed"
	case StatusSkipped:
		return "Skipped"
	case StatusFailed:
		return "Failed"
	}
	return "Unknown"
}

// Succeeded reports whether the status counts toward the applied total.
func (s ApplyStatus) Succeeded() bool {
	switch s {
	case StatusApplied, StatusAppliedThreeWay, StatusAppliedWhitespace, StatusManuallyFixed:
		return true
	case StatusSkipped, StatusFailed:
		return false
	}
	return false
}

// ApplyResult records the outcome of one patch.
type ApplyResult struct {
	Patch   string // artifact path or feature file path
	Status  ApplyStatus
	Message string
}

// Decision is the operator's choice when a patch exhausts every
// automatic strategy.
type Decision int

// Conflict decisions.
const (
	// DecisionSkip counts the patch as failed and proceeds.
	DecisionSkip Decision = iota
	// DecisionRetry re-runs the strategy ladder for the same patch.
	DecisionRetry
	// DecisionManualFix pauses for operator edits, then counts the
	// patch as applied.
	DecisionManualFix
	// DecisionAbort stops the whole run with ErrAborted.
	DecisionAbort
)

// Conflict describes a patch that could not be applied automatically.
type Conflict struct {
	Patch    string
	Content  string // artifact text, for preview
	Stderr   string // last strategy's diagnostic output
	Position int    // 1-based index in the run
	Total    int
}

// DecisionProvider resolves conflicts. The interactive implementation
// prompts the operator; non-interactive implementations return a
// configured default, keeping the applier testable without a terminal.
type DecisionProvider interface {
	Decide(ctx context.Context, c Conflict) (Decision, error)

	// ConfirmOverwrite gates re-extraction over existing artifacts.
	ConfirmOverwrite(ctx context.Context, existing []string) (bool, error)
}
