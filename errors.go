package forkline

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by batch operations.
var (
	// ErrAborted is returned when the operator aborts an interactive run.
	ErrAborted = errors.New("aborted by user")

	// ErrNoChanges is returned when a commit or range touches no files.
	ErrNoChanges = errors.New("no changes found")

	// ErrEmptySeries is returned when the series file lists no patches.
	ErrEmptySeries = errors.New("series file is empty")
)

// BackendError reports a failed version-control subprocess invocation.
// It is recoverable at the operation level; callers inspect Stderr for
// the captured diagnostic output.
type BackendError struct {
	Op     string // backend operation, e.g. "diff", "apply"
	Args   []string
	Stderr string
	Err    error // underlying cause: exit error, timeout, missing binary
}

func (e *BackendError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("git %s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("git %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// NotFoundError reports a missing commit, feature, or artifact. The
// specific operation aborts; sibling operations continue.
type NotFoundError struct {
	Kind string // "commit", "feature", "artifact", "series"
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// ConflictError reports that an apply attempt exhausted every strategy.
type ConflictError struct {
	Patch  string
	Stderr string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("patch conflicts: %s", e.Patch)
}

// AmbiguousStateError reports an artifact that cannot be applied by the
// engine, such as a binary marker whose payload was never captured.
type AmbiguousStateError struct {
	Patch  string
	Reason string
}

func (e *AmbiguousStateError) Error() string {
	return fmt.Sprintf("cannot apply %s: %s", e.Patch, e.Reason)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
