package forkline

import "context"

// DiffOptions selects what a Backend.Diff invocation covers.
type DiffOptions struct {
	// Range is a revision range ("base..head") or a single revision
	// spelled as "rev^..rev" by the caller.
	Range string
	// Paths restricts the diff to the given repository-relative paths.
	Paths []string
	// Binary includes binary payload markers in the output.
	Binary bool
}

// ApplyMode selects the strategy for a Backend.Apply invocation.
type ApplyMode int

// Apply strategies, tried in ladder order by the applier.
const (
	ApplyStandard ApplyMode = iota
	ApplyWhitespace
	ApplyThreeWay
	ApplyCheck
)

// Backend abstracts the version-control subprocess.
//
// The default implementation shells out to the git executable; the
// interface keeps the extractor and applier testable without a
// repository. All methods honor ctx cancellation and report non-zero
// exits as a *BackendError rather than panicking.
type Backend interface {
	// IsRepository reports whether the working directory is inside a
	// version-control checkout.
	IsRepository(ctx context.Context) bool

	// CommitExists verifies that rev resolves to a commit.
	CommitExists(ctx context.Context, rev string) bool

	// Diff returns raw unified diff text for the given options.
	Diff(ctx context.Context, opts DiffOptions) (string, error)

	// ChangedFiles lists repository-relative paths touched by rev.
	ChangedFiles(ctx context.Context, rev string) ([]string, error)

	// RangeFiles lists paths touched anywhere in base..head.
	RangeFiles(ctx context.Context, base, head string) ([]string, error)

	// RevList returns the commits in base..head oldest first.
	RevList(ctx context.Context, base, head string) ([]string, error)

	// CountCommits returns the number of commits in base..head.
	CountCommits(ctx context.Context, base, head string) (int, error)

	// ObjectExists probes whether path exists at rev.
	ObjectExists(ctx context.Context, rev, path string) bool

	// CommitInfo returns the metadata of a single commit.
	CommitInfo(ctx context.Context, rev string) (*CommitInfo, error)

	// Apply applies the patch file at patchPath onto the working tree
	// using the given strategy.
	Apply(ctx context.Context, patchPath string, mode ApplyMode) error

	// Move records a path rename in the working tree.
	Move(ctx context.Context, oldPath, newPath string) error

	// HasChanges reports whether the working tree has uncommitted
	// changes to stage.
	HasChanges(ctx context.Context) (bool, error)

	// Commit stages everything and commits with the given message.
	Commit(ctx context.Context, message string) error
}
