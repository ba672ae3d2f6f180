// Package mock provides test doubles for forkline interfaces.
package mock

import (
	"context"
	"io"

	"github.com/forkline/forkline"
)

// Compile-time interface verification.
var (
	_ forkline.Backend          = (*Backend)(nil)
	_ forkline.DecisionProvider = (*DecisionProvider)(nil)
	_ forkline.Parser           = (*Parser)(nil)
)

// Backend is a mock forkline.Backend. Unset methods return zero values.
type Backend struct {
	IsRepositoryFn func(ctx context.Context) bool
	CommitExistsFn func(ctx context.Context, rev string) bool
	DiffFn         func(ctx context.Context, opts forkline.DiffOptions) (string, error)
	ChangedFilesFn func(ctx context.Context, rev string) ([]string, error)
	RangeFilesFn   func(ctx context.Context, base, head string) ([]string, error)
	RevListFn      func(ctx context.Context, base, head string) ([]string, error)
	CountCommitsFn func(ctx context.Context, base, head string) (int, error)
	ObjectExistsFn func(ctx context.Context, rev, path string) bool
	CommitInfoFn   func(ctx context.Context, rev string) (*forkline.CommitInfo, error)
	ApplyFn        func(ctx context.Context, patchPath string, mode forkline.ApplyMode) error
	MoveFn         func(ctx context.Context, oldPath, newPath string) error
	HasChangesFn   func(ctx context.Context) (bool, error)
	CommitFn       func(ctx context.Context, message string) error

	// Commits records every commit message for assertion.
	Commits []string
}

func (b *Backend) IsRepository(ctx context.Context) bool {
	if b.IsRepositoryFn == nil {
		return true
	}
	return b.IsRepositoryFn(ctx)
}

func (b *Backend) CommitExists(ctx context.Context, rev string) bool {
	if b.CommitExistsFn == nil {
		return true
	}
	return b.CommitExistsFn(ctx, rev)
}

func (b *Backend) Diff(ctx context.Context, opts forkline.DiffOptions) (string, error) {
	if b.DiffFn == nil {
		return "", nil
	}
	return b.DiffFn(ctx, opts)
}

func (b *Backend) ChangedFiles(ctx context.Context, rev string) ([]string, error) {
	if b.ChangedFilesFn == nil {
		return nil, nil
	}
	return b.ChangedFilesFn(ctx, rev)
}

func (b *Backend) RangeFiles(ctx context.Context, base, head string) ([]string, error) {
	if b.RangeFilesFn == nil {
		return nil, nil
	}
	return b.RangeFilesFn(ctx, base, head)
}

func (b *Backend) RevList(ctx context.Context, base, head string) ([]string, error) {
	if b.RevListFn == nil {
		return nil, nil
	}
	return b.RevListFn(ctx, base, head)
}

func (b *Backend) CountCommits(ctx context.Context, base, head string) (int, error) {
	if b.CountCommitsFn == nil {
		return 0, nil
	}
	return b.CountCommitsFn(ctx, base, head)
}

func (b *Backend) ObjectExists(ctx context.Context, rev, path string) bool {
	if b.ObjectExistsFn == nil {
		return false
	}
	return b.ObjectExistsFn(ctx, rev, path)
}

func (b *Backend) CommitInfo(ctx context.Context, rev string) (*forkline.CommitInfo, error) {
	if b.CommitInfoFn == nil {
		return &forkline.CommitInfo{Hash: rev}, nil
	}
	return b.CommitInfoFn(ctx, rev)
}

func (b *Backend) Apply(ctx context.Context, patchPath string, mode forkline.ApplyMode) error {
	if b.ApplyFn == nil {
		return nil
	}
	return b.ApplyFn(ctx, patchPath, mode)
}

func (b *Backend) Move(ctx context.Context, oldPath, newPath string) error {
	if b.MoveFn == nil {
		return nil
	}
	return b.MoveFn(ctx, oldPath, newPath)
}

func (b *Backend) HasChanges(ctx context.Context) (bool, error) {
	if b.HasChangesFn == nil {
		return true, nil
	}
	return b.HasChangesFn(ctx)
}

func (b *Backend) Commit(ctx context.Context, message string) error {
	b.Commits = append(b.Commits, message)
	if b.CommitFn == nil {
		return nil
	}
	return b.CommitFn(ctx, message)
}

// DecisionProvider is a mock forkline.DecisionProvider.
type DecisionProvider struct {
	DecideFn           func(ctx context.Context, c forkline.Conflict) (forkline.Decision, error)
	ConfirmOverwriteFn func(ctx context.Context, existing []string) (bool, error)
}

func (d *DecisionProvider) Decide(ctx context.Context, c forkline.Conflict) (forkline.Decision, error) {
	if d.DecideFn == nil {
		return forkline.DecisionSkip, nil
	}
	return d.DecideFn(ctx, c)
}

func (d *DecisionProvider) ConfirmOverwrite(ctx context.Context, existing []string) (bool, error) {
	if d.ConfirmOverwriteFn == nil {
		return true, nil
	}
	return d.ConfirmOverwriteFn(ctx, existing)
}

// Parser is a mock forkline.Parser.
type Parser struct {
	ParseFn func(r io.Reader) (forkline.Diff, error)
}

func (p *Parser) Parse(r io.Reader) (forkline.Diff, error) {
	if p.ParseFn == nil {
		return forkline.Diff{}, nil
	}
	return p.ParseFn(r)
}
