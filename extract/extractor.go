// Package extract drives the version-control backend to obtain diffs
// for a commit, a commit range, or a custom base, and writes the
// parsed result into the patch library.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/forkline/forkline"
	"github.com/forkline/forkline/library"
)

// Extractor turns backend history into patch library artifacts.
type Extractor struct {
	Backend forkline.Backend
	Parser  forkline.Parser
	Library *library.Library
	Decider forkline.DecisionProvider
	Logger  *slog.Logger
}

// Options control a single extraction run.
type Options struct {
	// Force overwrites existing artifacts without confirmation.
	Force bool
	// IncludeBinary writes binary markers instead of skipping binary
	// files.
	IncludeBinary bool
	// Base switches to custom-base mode: files are enumerated from the
	// commit or range, but each diff is computed from Base to head.
	Base string
	// Verbose logs per-file progress.
	Verbose bool
}

// Result summarizes one extraction run.
type Result struct {
	Counts  forkline.OperationCounts
	Written int
	Skipped int
	Failed  []string
}

func (e *Extractor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Commit extracts patches for a single commit. In direct mode the diff
// is commit^..commit; with a custom base each touched file is diffed
// from Base to the commit instead.
func (e *Extractor) Commit(ctx context.Context, commit string, opts Options) (*Result, error) {
	if !e.Backend.CommitExists(ctx, commit) {
		return nil, &forkline.NotFoundError{Kind: "commit", Name: commit}
	}
	if opts.Base != "" {
		if !e.Backend.CommitExists(ctx, opts.Base) {
			return nil, &forkline.NotFoundError{Kind: "commit", Name: opts.Base}
		}
		return e.extractWithBase(ctx, commit, opts)
	}
	return e.extractDirect(ctx, commit+"^.."+commit, opts)
}

// Range extracts patches for base..head. Squashed mode parses one
// cumulative diff, losing intra-range commit boundaries; individual
// mode extracts each commit in topological order, which keeps conflict
// resolution units small.
func (e *Extractor) Range(ctx context.Context, base, head string, squash bool, opts Options) (*Result, error) {
	for _, rev := range []string{base, head} {
		if !e.Backend.CommitExists(ctx, rev) {
			return nil, &forkline.NotFoundError{Kind: "commit", Name: rev}
		}
	}
	if opts.Base != "" && !e.Backend.CommitExists(ctx, opts.Base) {
		return nil, &forkline.NotFoundError{Kind: "commit", Name: opts.Base}
	}

	count, err := e.Backend.CountCommits(ctx, base, head)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, forkline.ErrNoChanges
	}
	e.logger().Info("processing commits", "count", count)

	if squash {
		return e.extractSquashed(ctx, base, head, opts)
	}
	return e.extractIndividually(ctx, base, head, opts)
}

// extractDirect diffs a revision range and writes everything it touches.
func (e *Extractor) extractDirect(ctx context.Context, revRange string, opts Options) (*Result, error) {
	raw, err := e.Backend.Diff(ctx, forkline.DiffOptions{Range: revRange, Binary: opts.IncludeBinary})
	if err != nil {
		return nil, err
	}
	diff, err := e.Parser.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	if len(diff) == 0 {
		return nil, forkline.ErrNoChanges
	}
	if err := e.confirmOverwrite(ctx, diff, opts); err != nil {
		return nil, err
	}
	return e.write(diff, opts), nil
}

// extractWithBase enumerates files changed in the commit, then diffs
// each one from the custom base to the commit. An empty per-file diff
// is ambiguous between "no change" and "added/removed relative to the
// base", so it is resolved with existence probes against both
// revisions. The probe-then-decide step is best-effort, not atomic: a
// concurrent change to the object store can race it.
func (e *Extractor) extractWithBase(ctx context.Context, commit string, opts Options) (*Result, error) {
	files, err := e.Backend.ChangedFiles(ctx, commit)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, forkline.ErrNoChanges
	}
	if opts.Verbose {
		e.logger().Info("files changed in commit", "commit", commit, "count", len(files))
	}

	diff := forkline.Diff{}
	for _, file := range files {
		raw, err := e.Backend.Diff(ctx, forkline.DiffOptions{
			Range:  opts.Base + ".." + commit,
			Paths:  []string{file},
			Binary: opts.IncludeBinary,
		})
		if err != nil {
			e.logger().Warn("failed to diff file against base", "file", file, "err", err)
			continue
		}
		if strings.TrimSpace(raw) != "" {
			parsed, err := e.Parser.Parse(strings.NewReader(raw))
			if err != nil {
				return nil, fmt.Errorf("parsing diff for %s: %w", file, err)
			}
			for path, fp := range parsed {
				diff[path] = fp
			}
			continue
		}

		baseHas := e.Backend.ObjectExists(ctx, opts.Base, file)
		headHas := e.Backend.ObjectExists(ctx, commit, file)
		switch {
		case baseHas && !headHas:
			diff[file] = &forkline.FilePatch{Path: file, Operation: forkline.OpDelete}
		case !baseHas && headHas:
			// Added relative to the base. Retry the per-file diff once;
			// if the backend still returns nothing there is no content
			// to track.
			raw, err := e.Backend.Diff(ctx, forkline.DiffOptions{
				Range:  opts.Base + ".." + commit,
				Paths:  []string{file},
				Binary: opts.IncludeBinary,
			})
			if err != nil || strings.TrimSpace(raw) == "" {
				e.logger().Warn("added file produced no diff against base", "file", file)
				continue
			}
			parsed, err := e.Parser.Parse(strings.NewReader(raw))
			if err != nil {
				return nil, fmt.Errorf("parsing diff for %s: %w", file, err)
			}
			for path, fp := range parsed {
				diff[path] = fp
			}
		case !baseHas && !headHas:
			e.logger().Warn("file absent at both revisions, skipping", "file", file)
		default:
			// Present at both with an empty diff: no change relative
			// to the base, nothing to track.
		}
	}

	if len(diff) == 0 {
		return nil, forkline.ErrNoChanges
	}
	if err := e.confirmOverwrite(ctx, diff, opts); err != nil {
		return nil, err
	}
	return e.write(diff, opts), nil
}

// extractSquashed parses one cumulative diff over the whole range.
func (e *Extractor) extractSquashed(ctx context.Context, base, head string, opts Options) (*Result, error) {
	diffOpts := forkline.DiffOptions{Range: base + ".." + head, Binary: opts.IncludeBinary}
	if opts.Base != "" {
		// Files come from the range, content comes from the custom base.
		files, err := e.Backend.RangeFiles(ctx, base, head)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, forkline.ErrNoChanges
		}
		diffOpts = forkline.DiffOptions{Range: opts.Base + ".." + head, Paths: files, Binary: opts.IncludeBinary}
	}

	raw, err := e.Backend.Diff(ctx, diffOpts)
	if err != nil {
		return nil, err
	}
	diff, err := e.Parser.Parse(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}
	if len(diff) == 0 {
		return nil, forkline.ErrNoChanges
	}
	if err := e.confirmOverwrite(ctx, diff, opts); err != nil {
		return nil, err
	}
	return e.write(diff, opts), nil
}

// extractIndividually extracts each commit in the range on its own,
// oldest first. A single commit's failure is recorded and does not
// stop the batch.
func (e *Extractor) extractIndividually(ctx context.Context, base, head string, opts Options) (*Result, error) {
	commits, err := e.Backend.RevList(ctx, base, head)
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		return nil, forkline.ErrNoChanges
	}

	total := &Result{}
	for _, commit := range commits {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := e.Commit(ctx, commit, opts)
		if err != nil {
			if errors.Is(err, forkline.ErrNoChanges) {
				continue
			}
			if errors.Is(err, forkline.ErrAborted) {
				return total, err
			}
			e.logger().Warn("failed to extract commit", "commit", shortRef(commit), "err", err)
			total.Failed = append(total.Failed, commit)
			continue
		}
		total.merge(res)
	}
	return total, nil
}

// confirmOverwrite is the safety gate against silently discarding
// hand-edited patches: any existing target artifact requires either
// Force or an explicit confirmation.
func (e *Extractor) confirmOverwrite(ctx context.Context, diff forkline.Diff, opts Options) error {
	if opts.Force {
		return nil
	}
	var existing []string
	for _, path := range diff.SortedPaths() {
		if e.Library.Exists(path) {
			existing = append(existing, path)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	ok, err := e.Decider.ConfirmOverwrite(ctx, existing)
	if err != nil {
		return err
	}
	if !ok {
		return forkline.ErrAborted
	}
	return nil
}

// write persists each parsed file patch as the appropriate artifact
// kind. Individual write failures are collected, not fatal.
func (e *Extractor) write(diff forkline.Diff, opts Options) *Result {
	res := &Result{Counts: diff.Count()}

	for _, path := range diff.SortedPaths() {
		fp := diff[path]
		if opts.Verbose {
			e.logger().Info("processing", "operation", fp.Operation.String(), "file", path)
		}

		var err error
		switch {
		case fp.Operation == forkline.OpDelete && fp.Content == "":
			err = e.Library.WriteDeletionMarker(path)
		case fp.IsBinary:
			if !opts.IncludeBinary {
				e.logger().Warn("skipping binary file", "file", path)
				res.Skipped++
				continue
			}
			err = e.Library.WriteBinaryMarker(path, fp.Operation)
		case fp.Operation == forkline.OpRename && fp.Content == "":
			err = e.Library.WriteRenameMarker(path, fp.OldPath, fp.Similarity)
		case fp.Content != "":
			err = e.Library.WriteArtifact(path, fp.Content)
		default:
			e.logger().Warn("no patch content", "file", path)
			res.Skipped++
			continue
		}

		if err != nil {
			e.logger().Error("failed to write artifact", "file", path, "err", err)
			res.Failed = append(res.Failed, path)
			continue
		}
		res.Written++
	}
	return res
}

func (r *Result) merge(other *Result) {
	r.Written += other.Written
	r.Skipped += other.Skipped
	r.Failed = append(r.Failed, other.Failed...)
	r.Counts.Added += other.Counts.Added
	r.Counts.Modified += other.Counts.Modified
	r.Counts.Deleted += other.Counts.Deleted
	r.Counts.Renamed += other.Counts.Renamed
	r.Counts.Copied += other.Counts.Copied
	r.Counts.Binary += other.Counts.Binary
	r.Counts.Total += other.Counts.Total
}

func shortRef(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}
