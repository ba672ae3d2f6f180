// Package apply replays patch library artifacts onto a working tree.
//
// Each patch walks a layered retry ladder: standard apply, then
// whitespace-tolerant, then three-way merge. A patch that exhausts the
// ladder is a conflict, resolved through the configured decision
// provider. Patches are processed strictly one at a time, in list
// order, because every attempt mutates shared working-tree state.
package apply

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/forkline/forkline"
	"github.com/forkline/forkline/library"
)

// Applier replays artifacts through the version-control backend.
type Applier struct {
	Backend  forkline.Backend
	Library  *library.Library
	Decider  forkline.DecisionProvider
	Logger   *slog.Logger
	WorkTree string // working tree root, for deletion markers
	Platform string // host platform; defaults to HostPlatform()

	// OnResult, when set, observes each patch outcome as it happens.
	OnResult func(forkline.ApplyResult)
}

// Options control a single apply run.
type Options struct {
	// DryRun checks each patch without touching the working tree.
	DryRun bool
	// CommitEach commits after every successful apply, giving the
	// operator a bisectable history and a rollback point.
	CommitEach bool
	// AbortOnFailure stops the run at the first failed patch.
	AbortOnFailure bool
}

// Summary reports an apply run. Skipped entries are excluded from both
// the applied and failed tallies.
type Summary struct {
	Results []forkline.ApplyResult
	Applied int
	Failed  int
	Skipped int

	// LastSuccessIndex is the 0-based index into Results of the most
	// recent success, or -1. After an interrupt the operator resumes
	// from here; completed patches are never rolled back.
	LastSuccessIndex int
}

func (a *Applier) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Applier) platform() string {
	if a.Platform != "" {
		return a.Platform
	}
	return HostPlatform()
}

// Series replays the whole patch series in order. Entries whose skip
// directive matches the host platform are not attempted at all. A
// series with every entry skipped is a success with zero applied.
func (a *Applier) Series(ctx context.Context, opts Options) (*Summary, error) {
	entries, err := a.Library.LoadSeries()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, forkline.ErrEmptySeries
	}

	summary := &Summary{LastSuccessIndex: -1}
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			// Cooperative cancellation: completed patches stay as they
			// are; resuming is the operator's call.
			return summary, err
		}

		if skipsPlatform(a.platform(), entry.SkipPlatforms) {
			a.record(summary, forkline.ApplyResult{
				Patch:   entry.PatchPath,
				Status:  forkline.StatusSkipped,
				Message: fmt.Sprintf("not for platform %s", a.platform()),
			})
			continue
		}

		artifact := filepath.Join(a.Library.Root, filepath.FromSlash(entry.PatchPath))
		if _, err := os.Stat(artifact); err != nil {
			a.logger().Warn("patch file not found, skipping", "patch", entry.PatchPath)
			a.record(summary, forkline.ApplyResult{
				Patch:   entry.PatchPath,
				Status:  forkline.StatusSkipped,
				Message: "patch file not found",
			})
			continue
		}

		res, err := a.applyOne(ctx, artifact, entry.PatchPath, i+1, len(entries), opts)
		if err != nil {
			a.record(summary, res)
			return summary, err
		}
		a.record(summary, res)
		if res.Status == forkline.StatusFailed && opts.AbortOnFailure {
			return summary, &forkline.ConflictError{Patch: entry.PatchPath}
		}
		if res.Status.Succeeded() && opts.CommitEach && !opts.DryRun {
			if err := a.checkpoint(ctx, "patch: "+stem(entry.PatchPath)); err != nil {
				a.logger().Warn("failed to commit checkpoint", "patch", entry.PatchPath, "err", err)
			}
		}
	}
	return summary, nil
}

// Feature replays the artifacts of one feature, in its sorted file
// order. Files with no artifact are reported as failed, matching the
// registry's view that the feature is incomplete.
func (a *Applier) Feature(ctx context.Context, feature *forkline.Feature, opts Options) (*Summary, error) {
	summary := &Summary{LastSuccessIndex: -1}
	for i, file := range feature.Files {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		artifact := a.artifactFor(file)
		if artifact == "" {
			a.logger().Warn("no artifact for feature file", "file", file)
			a.record(summary, forkline.ApplyResult{
				Patch:   file,
				Status:  forkline.StatusFailed,
				Message: "artifact not found",
			})
			continue
		}

		res, err := a.applyOne(ctx, artifact, file, i+1, len(feature.Files), opts)
		if err != nil {
			a.record(summary, res)
			return summary, err
		}
		a.record(summary, res)
		if res.Status == forkline.StatusFailed && opts.AbortOnFailure {
			return summary, &forkline.ConflictError{Patch: file}
		}
		if res.Status.Succeeded() && opts.CommitEach && !opts.DryRun {
			msg := fmt.Sprintf("Apply %s: %s", feature.Name, filepath.Base(file))
			if err := a.checkpoint(ctx, msg); err != nil {
				a.logger().Warn("failed to commit checkpoint", "file", file, "err", err)
			}
		}
	}
	return summary, nil
}

// artifactFor locates the artifact of a feature file, whichever kind
// it is. Returns "" when nothing is tracked for the path.
func (a *Applier) artifactFor(file string) string {
	for _, suffix := range []string{library.SuffixPatch, library.SuffixDelete, library.SuffixBinary, library.SuffixRename} {
		candidate := filepath.Join(a.Library.Root, filepath.FromSlash(file)+suffix)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// applyOne resolves a single artifact to its terminal status. Only a
// run-fatal condition (abort, cancellation) is returned as an error;
// per-patch failures live in the result.
func (a *Applier) applyOne(ctx context.Context, artifact, display string, pos, total int, opts Options) (forkline.ApplyResult, error) {
	switch {
	case strings.HasSuffix(artifact, library.SuffixDelete):
		return a.applyDeletion(artifact, display, opts), nil
	case strings.HasSuffix(artifact, library.SuffixBinary):
		// Binary payloads are never captured, so there is nothing to
		// replay. This must fail loudly rather than silently skip.
		err := &forkline.AmbiguousStateError{Patch: display, Reason: "binary payload not stored"}
		return forkline.ApplyResult{Patch: display, Status: forkline.StatusFailed, Message: err.Error()}, nil
	case strings.HasSuffix(artifact, library.SuffixRename):
		return a.applyRename(ctx, artifact, display, opts), nil
	default:
		return a.applyContent(ctx, artifact, display, pos, total, opts)
	}
}

// applyDeletion deletes the target file. Deletion is idempotent: a
// target that is already absent is a success.
func (a *Applier) applyDeletion(artifact, display string, opts Options) forkline.ApplyResult {
	rel, err := filepath.Rel(a.Library.Root, strings.TrimSuffix(artifact, library.SuffixDelete))
	if err != nil {
		return forkline.ApplyResult{Patch: display, Status: forkline.StatusFailed, Message: err.Error()}
	}
	target := filepath.Join(a.WorkTree, rel)

	if _, err := os.Stat(target); os.IsNotExist(err) {
		return forkline.ApplyResult{Patch: display, Status: forkline.StatusApplied, Message: "already deleted"}
	}
	if opts.DryRun {
		return forkline.ApplyResult{Patch: display, Status: forkline.StatusApplied, Message: "would delete"}
	}
	if err := os.Remove(target); err != nil {
		return forkline.ApplyResult{Patch: display, Status: forkline.StatusFailed, Message: err.Error()}
	}
	return forkline.ApplyResult{Patch: display, Status: forkline.StatusApplied, Message: "deleted"}
}

// applyRename replays a pure rename. Best-effort: the backend still
// has to execute the rename against the current tree.
func (a *Applier) applyRename(ctx context.Context, artifact, display string, opts Options) forkline.ApplyResult {
	rel, err := filepath.Rel(a.Library.Root, strings.TrimSuffix(artifact, library.SuffixRename))
	if err != nil {
		return forkline.ApplyResult{Patch: display, Status: forkline.StatusFailed, Message: err.Error()}
	}
	oldPath, _, err := a.Library.ReadRenameMarker(filepath.ToSlash(rel))
	if err != nil {
		return forkline.ApplyResult{Patch: display, Status: forkline.StatusFailed, Message: err.Error()}
	}
	if opts.DryRun {
		return forkline.ApplyResult{Patch: display, Status: forkline.StatusApplied, Message: "would rename from " + oldPath}
	}
	if err := a.Backend.Move(ctx, oldPath, filepath.ToSlash(rel)); err != nil {
		return forkline.ApplyResult{Patch: display, Status: forkline.StatusFailed, Message: err.Error()}
	}
	return forkline.ApplyResult{Patch: display, Status: forkline.StatusApplied, Message: "renamed from " + oldPath}
}

// applyContent walks the retry ladder for a content patch and consults
// the decision provider when every strategy fails.
func (a *Applier) applyContent(ctx context.Context, artifact, display string, pos, total int, opts Options) (forkline.ApplyResult, error) {
	if opts.DryRun {
		if err := a.Backend.Apply(ctx, artifact, forkline.ApplyCheck); err != nil {
			return forkline.ApplyResult{Patch: display, Status: forkline.StatusFailed, Message: "would fail"}, nil
		}
		return forkline.ApplyResult{Patch: display, Status: forkline.StatusApplied, Message: "would apply"}, nil
	}

	for {
		status, lastErr := a.ladder(ctx, artifact)
		if status != forkline.StatusFailed {
			return forkline.ApplyResult{Patch: display, Status: status}, nil
		}

		conflict := forkline.Conflict{
			Patch:    display,
			Stderr:   backendStderr(lastErr),
			Position: pos,
			Total:    total,
		}
		if content, err := os.ReadFile(artifact); err == nil {
			conflict.Content = string(content)
		}

		decision, err := a.Decider.Decide(ctx, conflict)
		if err != nil {
			return forkline.ApplyResult{Patch: display, Status: forkline.StatusFailed, Message: err.Error()}, err
		}
		switch decision {
		case forkline.DecisionSkip:
			return forkline.ApplyResult{Patch: display, Status: forkline.StatusFailed, Message: conflict.Stderr}, nil
		case forkline.DecisionRetry:
			continue
		case forkline.DecisionManualFix:
			return forkline.ApplyResult{Patch: display, Status: forkline.StatusManuallyFixed}, nil
		case forkline.DecisionAbort:
			return forkline.ApplyResult{Patch: display, Status: forkline.StatusFailed, Message: "aborted"}, forkline.ErrAborted
		}
	}
}

// ladder tries each strategy in order and returns the first success.
func (a *Applier) ladder(ctx context.Context, artifact string) (forkline.ApplyStatus, error) {
	attempts := []struct {
		mode   forkline.ApplyMode
		status forkline.ApplyStatus
	}{
		{forkline.ApplyStandard, forkline.StatusApplied},
		{forkline.ApplyWhitespace, forkline.StatusAppliedWhitespace},
		{forkline.ApplyThreeWay, forkline.StatusAppliedThreeWay},
	}

	var lastErr error
	for _, attempt := range attempts {
		if err := a.Backend.Apply(ctx, artifact, attempt.mode); err != nil {
			lastErr = err
			continue
		}
		return attempt.status, nil
	}
	return forkline.StatusFailed, lastErr
}

// checkpoint commits the applied patch when there is anything staged.
func (a *Applier) checkpoint(ctx context.Context, message string) error {
	has, err := a.Backend.HasChanges(ctx)
	if err != nil {
		return err
	}
	if !has {
		a.logger().Warn("nothing to commit, working tree clean")
		return nil
	}
	return a.Backend.Commit(ctx, message)
}

func (a *Applier) record(summary *Summary, res forkline.ApplyResult) {
	summary.Results = append(summary.Results, res)
	switch {
	case res.Status == forkline.StatusSkipped:
		summary.Skipped++
	case res.Status.Succeeded():
		summary.Applied++
		summary.LastSuccessIndex = len(summary.Results) - 1
	default:
		summary.Failed++
	}
	if a.OnResult != nil {
		a.OnResult(res)
	}
}

func backendStderr(err error) string {
	var be *forkline.BackendError
	if errors.As(err, &be) {
		return be.Stderr
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// stem strips the artifact suffix for commit messages.
func stem(patchPath string) string {
	base := patchPath
	for _, suffix := range []string{library.SuffixPatch, library.SuffixDelete, library.SuffixBinary, library.SuffixRename} {
		base = strings.TrimSuffix(base, suffix)
	}
	return base
}
