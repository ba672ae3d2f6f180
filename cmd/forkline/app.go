package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/forkline/forkline"
	"github.com/forkline/forkline/apply"
	"github.com/forkline/forkline/config"
	"github.com/forkline/forkline/extract"
	"github.com/forkline/forkline/gitcli"
	"github.com/forkline/forkline/gitdiff"
	"github.com/forkline/forkline/huh"
	"github.com/forkline/forkline/library"
	"github.com/forkline/forkline/registry"
	"github.com/forkline/forkline/unidiff"
)

// ErrNoChanges is re-exported so callers can distinguish an empty diff
// from a failure.
var ErrNoChanges = forkline.ErrNoChanges

// App wires the engine together. Every dependency is injectable for
// testing; NewApp fills in the real ones.
type App struct {
	Backend  forkline.Backend
	Parser   forkline.Parser
	Library  *library.Library
	Registry *registry.Registry
	Decider  forkline.DecisionProvider
	Config   *config.Config

	Out    io.Writer
	ErrOut io.Writer
	Logger *slog.Logger
}

// autoDecider resolves every conflict the same way, for scripted runs.
type autoDecider struct {
	decision forkline.Decision
}

func (d *autoDecider) Decide(_ context.Context, _ forkline.Conflict) (forkline.Decision, error) {
	return d.decision, nil
}

func (d *autoDecider) ConfirmOverwrite(_ context.Context, _ []string) (bool, error) {
	return false, nil
}

// NewApp builds an App from resolved configuration.
func NewApp(cfg *config.Config) *App {
	backend := gitcli.New(cfg.RepoDir)
	backend.Timeout = cfg.GitTimeout

	var decider forkline.DecisionProvider = huh.New()
	if cfg.NonInteractive {
		decision := forkline.DecisionSkip
		if cfg.Decision == "abort" {
			decision = forkline.DecisionAbort
		}
		decider = &autoDecider{decision: decision}
	}

	libRoot := cfg.LibraryDir
	if !filepath.IsAbs(libRoot) && cfg.RepoDir != "" {
		libRoot = filepath.Join(cfg.RepoDir, libRoot)
	}
	lib := library.New(libRoot)

	return &App{
		Backend:  backend,
		Parser:   unidiff.NewParser(),
		Library:  lib,
		Registry: registry.New(filepath.Join(libRoot, "features.yaml")),
		Decider:  decider,
		Config:   cfg,
		Out:      os.Stdout,
		ErrOut:   os.Stderr,
		Logger:   slog.Default(),
	}
}

func (a *App) extractor() *extract.Extractor {
	return &extract.Extractor{
		Backend: a.Backend,
		Parser:  a.Parser,
		Library: a.Library,
		Decider: a.Decider,
		Logger:  a.Logger,
	}
}

func (a *App) applier() *apply.Applier {
	workTree := a.Config.RepoDir
	if workTree == "" {
		workTree = "."
	}
	return &apply.Applier{
		Backend:  a.Backend,
		Library:  a.Library,
		Decider:  a.Decider,
		Logger:   a.Logger,
		WorkTree: workTree,
		Platform: a.Config.Platform,
		OnResult: func(res forkline.ApplyResult) {
			printResult(a.Out, res)
		},
	}
}

func (a *App) requireRepository(ctx context.Context) error {
	if !a.Backend.IsRepository(ctx) {
		return fmt.Errorf("not a git repository: %s", a.Config.RepoDir)
	}
	return nil
}

// ExtractCommit extracts one commit into the library.
func (a *App) ExtractCommit(ctx context.Context, commit string, opts extract.Options) error {
	if err := a.requireRepository(ctx); err != nil {
		return err
	}

	info, err := a.Backend.CommitInfo(ctx, commit)
	if err == nil && info.Subject != "" {
		fmt.Fprintf(a.Out, "Extracting %.8s: %s\n", info.Hash, info.Subject)
	}

	result, err := a.extractor().Commit(ctx, commit, opts)
	if err != nil {
		return err
	}
	printExtractSummary(a.Out, result)
	a.verifyAfterWrite()
	return nil
}

// ExtractRange extracts a commit range, squashed or one commit at a
// time.
func (a *App) ExtractRange(ctx context.Context, base, head string, squash bool, opts extract.Options) error {
	if err := a.requireRepository(ctx); err != nil {
		return err
	}

	if n, err := a.Backend.CountCommits(ctx, base, head); err == nil {
		fmt.Fprintf(a.Out, "Extracting %d commit(s) from %s..%s\n", n, base, head)
	}

	result, err := a.extractor().Range(ctx, base, head, squash, opts)
	if err != nil {
		return err
	}
	printExtractSummary(a.Out, result)
	a.verifyAfterWrite()
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d file(s) failed to extract", len(result.Failed))
	}
	return nil
}

// verifyAfterWrite warns about artifacts the diff parser rejects. The
// extraction itself already succeeded; this only flags suspect output.
func (a *App) verifyAfterWrite() {
	verifier := &gitdiff.Verifier{Logger: a.Logger}
	issues, err := verifier.VerifyLibrary(a.Library)
	if err != nil {
		return
	}
	for _, issue := range issues {
		fmt.Fprintf(a.ErrOut, "warning: %s\n", issue)
	}
}

// ApplyAll replays the series onto the working tree.
func (a *App) ApplyAll(ctx context.Context, opts apply.Options) error {
	if err := a.requireRepository(ctx); err != nil {
		return err
	}

	summary, err := a.applier().Series(ctx, opts)
	if summary != nil {
		printApplySummary(a.Out, summary)
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d patch(es) failed", summary.Failed)
	}
	return nil
}

// ApplyFeature replays a single feature's artifacts.
func (a *App) ApplyFeature(ctx context.Context, name string, opts apply.Options) error {
	if err := a.requireRepository(ctx); err != nil {
		return err
	}

	feature, err := a.Registry.Get(name)
	if err != nil {
		return err
	}

	summary, err := a.applier().Feature(ctx, feature, opts)
	if summary != nil {
		printApplySummary(a.Out, summary)
	}
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d patch(es) failed", summary.Failed)
	}
	return nil
}

// FeatureAdd registers library files under a feature name. When commit
// is non-empty the file list is taken from that commit's changed files.
func (a *App) FeatureAdd(ctx context.Context, name string, files []string, description, commit string) error {
	if commit != "" {
		if err := a.requireRepository(ctx); err != nil {
			return err
		}
		changed, err := a.Backend.ChangedFiles(ctx, commit)
		if err != nil {
			return err
		}
		files = append(files, changed...)
	}
	if len(files) == 0 {
		return errors.New("no files to register: pass file paths or --commit")
	}

	feature, created, err := a.Registry.Add(name, files, description, commit)
	if err != nil {
		return err
	}
	verb := "Updated"
	if created {
		verb = "Created"
	}
	fmt.Fprintf(a.Out, "%s feature %q (%d file(s))\n", verb, name, len(feature.Files))
	return nil
}

// FeatureList prints the registered features as a table.
func (a *App) FeatureList(_ context.Context) error {
	features, err := a.Registry.List()
	if err != nil {
		return err
	}
	if len(features) == 0 {
		fmt.Fprintln(a.Out, "No features registered.")
		return nil
	}
	printFeatureTable(a.Out, features)
	return nil
}

// FeatureShow prints one feature and flags files with no artifact.
func (a *App) FeatureShow(_ context.Context, name string) error {
	feature, err := a.Registry.Get(name)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.Out, "Feature: %s\n", feature.Name)
	if feature.Description != "" {
		fmt.Fprintf(a.Out, "Description: %s\n", feature.Description)
	}
	fmt.Fprintf(a.Out, "Files (%d):\n", len(feature.Files))
	for _, file := range feature.Files {
		marker := " "
		if !a.Library.Exists(file) {
			marker = "!"
		}
		fmt.Fprintf(a.Out, "  %s %s\n", marker, file)
	}
	return nil
}

// FeatureRemove unregisters a feature. Artifacts stay in the library.
func (a *App) FeatureRemove(_ context.Context, name string) error {
	if err := a.Registry.Remove(name); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "Removed feature %q\n", name)
	return nil
}

// GeneratePatch writes a feature's combined patch to output, or stdout
// when output is empty. Missing artifacts are reported, not fatal.
func (a *App) GeneratePatch(_ context.Context, name, output string) error {
	combined, missing, err := a.Registry.GeneratePatch(name, a.Library)
	if err != nil {
		return err
	}
	for _, path := range missing {
		fmt.Fprintf(a.ErrOut, "warning: no artifact for %s\n", path)
	}

	if output == "" {
		_, err := io.WriteString(a.Out, combined)
		return err
	}
	if err := os.WriteFile(output, []byte(combined), 0o644); err != nil {
		return fmt.Errorf("writing combined patch: %w", err)
	}
	fmt.Fprintf(a.Out, "Wrote %s\n", output)
	return nil
}

// Verify checks every content artifact in the library parses as a
// valid diff.
func (a *App) Verify(_ context.Context) error {
	verifier := &gitdiff.Verifier{Logger: a.Logger}
	issues, err := verifier.VerifyLibrary(a.Library)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		printOK(a.Out, "library is clean")
		return nil
	}
	for _, issue := range issues {
		printFail(a.Out, issue.String())
	}
	return fmt.Errorf("%d artifact(s) failed verification", len(issues))
}

// statusLine renders one apply result the way the run prints it.
func statusLine(res forkline.ApplyResult) string {
	line := fmt.Sprintf("%s: %s", res.Status, res.Patch)
	if res.Message != "" {
		line += " (" + res.Message + ")"
	}
	return line
}
