// Package gitdiff validates stored patch artifacts using the
// go-gitdiff parser. It is the structural safety net for the library:
// an artifact that go-gitdiff rejects will also be rejected by git
// apply, so verification catches corruption before an apply run does.
package gitdiff

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"

	"github.com/forkline/forkline/library"
)

// Report summarizes one structurally valid artifact.
type Report struct {
	Files     int
	Fragments int
	Additions int64
	Deletions int64
}

// Issue is a single artifact that failed verification.
type Issue struct {
	Path string // library-relative artifact path
	Err  error
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %v", i.Path, i.Err)
}

// Verifier checks that content artifacts are well-formed unified diffs.
type Verifier struct {
	Logger *slog.Logger
}

// NewVerifier creates a Verifier.
func NewVerifier() *Verifier {
	return &Verifier{}
}

func (v *Verifier) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}

// Verify parses one artifact and reports its shape. Hunk line counts
// are validated by the parse itself.
func (v *Verifier) Verify(r io.Reader) (*Report, error) {
	files, _, err := gitdiff.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("malformed diff: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no file sections found")
	}

	report := &Report{Files: len(files)}
	for _, f := range files {
		report.Fragments += len(f.TextFragments)
		for _, frag := range f.TextFragments {
			report.Additions += frag.LinesAdded
			report.Deletions += frag.LinesDeleted
		}
	}
	return report, nil
}

// VerifyLibrary walks every content artifact in the library and
// collects the ones that fail to parse. Markers carry no diff content
// and are not checked. A nil issue slice means the library is clean.
func (v *Verifier) VerifyLibrary(lib *library.Library) ([]Issue, error) {
	paths, err := lib.ListPatches()
	if err != nil {
		return nil, err
	}

	var issues []Issue
	for _, path := range paths {
		content, err := lib.ReadArtifact(strings.TrimSuffix(path, library.SuffixPatch))
		if err != nil {
			issues = append(issues, Issue{Path: path, Err: err})
			continue
		}
		if _, err := v.Verify(strings.NewReader(content)); err != nil {
			v.logger().Warn("artifact failed verification", "patch", path, "err", err)
			issues = append(issues, Issue{Path: path, Err: err})
		}
	}
	return issues, nil
}
