// Package gitcli implements the forkline.Backend interface by shelling
// out to the git executable. All invocations capture output, replace
// invalid UTF-8, and surface non-zero exits as recoverable errors.
package gitcli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/forkline/forkline"
)

// Compile-time interface verification.
var _ forkline.Backend = (*Git)(nil)

// DefaultTimeout bounds a single git invocation. Large range diffs can
// take a while; callers raise this through the config.
const DefaultTimeout = 60 * time.Second

// Git runs version-control operations in Dir.
type Git struct {
	Dir     string
	Timeout time.Duration
	Logger  *slog.Logger
}

// New creates a backend rooted at dir with the default timeout.
func New(dir string) *Git {
	return &Git{Dir: dir, Timeout: DefaultTimeout, Logger: slog.Default()}
}

// run executes one git command. Non-zero exits and timeouts are
// reported as *forkline.BackendError; the run itself never panics.
func (g *Git) run(ctx context.Context, op string, args ...string) (string, error) {
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if g.Logger != nil {
		g.Logger.Debug("running git", "op", op, "args", args)
	}

	err := cmd.Run()
	out := sanitize(stdout.String())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("timed out after %s: %w", timeout, ctxErr)
		}
		return out, &forkline.BackendError{
			Op:     op,
			Args:   args,
			Stderr: strings.TrimSpace(sanitize(stderr.String())),
			Err:    err,
		}
	}
	return out, nil
}

// sanitize replaces invalid UTF-8 sequences so diff text containing
// stray bytes never corrupts downstream parsing.
func sanitize(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// IsRepository reports whether Dir is inside a git checkout.
func (g *Git) IsRepository(ctx context.Context) bool {
	_, err := g.run(ctx, "rev-parse", "rev-parse", "--git-dir")
	return err == nil
}

// CommitExists verifies that rev resolves to a commit object.
func (g *Git) CommitExists(ctx context.Context, rev string) bool {
	_, err := g.run(ctx, "rev-parse", "rev-parse", "--verify", rev+"^{commit}")
	return err == nil
}

// Diff returns raw unified diff text for the given options.
func (g *Git) Diff(ctx context.Context, opts forkline.DiffOptions) (string, error) {
	args := []string{"diff", opts.Range}
	if opts.Binary {
		args = append(args, "--binary")
	}
	if len(opts.Paths) > 0 {
		args = append(args, "--")
		args = append(args, opts.Paths...)
	}
	return g.run(ctx, "diff", args...)
}

// ChangedFiles lists the paths touched by a single commit.
func (g *Git) ChangedFiles(ctx context.Context, rev string) ([]string, error) {
	out, err := g.run(ctx, "diff-tree", "diff-tree", "--no-commit-id", "--name-only", "-r", rev)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// RangeFiles lists the paths touched anywhere in base..head.
func (g *Git) RangeFiles(ctx context.Context, base, head string) ([]string, error) {
	out, err := g.run(ctx, "diff", "diff", "--name-only", base+".."+head)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// RevList returns the commits in base..head oldest first, so callers
// can replay them in topological order.
func (g *Git) RevList(ctx context.Context, base, head string) ([]string, error) {
	out, err := g.run(ctx, "rev-list", "rev-list", "--reverse", base+".."+head)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// CountCommits returns the number of commits in base..head.
func (g *Git) CountCommits(ctx context.Context, base, head string) (int, error) {
	out, err := g.run(ctx, "rev-list", "rev-list", "--count", base+".."+head)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("parsing commit count %q: %w", strings.TrimSpace(out), err)
	}
	return n, nil
}

// ObjectExists probes whether path exists at rev.
func (g *Git) ObjectExists(ctx context.Context, rev, path string) bool {
	_, err := g.run(ctx, "cat-file", "cat-file", "-e", rev+":"+path)
	return err == nil
}

// commitInfoFormat yields one metadata field per line.
const commitInfoFormat = "--format=%H%n%an%n%ae%n%at%n%s%n%b"

// CommitInfo returns the metadata of a single commit.
func (g *Git) CommitInfo(ctx context.Context, rev string) (*forkline.CommitInfo, error) {
	out, err := g.run(ctx, "show", "show", commitInfoFormat, "--no-patch", rev)
	if err != nil {
		return nil, err
	}
	info, ok := parseCommitInfo(out)
	if !ok {
		return nil, &forkline.NotFoundError{Kind: "commit", Name: rev}
	}
	return info, nil
}

func parseCommitInfo(out string) (*forkline.CommitInfo, bool) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 5 {
		return nil, false
	}
	return &forkline.CommitInfo{
		Hash:        lines[0],
		AuthorName:  lines[1],
		AuthorEmail: lines[2],
		Timestamp:   lines[3],
		Subject:     lines[4],
		Body:        strings.Join(lines[5:], "\n"),
	}, true
}

// Apply applies the patch file at patchPath with the given strategy.
func (g *Git) Apply(ctx context.Context, patchPath string, mode forkline.ApplyMode) error {
	args := []string{"apply"}
	switch mode {
	case forkline.ApplyStandard:
		args = append(args, "-p1")
	case forkline.ApplyWhitespace:
		args = append(args, "-p1", "--ignore-whitespace", "--whitespace=nowarn")
	case forkline.ApplyThreeWay:
		args = append(args, "-p1", "--3way")
	case forkline.ApplyCheck:
		args = append(args, "--check", "-p1")
	}
	args = append(args, patchPath)
	_, err := g.run(ctx, "apply", args...)
	return err
}

// Move records a rename in the working tree.
func (g *Git) Move(ctx context.Context, oldPath, newPath string) error {
	_, err := g.run(ctx, "mv", "mv", oldPath, newPath)
	return err
}

// HasChanges reports whether the working tree has anything to commit.
func (g *Git) HasChanges(ctx context.Context) (bool, error) {
	out, err := g.run(ctx, "status", "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

// Commit stages all changes and commits with the given message.
func (g *Git) Commit(ctx context.Context, message string) error {
	if _, err := g.run(ctx, "add", "add", "-A"); err != nil {
		return err
	}
	_, err := g.run(ctx, "commit", "commit", "-m", message)
	return err
}

func splitLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
