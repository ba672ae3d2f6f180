// Package huh provides an interactive terminal decision provider built
// on huh forms, with lipgloss-styled conflict context.
package huh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	form "github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/forkline/forkline"
)

// Compile-time interface verification.
var _ forkline.DecisionProvider = (*Provider)(nil)

// previewLines caps the patch excerpt shown above the conflict menu.
const previewLines = 50

var (
	bannerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("9")).
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	stderrStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	previewStyle = lipgloss.NewStyle().Faint(true)
)

// Provider prompts the operator on the terminal when a patch conflicts
// or an extraction would overwrite existing artifacts.
type Provider struct {
	// Out receives the rendered conflict context. Defaults to stdout.
	Out io.Writer
}

// New creates a terminal-backed decision provider.
func New() *Provider {
	return &Provider{}
}

func (p *Provider) out() io.Writer {
	if p.Out != nil {
		return p.Out
	}
	return os.Stdout
}

// Decide renders the conflict and asks the operator how to proceed.
// Ctrl-C is treated as an abort, not an error.
func (p *Provider) Decide(ctx context.Context, c forkline.Conflict) (forkline.Decision, error) {
	p.renderConflict(c)

	decision := forkline.DecisionSkip
	sel := form.NewSelect[forkline.Decision]().
		Title("How do you want to proceed?").
		Options(
			form.NewOption("Skip this patch and continue", forkline.DecisionSkip),
			form.NewOption("Retry (I fixed the tree in another terminal)", forkline.DecisionRetry),
			form.NewOption("Mark as manually fixed and continue", forkline.DecisionManualFix),
			form.NewOption("Abort the run", forkline.DecisionAbort),
		).
		Value(&decision)

	if err := form.NewForm(form.NewGroup(sel)).RunWithContext(ctx); err != nil {
		if errors.Is(err, form.ErrUserAborted) {
			return forkline.DecisionAbort, nil
		}
		return forkline.DecisionAbort, fmt.Errorf("conflict prompt: %w", err)
	}
	return decision, nil
}

// ConfirmOverwrite lists the artifacts that already exist and asks
// whether extraction may replace them.
func (p *Provider) ConfirmOverwrite(ctx context.Context, existing []string) (bool, error) {
	fmt.Fprintln(p.out(), stderrStyle.Render(fmt.Sprintf("%d artifact(s) already exist:", len(existing))))
	for _, path := range existing {
		fmt.Fprintln(p.out(), "  "+path)
	}

	overwrite := false
	confirm := form.NewConfirm().
		Title("Overwrite existing artifacts?").
		Affirmative("Overwrite").
		Negative("Cancel").
		Value(&overwrite)

	if err := form.NewForm(form.NewGroup(confirm)).RunWithContext(ctx); err != nil {
		if errors.Is(err, form.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("overwrite prompt: %w", err)
	}
	return overwrite, nil
}

func (p *Provider) renderConflict(c forkline.Conflict) {
	banner := fmt.Sprintf("Conflict [%d/%d]: %s", c.Position, c.Total, c.Patch)
	fmt.Fprintln(p.out(), bannerStyle.Render(banner))

	if stderr := strings.TrimSpace(c.Stderr); stderr != "" {
		fmt.Fprintln(p.out(), stderrStyle.Render(stderr))
	}
	if preview := Preview(c.Content, previewLines); preview != "" {
		fmt.Fprintln(p.out(), previewStyle.Render(preview))
	}
}

// Preview returns at most maxLines lines of a patch, with a truncation
// note when content was cut.
func Preview(content string, maxLines int) string {
	if content == "" {
		return ""
	}
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) <= maxLines {
		return strings.Join(lines, "\n")
	}
	shown := lines[:maxLines]
	return strings.Join(shown, "\n") + fmt.Sprintf("\n... (%d more lines)", len(lines)-maxLines)
}
