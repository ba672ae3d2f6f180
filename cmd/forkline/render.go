package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/forkline/forkline"
	"github.com/forkline/forkline/apply"
	"github.com/forkline/forkline/extract"
)

// maxFailedListed caps the failed-file listing after an extraction.
const maxFailedListed = 10

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

func printOK(w io.Writer, msg string) {
	green.Fprintf(w, "✓ %s\n", msg)
}

func printFail(w io.Writer, msg string) {
	red.Fprintf(w, "✗ %s\n", msg)
}

// printResult renders one apply outcome as it happens.
func printResult(w io.Writer, res forkline.ApplyResult) {
	switch {
	case res.Status.Succeeded():
		green.Fprintf(w, "✓ %s\n", statusLine(res))
	case res.Status == forkline.StatusSkipped:
		yellow.Fprintf(w, "- %s\n", statusLine(res))
	default:
		red.Fprintf(w, "✗ %s\n", statusLine(res))
	}
}

// printExtractSummary renders per-operation counts after an extraction.
func printExtractSummary(w io.Writer, res *extract.Result) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false

	tbl.AppendHeader(table.Row{"Operation", "Count"})
	c := res.Counts
	for _, row := range []struct {
		label string
		count int
	}{
		{"Added", c.Added},
		{"Modified", c.Modified},
		{"Deleted", c.Deleted},
		{"Renamed", c.Renamed},
		{"Copied", c.Copied},
		{"Binary", c.Binary},
	} {
		if row.count > 0 {
			tbl.AppendRow(table.Row{row.label, row.count})
		}
	}
	tbl.AppendFooter(table.Row{"Written", res.Written})
	tbl.Render()

	if res.Skipped > 0 {
		yellow.Fprintf(w, "%d file(s) skipped\n", res.Skipped)
	}
	failed := res.Failed
	if len(failed) > maxFailedListed {
		failed = failed[:maxFailedListed]
	}
	for _, path := range failed {
		printFail(w, "failed to extract "+path)
	}
	if rest := len(res.Failed) - len(failed); rest > 0 {
		red.Fprintf(w, "  ... and %d more\n", rest)
	}
}

// printApplySummary renders the run totals after an apply.
func printApplySummary(w io.Writer, summary *apply.Summary) {
	fmt.Fprintf(w, "\n%d applied, %d failed, %d skipped (of %d)\n",
		summary.Applied, summary.Failed, summary.Skipped, len(summary.Results))
}

// printFeatureTable renders the feature registry listing.
func printFeatureTable(w io.Writer, features []*forkline.Feature) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)

	tbl.AppendHeader(table.Row{"Name", "Files", "Description"})
	for _, f := range features {
		tbl.AppendRow(table.Row{f.Name, len(f.Files), f.Description})
	}
	tbl.Render()
}
