package forkline

import "io"

// Parser parses unified diff content into domain types.
type Parser interface {
	// Parse reads diff content and returns the per-file change records.
	// Empty input yields an empty Diff, not an error.
	Parse(r io.Reader) (Diff, error)
}
