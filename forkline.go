// Package forkline provides domain types for maintaining a patch queue
// on top of a large upstream source tree. Patches are tracked per file,
// grouped into named features, and replayed onto a working tree through
// a version-control backend.
package forkline

import "sort"

// FileOperation is the kind of change a diff records for a single file.
type FileOperation int

// File operation kinds. Exactly one applies per changed file per diff.
const (
	OpModify FileOperation = iota
	OpAdd
	OpDelete
	OpRename
	OpCopy
	OpBinary
)

// String returns the lower-case name used in summaries and marker files.
func (op FileOperation) String() string {
	switch op {
	case OpAdd:
		return "add"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	case OpCopy:
		return "copy"
	case OpBinary:
		return "binary"
	}
	return "unknown"
}

// FilePatch is the parsed change record for one file within a diff.
//
// Exactly one of the following holds: Content is non-empty, IsBinary is
// true, or Operation is OpDelete with no content.
type FilePatch struct {
	Path       string        // post-change repository-relative path
	Operation  FileOperation
	OldPath    string        // pre-change path, renames and copies only
	Similarity int           // percent, renames and copies only
	Content    string        // literal hunk text; empty for binary files
	IsBinary   bool
}

// Diff is one parsed unified diff, keyed by post-change file path.
// Keys are unique because a diff names each file exactly once.
type Diff map[string]*FilePatch

// SortedPaths returns the file paths in lexicographic order for
// deterministic iteration.
func (d Diff) SortedPaths() []string {
	paths := make([]string, 0, len(d))
	for p := range d {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// OperationCounts tallies a diff by operation kind for summary reporting.
type OperationCounts struct {
	Added    int
	Modified int
	Deleted  int
	Renamed  int
	Copied   int
	Binary   int
	Total    int
}

// Count returns per-operation totals. Binary counts files with opaque
// content regardless of their operation kind.
func (d Diff) Count() OperationCounts {
	var c OperationCounts
	for _, fp := range d {
		c.Total++
		if fp.IsBinary {
			c.Binary++
		}
		switch fp.Operation {
		case OpAdd:
			c.Added++
		case OpModify:
			c.Modified++
		case OpDelete:
			c.Deleted++
		case OpRename:
			c.Renamed++
		case OpCopy:
			c.Copied++
		case OpBinary:
			// Counted via the IsBinary tally above.
		}
	}
	return c
}

// SeriesEntry is one ordered item of the patch series. Order is the
// required application order and is never sorted or deduplicated.
type SeriesEntry struct {
	PatchPath     string   // location relative to the library root
	SkipPlatforms []string // platform aliases this patch must not run on
}

// Feature is a named grouping of tracked file paths representing one
// logical change, independent of series order.
type Feature struct {
	Name        string   `yaml:"-"`
	Description string   `yaml:"description"`
	Files       []string `yaml:"files"`
}

// CommitInfo is the metadata of a single backend commit.
type CommitInfo struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	Timestamp   string
	Subject     string
	Body        string
}
