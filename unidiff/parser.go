// Package unidiff parses unified diff text, as produced by the
// version-control backend, into per-file change records.
package unidiff

import (
	"bufio"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/forkline/forkline"
)

// Compile-time interface verification.
var _ forkline.Parser = (*Parser)(nil)

// maxLineSize bounds a single diff line. Generated sources can carry
// very long lines, well past bufio's 64KB default.
const maxLineSize = 16 * 1024 * 1024

var (
	headerRe     = regexp.MustCompile(`^diff --git a/(.*) b/(.*)$`)
	similarityRe = regexp.MustCompile(`^similarity index (\d+)%`)
)

// Parser converts raw diff output into a forkline.Diff. The zero value
// is usable; Logger defaults to slog.Default.
type Parser struct {
	Logger *slog.Logger
}

// NewParser creates a Parser logging through the default slog logger.
func NewParser() *Parser {
	return &Parser{Logger: slog.Default()}
}

// section accumulates one file's lines between diff boundaries. It is
// the explicit state of the line scanner: started fresh on every
// `diff --git` header and finalized into a FilePatch on the next
// boundary or at end of input.
type section struct {
	path       string
	op         forkline.FileOperation
	oldPath    string
	similarity int
	lines      []string
	isBinary   bool
	sawHunk    bool
}

// Parse reads diff content and returns the per-file change records.
// Empty input yields an empty Diff. Unparseable `diff --git` headers are
// logged and the section is skipped; they never fail the whole parse.
func (p *Parser) Parse(r io.Reader) (forkline.Diff, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	diff := forkline.Diff{}
	var cur *section

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "diff --git") {
			cur.finalizeInto(diff)

			m := headerRe.FindStringSubmatch(line)
			if m == nil {
				logger.Warn("could not parse diff header, skipping section", "line", line)
				cur = nil
				continue
			}
			cur = &section{
				path:  m[2],
				op:    forkline.OpModify,
				lines: []string{line},
			}
			continue
		}

		if cur == nil {
			continue
		}
		cur.feed(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	cur.finalizeInto(diff)

	return diff, nil
}

// feed classifies one body line. Structural headers may arrive in any
// order; every line is kept verbatim so the artifact replays
// byte-for-byte.
func (s *section) feed(line string) {
	switch {
	case strings.HasPrefix(line, "new file"):
		s.op = forkline.OpAdd
	case strings.HasPrefix(line, "deleted file"):
		s.op = forkline.OpDelete
	case strings.HasPrefix(line, "similarity index"):
		if m := similarityRe.FindStringSubmatch(line); m != nil {
			s.similarity, _ = strconv.Atoi(m[1])
		}
	case strings.HasPrefix(line, "rename from"):
		s.op = forkline.OpRename
		s.oldPath = strings.TrimSpace(strings.TrimPrefix(line, "rename from "))
	case strings.HasPrefix(line, "copy from"):
		s.op = forkline.OpCopy
		s.oldPath = strings.TrimSpace(strings.TrimPrefix(line, "copy from "))
	case strings.HasPrefix(line, "Binary files"):
		s.isBinary = true
		if s.op == forkline.OpModify {
			s.op = forkline.OpBinary
		}
	case strings.HasPrefix(line, "@@"):
		s.sawHunk = true
	}
	s.lines = append(s.lines, line)
}

// finalizeInto converts the accumulated section into a FilePatch. A nil
// receiver is a no-op so callers can finalize unconditionally.
func (s *section) finalizeInto(diff forkline.Diff) {
	if s == nil {
		return
	}

	fp := &forkline.FilePatch{
		Path:       s.path,
		Operation:  s.op,
		OldPath:    s.oldPath,
		Similarity: s.similarity,
		IsBinary:   s.isBinary,
	}

	switch {
	case s.isBinary:
		// Binary payloads are opaque; content is never captured.
	case (s.op == forkline.OpRename || s.op == forkline.OpCopy) && !s.sawHunk:
		// Pure rename or copy carries no content delta.
	default:
		fp.Content = strings.Join(s.lines, "\n")
	}

	diff[s.path] = fp
}
