// Package library persists parsed file patches as individually
// addressable artifacts on disk. The layout mirrors the tracked source
// tree: <path>.patch for content, <path>.deleted, <path>.binary and
// <path>.rename as markers, plus a flat "series" file at the root that
// orders whole-tree replay.
package library

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forkline/forkline"
)

// Artifact suffixes. Exactly one kind exists per tracked path at a time.
const (
	SuffixPatch  = ".patch"
	SuffixDelete = ".deleted"
	SuffixBinary = ".binary"
	SuffixRename = ".rename"
)

// Library is the on-disk patch store rooted at Root.
type Library struct {
	Root string
}

// New creates a Library rooted at the given directory.
func New(root string) *Library {
	return &Library{Root: root}
}

// PathFor maps a repository-relative file path to its content artifact.
func (l *Library) PathFor(filePath string) string {
	return filepath.Join(l.Root, filePath+SuffixPatch)
}

// markerPath maps a file path to a marker artifact with the given suffix.
func (l *Library) markerPath(filePath, suffix string) string {
	return filepath.Join(l.Root, filePath+suffix)
}

// Exists reports whether any artifact kind is already tracked for the
// given file path. Used as the overwrite safety gate during extraction.
func (l *Library) Exists(filePath string) bool {
	for _, suffix := range []string{SuffixPatch, SuffixDelete, SuffixBinary, SuffixRename} {
		if _, err := os.Stat(l.markerPath(filePath, suffix)); err == nil {
			return true
		}
	}
	return false
}

// WriteArtifact stores patch content for a file, creating parent
// directories as needed and normalizing to a trailing newline.
func (l *Library) WriteArtifact(filePath, content string) error {
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return l.write(l.PathFor(filePath), content)
}

// WriteDeletionMarker records that a tracked file is deleted.
func (l *Library) WriteDeletionMarker(filePath string) error {
	content := fmt.Sprintf("File deleted in patch\nOriginal path: %s\n", filePath)
	return l.write(l.markerPath(filePath, SuffixDelete), content)
}

// WriteBinaryMarker records a binary change. The payload itself is
// opaque and never stored.
func (l *Library) WriteBinaryMarker(filePath string, op forkline.FileOperation) error {
	content := fmt.Sprintf("Binary file\nOperation: %s\nOriginal path: %s\n", op, filePath)
	return l.write(l.markerPath(filePath, SuffixBinary), content)
}

// WriteRenameMarker records a pure rename that carries no content delta.
func (l *Library) WriteRenameMarker(filePath, oldPath string, similarity int) error {
	content := fmt.Sprintf("Renamed from: %s\nSimilarity: %d%%\n", oldPath, similarity)
	return l.write(l.markerPath(filePath, SuffixRename), content)
}

func (l *Library) write(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}
	return nil
}

// ReadArtifact returns the stored content artifact for a file path.
func (l *Library) ReadArtifact(filePath string) (string, error) {
	data, err := os.ReadFile(l.PathFor(filePath))
	if os.IsNotExist(err) {
		return "", &forkline.NotFoundError{Kind: "artifact", Name: filePath}
	}
	if err != nil {
		return "", fmt.Errorf("reading artifact: %w", err)
	}
	return string(data), nil
}

// ReadRenameMarker parses a rename marker back into its old path and
// similarity. Markers are human-readable records, so parsing tolerates
// a missing similarity line.
func (l *Library) ReadRenameMarker(filePath string) (oldPath string, similarity int, err error) {
	data, err := os.ReadFile(l.markerPath(filePath, SuffixRename))
	if os.IsNotExist(err) {
		return "", 0, &forkline.NotFoundError{Kind: "artifact", Name: filePath}
	}
	if err != nil {
		return "", 0, fmt.Errorf("reading rename marker: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if after, ok := strings.CutPrefix(line, "Renamed from: "); ok {
			oldPath = strings.TrimSpace(after)
		}
		if after, ok := strings.CutPrefix(line, "Similarity: "); ok {
			fmt.Sscanf(after, "%d%%", &similarity)
		}
	}
	if oldPath == "" {
		return "", 0, fmt.Errorf("rename marker for %s has no old path", filePath)
	}
	return oldPath, similarity, nil
}

// ListPatches returns library-relative paths of all content artifacts,
// sorted for reproducible runs. Markers and hidden files are excluded.
func (l *Library) ListPatches() ([]string, error) {
	return l.list(func(name string) bool {
		return strings.HasSuffix(name, SuffixPatch)
	})
}

// ListAll returns library-relative paths of every tracked artifact,
// content and markers alike, sorted.
func (l *Library) ListAll() ([]string, error) {
	return l.list(func(name string) bool {
		switch {
		case strings.HasSuffix(name, SuffixPatch),
			strings.HasSuffix(name, SuffixDelete),
			strings.HasSuffix(name, SuffixBinary),
			strings.HasSuffix(name, SuffixRename):
			return true
		}
		return false
	})
}

func (l *Library) list(match func(string) bool) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") && path != l.Root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !match(name) {
			return nil
		}
		rel, err := filepath.Rel(l.Root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if os.IsNotExist(err) {
		return nil, &forkline.NotFoundError{Kind: "artifact", Name: l.Root}
	}
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}
