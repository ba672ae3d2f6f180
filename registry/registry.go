// Package registry persists feature definitions: named groupings of
// tracked file paths with a description. The store is a single YAML
// document that is safe to hand-edit.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/forkline/forkline"
	"github.com/forkline/forkline/library"
)

// documentVersion is written to new registry files.
const documentVersion = "1.0"

type document struct {
	Version  string                       `yaml:"version"`
	Features map[string]*forkline.Feature `yaml:"features"`
}

// Registry is a feature store backed by one YAML file.
type Registry struct {
	Path string
}

// New creates a Registry backed by the file at path.
func New(path string) *Registry {
	return &Registry{Path: path}
}

func (r *Registry) load() (*document, error) {
	data, err := os.ReadFile(r.Path)
	if os.IsNotExist(err) {
		return &document{Version: documentVersion, Features: map[string]*forkline.Feature{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing registry: %w", err)
	}
	if doc.Version == "" {
		doc.Version = documentVersion
	}
	if doc.Features == nil {
		doc.Features = map[string]*forkline.Feature{}
	}
	for name, f := range doc.Features {
		f.Name = name
	}
	return &doc, nil
}

func (r *Registry) save(doc *document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding registry: %w", err)
	}
	if dir := filepath.Dir(r.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating registry directory: %w", err)
		}
	}
	if err := os.WriteFile(r.Path, data, 0o644); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}

// Add records files under a feature name. An existing feature is
// extended by set union and keeps its description unless a new one is
// given explicitly. A new feature with no description gets one
// synthesized from the source commit. The returned bool reports whether
// the feature was created rather than updated.
func (r *Registry) Add(name string, files []string, description, sourceCommit string) (*forkline.Feature, bool, error) {
	doc, err := r.load()
	if err != nil {
		return nil, false, err
	}

	if existing, ok := doc.Features[name]; ok {
		existing.Files = unionSorted(existing.Files, files)
		if description != "" {
			existing.Description = description
		}
		if err := r.save(doc); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	if description == "" {
		description = fmt.Sprintf("Feature from commit %s", shortRef(sourceCommit))
	}
	f := &forkline.Feature{
		Name:        name,
		Description: description,
		Files:       unionSorted(nil, files),
	}
	doc.Features[name] = f
	if err := r.save(doc); err != nil {
		return nil, false, err
	}
	return f, true, nil
}

// List returns all features sorted by name.
func (r *Registry) List() ([]*forkline.Feature, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	features := make([]*forkline.Feature, 0, len(doc.Features))
	for _, f := range doc.Features {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool { return features[i].Name < features[j].Name })
	return features, nil
}

// Get returns the named feature or a NotFoundError.
func (r *Registry) Get(name string) (*forkline.Feature, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	f, ok := doc.Features[name]
	if !ok {
		return nil, &forkline.NotFoundError{Kind: "feature", Name: name}
	}
	return f, nil
}

// Remove deletes the named feature or returns a NotFoundError.
func (r *Registry) Remove(name string) error {
	doc, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Features[name]; !ok {
		return &forkline.NotFoundError{Kind: "feature", Name: name}
	}
	delete(doc.Features, name)
	return r.save(doc)
}

// GeneratePatch concatenates every tracked artifact of the feature, in
// sorted file order, behind a header block. Files with no artifact are
// returned as missing but do not abort the operation.
func (r *Registry) GeneratePatch(name string, lib *library.Library) (combined string, missing []string, err error) {
	f, err := r.Get(name)
	if err != nil {
		return "", nil, err
	}

	var parts []string
	for _, file := range f.Files {
		content, err := lib.ReadArtifact(file)
		if err != nil {
			if forkline.IsNotFound(err) {
				missing = append(missing, file)
				continue
			}
			return "", nil, err
		}
		parts = append(parts, content)
	}
	if len(parts) == 0 {
		return "", missing, fmt.Errorf("feature %s: no artifacts found to combine", name)
	}

	header := fmt.Sprintf("# Combined patch for feature: %s\n# Files: %d\n# Description: %s\n\n",
		f.Name, len(f.Files), f.Description)
	return header + strings.Join(parts, "\n"), missing, nil
}

func unionSorted(existing, added []string) []string {
	set := make(map[string]struct{}, len(existing)+len(added))
	for _, f := range existing {
		set[f] = struct{}{}
	}
	for _, f := range added {
		set[f] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func shortRef(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}
