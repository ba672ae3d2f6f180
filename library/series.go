package library

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/forkline/forkline"
)

// DefaultSkipDirective introduces an inline platform-exclusion comment:
// "some/file.patch #skip:darwin,windows".
const DefaultSkipDirective = "#skip:"

// SeriesName is the ordered replay list at the library root.
const SeriesName = "series"

// LoadSeries reads the series file from the library root. A missing
// series file aborts the whole command: there is nothing to iterate.
func (l *Library) LoadSeries() ([]forkline.SeriesEntry, error) {
	f, err := os.Open(l.seriesPath())
	if os.IsNotExist(err) {
		return nil, &forkline.NotFoundError{Kind: "series", Name: l.seriesPath()}
	}
	if err != nil {
		return nil, fmt.Errorf("opening series file: %w", err)
	}
	defer f.Close()
	return ParseSeries(f, DefaultSkipDirective)
}

func (l *Library) seriesPath() string {
	return filepath.Join(l.Root, SeriesName)
}

// ParseSeries reads an ordered, newline-delimited patch list. Blank
// lines and full-line # comments are ignored. An inline skip directive
// (" #skip:p1,p2") attaches platform exclusions to the entry; any other
// inline " #" suffix is a plain comment and is stripped. Order is
// preserved exactly: the series is never sorted or deduplicated.
func ParseSeries(r io.Reader, skipDirective string) ([]forkline.SeriesEntry, error) {
	var entries []forkline.SeriesEntry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var skip []string
		if idx := strings.Index(line, " "+skipDirective); idx >= 0 {
			raw := line[idx+1+len(skipDirective):]
			// The directive ends the entry; anything after it belongs
			// to the platform list.
			for _, p := range strings.Split(raw, ",") {
				p = strings.TrimSpace(strings.ToLower(p))
				if p != "" {
					skip = append(skip, p)
				}
			}
			line = strings.TrimSpace(line[:idx])
		} else if idx := strings.Index(line, " #"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}

		if line == "" {
			continue
		}
		entries = append(entries, forkline.SeriesEntry{PatchPath: line, SkipPlatforms: skip})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading series: %w", err)
	}
	return entries, nil
}
