// Package evidence indexes a codebase into searchable text excerpts used as
// generation input. Indexing is filename-filtered and skips binaries; Go
// sources are additionally outlined at the declaration level.
package evidence

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"govdraft/internal/section"
)

const maxFileBytes = 1_000_000

// DefaultAllowlist matches the file kinds worth indexing as evidence.
var DefaultAllowlist = []string{
	"*.go", "*.py", "*.md", "*.yaml", "*.yml", "*.json", "*.toml", "*.txt",
}

// DefaultDenylist excludes version control, dependency, and artifact dirs.
var DefaultDenylist = []string{
	".git", "vendor", "node_modules", "venv", ".venv", "testdata",
}

// Index is an in-memory snapshot of the repository's text files.
type Index struct {
	Root  string
	files map[string]string
}

// Build walks the codebase and indexes allowed text files. Denied directory
// names are skipped whole; oversized and binary files are dropped silently.
func Build(root string, allowlist, denylist []string) (*Index, error) {
	if len(allowlist) == 0 {
		allowlist = DefaultAllowlist
	}
	if len(denylist) == 0 {
		denylist = DefaultDenylist
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve codebase root: %w", err)
	}
	idx := &Index{Root: abs, files: map[string]string{}}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			for _, denied := range denylist {
				if d.Name() == denied {
					return filepath.SkipDir
				}
			}
			return nil
		}
		name := d.Name()
		allowed := false
		for _, pattern := range allowlist {
			if ok, _ := filepath.Match(pattern, name); ok {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil
		}
		content, ok := readFileSafe(path)
		if !ok {
			return nil
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return nil
		}
		idx.files[filepath.ToSlash(rel)] = content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index codebase: %w", err)
	}
	return idx, nil
}

// readFileSafe reads text content, skipping oversized and binary files.
func readFileSafe(path string) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxFileBytes {
		return "", false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	probe := raw
	if len(probe) > 2048 {
		probe = probe[:2048]
	}
	if bytes.IndexByte(probe, 0) >= 0 {
		return "", false
	}
	return string(raw), true
}

// Files lists indexed paths in sorted order.
func (i *Index) Files() []string {
	out := make([]string, 0, len(i.files))
	for path := range i.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Read returns indexed file content by repository-relative path.
func (i *Index) Read(rel string) string {
	return i.files[rel]
}

// Search returns up to limit paths whose content contains the query,
// case-insensitively, in sorted order for determinism.
func (i *Index) Search(query string, limit int) []string {
	lowered := strings.ToLower(query)
	var matches []string
	for _, path := range i.Files() {
		if strings.Contains(strings.ToLower(i.files[path]), lowered) {
			matches = append(matches, path)
		}
		if limit > 0 && len(matches) >= limit {
			break
		}
	}
	return matches
}

// EvidenceFor builds evidence excerpts for one template section: files
// matching the section's title terms, with Go files summarized as
// declaration outlines. Satisfies the orchestrator's EvidenceSource.
func (i *Index) EvidenceFor(sec section.Section, limit int) []string {
	if limit <= 0 {
		limit = 8
	}
	seen := map[string]struct{}{}
	var out []string

	add := func(path string) {
		if _, dup := seen[path]; dup || len(out) >= limit {
			return
		}
		seen[path] = struct{}{}
		if strings.HasSuffix(path, ".go") {
			if outline := Outline([]byte(i.files[path])); len(outline) > 0 {
				out = append(out, fmt.Sprintf("%s:\n  %s", path, strings.Join(outline, "\n  ")))
				return
			}
		}
		out = append(out, path+":\n  "+excerpt(i.files[path], 400))
	}

	for _, term := range searchTerms(sec) {
		for _, path := range i.Search(term, limit) {
			add(path)
		}
		if len(out) >= limit {
			break
		}
	}
	if len(out) == 0 {
		for _, path := range i.Files() {
			add(path)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

func searchTerms(sec section.Section) []string {
	var terms []string
	for _, word := range strings.Fields(sec.Title) {
		word = strings.Trim(strings.ToLower(word), ".,;:()[]")
		if len(word) >= 4 {
			terms = append(terms, word)
		}
	}
	return terms
}

func excerpt(content string, max int) string {
	content = strings.TrimSpace(content)
	if len(content) > max {
		content = content[:max] + "..."
	}
	return strings.ReplaceAll(content, "\n", "\n  ")
}
