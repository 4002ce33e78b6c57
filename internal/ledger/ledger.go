// Package ledger maintains the context file: the durable list of
// missing-information questions and the human answers to them. It is the
// only writer of that file, and a merge never discards a recorded answer.
package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"govdraft/internal/section"
)

var entryHeadingRe = regexp.MustCompile(`(?m)^##\s+(.+?)\s*$`)

// Load reads the context file. A missing file is an empty ledger, not an
// error.
func Load(path string) ([]section.MissingItem, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read context file: %w", err)
	}
	return parse(string(raw)), nil
}

func parse(text string) []section.MissingItem {
	headings := entryHeadingRe.FindAllStringSubmatchIndex(text, -1)
	var items []section.MissingItem
	for i, heading := range headings {
		start := heading[1]
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		fields := parseFields(text[start:end])
		sectionID := fields["section_id"]
		question := fields["question"]
		if sectionID == "" || question == "" {
			continue
		}
		items = append(items, section.MissingItem{
			ID:           strings.TrimSpace(text[heading[2]:heading[3]]),
			SectionID:    sectionID,
			Question:     question,
			UserResponse: fields["user_response"],
		})
	}
	return items
}

func parseFields(block string) map[string]string {
	fields := map[string]string{}
	for _, line := range strings.Split(block, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return fields
}

// Merge folds newly discovered missing items into the existing ledger.
// Entries match on (section_id, question): an unchanged question keeps the
// existing entry verbatim, preserving any human answer. A changed question
// for the same section is a new entry; old entries are never auto-pruned.
// sectionOrder groups the output by template section order.
func Merge(existing, discovered []section.MissingItem, sectionOrder []string) []section.MissingItem {
	type key struct{ sectionID, question string }

	merged := make([]section.MissingItem, len(existing))
	copy(merged, existing)
	known := make(map[key]struct{}, len(existing))
	for _, item := range existing {
		known[key{item.SectionID, flatten(item.Question)}] = struct{}{}
	}

	for _, item := range discovered {
		k := key{item.SectionID, flatten(item.Question)}
		if _, seen := known[k]; seen {
			continue
		}
		known[k] = struct{}{}
		merged = append(merged, item)
	}

	rank := make(map[string]int, len(sectionOrder))
	for i, id := range sectionOrder {
		rank[id] = i
	}
	sort.SliceStable(merged, func(i, j int) bool {
		ri, iKnown := rank[merged[i].SectionID]
		rj, jKnown := rank[merged[j].SectionID]
		switch {
		case iKnown && jKnown && ri != rj:
			return ri < rj
		case iKnown != jKnown:
			return iKnown
		case merged[i].SectionID != merged[j].SectionID:
			return merged[i].SectionID < merged[j].SectionID
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}

// Write persists the ledger atomically: full content to a temp file in the
// same directory, then a single rename.
func Write(path string, items []section.MissingItem) error {
	var lines []string
	for _, item := range items {
		lines = append(lines,
			"## "+item.ID,
			"section_id: "+item.SectionID,
			"question: "+flatten(item.Question),
			"user_response: "+flatten(item.UserResponse),
			"",
		)
	}
	content := strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create context dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".context-*")
	if err != nil {
		return fmt.Errorf("stage context file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write context file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close context file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize context file: %w", err)
	}
	return nil
}

// flatten folds a value onto one line. The context file format is
// line-oriented, so multiline questions or answers would not survive a
// Load; flattening on write keeps the merge key stable across runs.
func flatten(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// Lookup maps section ids to the concatenated answered responses for that
// section, formatted for use as generation context.
func Lookup(items []section.MissingItem) map[string]string {
	bySection := map[string][]string{}
	for _, item := range items {
		if strings.TrimSpace(item.UserResponse) == "" {
			continue
		}
		bySection[item.SectionID] = append(
			bySection[item.SectionID],
			fmt.Sprintf("- %s: %s", item.ID, strings.TrimSpace(item.UserResponse)))
	}
	out := make(map[string]string, len(bySection))
	for id, lines := range bySection {
		out[id] = strings.Join(lines, "\n")
	}
	return out
}
