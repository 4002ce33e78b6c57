// Package draft serializes the section model to the reviewable draft
// markdown contract and parses reviewed drafts back, validating the
// per-section metadata block.
package draft

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"govdraft/internal/section"
)

var (
	sectionHeaderRe = regexp.MustCompile(`(?m)^##\s+\[ID:([A-Za-z0-9_-]+)\]\s+(.+?)\s*$`)
	bareHeaderRe    = regexp.MustCompile(`(?m)^##\s+(.+?)\s*$`)
	yamlFenceRe     = regexp.MustCompile("(?s)```yaml\\s*\\n(.*?)\\n```")
)

var requiredKeys = []string{"status", "checkboxes", "attachments", "evidence", "missing_items"}

// FormatError is one structured draft contract violation. Parsing collects
// these per section and continues, so a reviewer gets every problem at once;
// any error marks the whole draft invalid.
type FormatError struct {
	SectionID string
	Key       string
	Message   string
}

func (e FormatError) Error() string {
	switch {
	case e.SectionID != "" && e.Key != "":
		return fmt.Sprintf("draft section %q, key %q: %s", e.SectionID, e.Key, e.Message)
	case e.SectionID != "":
		return fmt.Sprintf("draft section %q: %s", e.SectionID, e.Message)
	}
	return e.Message
}

type checkboxYAML struct {
	Name    string `yaml:"name"`
	Checked bool   `yaml:"checked"`
}

type missingItemYAML struct {
	ID           string `yaml:"id"`
	Question     string `yaml:"question"`
	SectionID    string `yaml:"section_id"`
	UserResponse string `yaml:"user_response,omitempty"`
}

type metadataYAML struct {
	Status       string            `yaml:"status"`
	Checkboxes   []checkboxYAML    `yaml:"checkboxes"`
	Attachments  []string          `yaml:"attachments"`
	Evidence     []string          `yaml:"evidence"`
	MissingItems []missingItemYAML `yaml:"missing_items"`
}

// Serialize renders the draft contract: per section a [ID:...] heading, a
// fenced yaml metadata block with the five required keys, then the body.
func Serialize(d *section.Draft) string {
	var blocks []string
	for _, sec := range d.Sections {
		meta := metadataYAML{
			Status:       string(sec.Status),
			Checkboxes:   make([]checkboxYAML, 0, len(sec.Checkboxes)),
			Attachments:  emptyIfNil(sec.Attachments),
			Evidence:     emptyIfNil(sec.Evidence),
			MissingItems: make([]missingItemYAML, 0, len(sec.MissingItems)),
		}
		for _, c := range sec.Checkboxes {
			meta.Checkboxes = append(meta.Checkboxes, checkboxYAML{Name: c.Name, Checked: c.Checked})
		}
		for _, item := range sec.MissingItems {
			meta.MissingItems = append(meta.MissingItems, missingItemYAML{
				ID:           item.ID,
				Question:     item.Question,
				SectionID:    item.SectionID,
				UserResponse: item.UserResponse,
			})
		}

		encoded, err := yaml.Marshal(meta)
		if err != nil {
			// metadataYAML contains only marshalable scalar fields
			encoded = []byte("{}")
		}

		blocks = append(blocks,
			fmt.Sprintf("## [ID:%s] %s", sec.SectionID, sec.Title),
			"```yaml",
			strings.TrimRight(string(encoded), "\n"),
			"```",
			"",
			strings.TrimSpace(sec.Body),
			"",
		)
	}
	return strings.TrimRight(strings.Join(blocks, "\n"), "\n") + "\n"
}

// ParseFile parses a reviewed draft from disk.
func ParseFile(path string) (*section.Draft, []FormatError, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read draft: %w", err)
	}
	d, errs := Parse(string(raw))
	return d, errs, nil
}

// Parse parses draft markdown. Recoverable per-section problems are
// collected and parsing continues with the next section; the caller must
// treat a non-empty error list as an invalid draft.
func Parse(text string) (*section.Draft, []FormatError) {
	var errs []FormatError

	headers := sectionHeaderRe.FindAllStringSubmatchIndex(text, -1)
	for _, bare := range bareHeaderRe.FindAllStringSubmatch(text, -1) {
		if !sectionHeaderRe.MatchString("## " + bare[1]) {
			errs = append(errs, FormatError{
				Message: fmt.Sprintf("heading %q has no valid [ID:<section_id>] token", "## "+bare[1]),
			})
		}
	}
	if len(headers) == 0 {
		errs = append(errs, FormatError{
			Message: "no section headings found; expected '## [ID:<section_id>] <title>'",
		})
		return &section.Draft{}, errs
	}

	d := &section.Draft{}
	for i, header := range headers {
		start := header[0]
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		chunk := text[start:end]
		sectionID := text[header[2]:header[3]]
		title := text[header[4]:header[5]]

		sec, secErrs := parseSection(chunk, sectionID, title)
		errs = append(errs, secErrs...)
		if sec != nil {
			d.Sections = append(d.Sections, *sec)
		}
	}
	return d, errs
}

func parseSection(chunk, sectionID, title string) (*section.DraftSection, []FormatError) {
	var errs []FormatError

	fence := yamlFenceRe.FindStringSubmatchIndex(chunk)
	if fence == nil {
		return nil, append(errs, FormatError{
			SectionID: sectionID,
			Message:   "missing required yaml metadata block",
		})
	}
	metaText := chunk[fence[2]:fence[3]]
	body := strings.TrimSpace(chunk[fence[1]:])

	var rawKeys map[string]yaml.Node
	if err := yaml.Unmarshal([]byte(metaText), &rawKeys); err != nil {
		return nil, append(errs, FormatError{
			SectionID: sectionID,
			Message:   fmt.Sprintf("metadata block is not a yaml mapping: %v", err),
		})
	}
	for _, key := range requiredKeys {
		if _, present := rawKeys[key]; !present {
			errs = append(errs, FormatError{
				SectionID: sectionID,
				Key:       key,
				Message:   "missing required metadata key",
			})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	var meta metadataYAML
	if err := yaml.Unmarshal([]byte(metaText), &meta); err != nil {
		return nil, append(errs, FormatError{
			SectionID: sectionID,
			Message:   fmt.Sprintf("malformed metadata block: %v", err),
		})
	}

	status, err := section.ParseStatus(meta.Status)
	if err != nil {
		errs = append(errs, FormatError{SectionID: sectionID, Key: "status", Message: err.Error()})
	}

	sec := &section.DraftSection{
		SectionID: sectionID,
		Title:     title,
		Status:    status,
		Body:      body,
	}
	for _, c := range meta.Checkboxes {
		if strings.TrimSpace(c.Name) == "" {
			errs = append(errs, FormatError{
				SectionID: sectionID,
				Key:       "checkboxes",
				Message:   "checkbox entries must carry a name",
			})
			continue
		}
		sec.Checkboxes = append(sec.Checkboxes, section.Checkbox{Name: c.Name, Checked: c.Checked})
	}
	sec.Attachments = nilIfEmpty(meta.Attachments)
	sec.Evidence = nilIfEmpty(meta.Evidence)
	for _, item := range meta.MissingItems {
		if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.Question) == "" {
			errs = append(errs, FormatError{
				SectionID: sectionID,
				Key:       "missing_items",
				Message:   "missing_item entries must carry id and question",
			})
			continue
		}
		owner := item.SectionID
		if owner == "" {
			owner = sectionID
		}
		sec.MissingItems = append(sec.MissingItems, section.MissingItem{
			ID:           item.ID,
			SectionID:    owner,
			Question:     item.Question,
			UserResponse: item.UserResponse,
		})
	}

	if len(sec.Evidence) == 0 && len(sec.MissingItems) == 0 {
		errs = append(errs, FormatError{
			SectionID: sectionID,
			Message:   "section must include at least one evidence entry or missing item",
		})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return sec, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func nilIfEmpty(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return values
}
