package section

import (
	"fmt"
	"strings"
)

// Status is the completion state of a reviewed or generated draft section.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
	// StatusBlocked marks a section whose generation was exhausted; the
	// section carries missing items only, never fabricated content.
	StatusBlocked Status = "blocked"
)

// ParseStatus validates a raw status value.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.TrimSpace(raw)) {
	case StatusComplete:
		return StatusComplete, nil
	case StatusPartial:
		return StatusPartial, nil
	case StatusBlocked:
		return StatusBlocked, nil
	}
	return "", fmt.Errorf("invalid status %q (expected complete, partial, or blocked)", raw)
}

// Checkbox is a named checkbox declaration in a draft section.
type Checkbox struct {
	Name    string
	Checked bool
}

// MissingItem is a durable question/answer pair. UserResponse stays empty
// until a human fills it in the context file.
type MissingItem struct {
	ID           string `json:"id"`
	SectionID    string `json:"section_id"`
	Question     string `json:"question"`
	UserResponse string `json:"user_response,omitempty"`
}

// DraftSection is the generated or reviewed counterpart of a template
// section.
type DraftSection struct {
	SectionID    string
	Title        string
	Status       Status
	Checkboxes   []Checkbox
	Attachments  []string
	Evidence     []string
	MissingItems []MissingItem
	Body         string
}

// CheckboxMap returns the checkbox states keyed by name.
func (d *DraftSection) CheckboxMap() map[string]bool {
	out := make(map[string]bool, len(d.Checkboxes))
	for _, c := range d.Checkboxes {
		out[c.Name] = c.Checked
	}
	return out
}

// Validate enforces the draft section contract. A section may never be
// silently fabricated: evidence or missing_items must be non-empty.
func (d *DraftSection) Validate() error {
	if strings.TrimSpace(d.SectionID) == "" {
		return fmt.Errorf("draft section has an empty section id")
	}
	if _, err := ParseStatus(string(d.Status)); err != nil {
		return fmt.Errorf("section %q: %w", d.SectionID, err)
	}
	if len(d.Evidence) == 0 && len(d.MissingItems) == 0 {
		return fmt.Errorf(
			"section %q must include at least one evidence entry or missing item", d.SectionID)
	}
	return nil
}

// Unresolved reports whether the section still carries open questions.
func (d *DraftSection) Unresolved() bool {
	return d.Status == StatusPartial || d.Status == StatusBlocked
}

// Draft is an ordered collection of draft sections.
type Draft struct {
	Sections []DraftSection
}

// Section returns the draft section for the given template section id, or
// nil when the draft does not cover it.
func (d *Draft) Section(id string) *DraftSection {
	for i := range d.Sections {
		if d.Sections[i].SectionID == id {
			return &d.Sections[i]
		}
	}
	return nil
}

// MissingItems collects all open questions across sections in order.
func (d *Draft) MissingItems() []MissingItem {
	var out []MissingItem
	for _, s := range d.Sections {
		out = append(out, s.MissingItems...)
	}
	return out
}
