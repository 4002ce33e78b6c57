// Package section holds the canonical in-memory model for template sections
// and reviewed draft sections. It is pure data plus invariant checks; parsing
// and rendering live in the template, draft, and apply packages.
package section

import (
	"fmt"
	"strings"
)

// Tag classifies a template section. Untagged headings carry fill semantics
// but retain their provenance so downstream code can tell them apart.
type Tag int

const (
	TagFill Tag = iota
	TagSkip
	TagValidator
	TagUntagged
)

func (t Tag) String() string {
	switch t {
	case TagFill:
		return "fill"
	case TagSkip:
		return "skip"
	case TagValidator:
		return "validator"
	case TagUntagged:
		return "untagged"
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

// Fillable reports whether a section with this tag receives generated content.
func (t Tag) Fillable() bool {
	switch t {
	case TagFill, TagUntagged:
		return true
	case TagSkip, TagValidator:
		return false
	}
	return false
}

// Frozen reports whether a section must never be written to. Skip sections
// are excluded from generation entirely; validator sections are reserved for
// out-of-band human sign-off.
func (t Tag) Frozen() bool {
	return !t.Fillable()
}

// Format identifies the host document format of a template.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatDocx     Format = "docx"
)

// AnchorKind records how a section's content anchor was determined at parse
// time.
type AnchorKind int

const (
	// AnchorNone means the section has no writable location.
	AnchorNone AnchorKind = iota
	// AnchorToken points at an explicit [[SECTION_CONTENT]] placeholder.
	AnchorToken
	// AnchorRegion points at a previously generated content region.
	AnchorRegion
	// AnchorFirstBlock is the fallback: the first non-empty paragraph or
	// cell inside the section body.
	AnchorFirstBlock
)

// Section is one addressable unit of a parsed template.
type Section struct {
	ID         string
	Title      string
	Tag        Tag
	Order      int
	MarkerText string

	// Block coordinates into the owning host document. HeadingBlock is the
	// heading itself; the body spans [BodyStart, BodyEnd) in host block
	// indices.
	HeadingBlock int
	BodyStart    int
	BodyEnd      int

	// Body is the flattened body text, used for prompts and validation.
	Body string

	AnchorKind  AnchorKind
	AnchorBlock int

	// CheckboxTokens are the named [[CHECK:<name>]] placeholders found in
	// the body, in source order without duplicates.
	CheckboxTokens []string
}

// Model is an ordered, uniquely identified collection of template sections.
type Model struct {
	SourcePath string
	Format     Format
	Sections   []Section
}

// Section returns the section with the given id, or nil.
func (m *Model) Section(id string) *Section {
	for i := range m.Sections {
		if m.Sections[i].ID == id {
			return &m.Sections[i]
		}
	}
	return nil
}

// FillSections returns the sections eligible for generation, in order.
func (m *Model) FillSections() []Section {
	out := make([]Section, 0, len(m.Sections))
	for _, s := range m.Sections {
		if s.Tag.Fillable() {
			out = append(out, s)
		}
	}
	return out
}

// SectionOrder returns all section ids in source order.
func (m *Model) SectionOrder() []string {
	ids := make([]string, 0, len(m.Sections))
	for _, s := range m.Sections {
		ids = append(ids, s.ID)
	}
	return ids
}

// CheckInvariants verifies the structural invariants of the model: ids are
// unique and non-empty, and source order is strictly increasing.
func (m *Model) CheckInvariants() error {
	seen := make(map[string]struct{}, len(m.Sections))
	lastOrder := -1
	for _, s := range m.Sections {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("section %q has an empty id", s.Title)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("duplicate section id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Order <= lastOrder {
			return fmt.Errorf("section %q breaks source ordering (order=%d after %d)", s.ID, s.Order, lastOrder)
		}
		lastOrder = s.Order
	}
	return nil
}
