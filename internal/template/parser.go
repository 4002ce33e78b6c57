// Package template turns a raw governance template into the section model.
// Malformed markers never abort a parse; they are collected as SchemaErrors
// so one validation pass yields complete diagnostics.
package template

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"govdraft/internal/host"
	"govdraft/internal/section"
)

const contentToken = "[[SECTION_CONTENT]]"

var (
	checkboxRe     = regexp.MustCompile(`\[\[CHECK:([A-Za-z0-9_-]+)\]\]`)
	orphanMarkerRe = regexp.MustCompile(`(?i)\[(FILL|SKIP|VALIDATOR)\]|\[ID:`)
)

// ContentToken is the preferred insertion anchor placeholder.
func ContentToken() string { return contentToken }

// ExtractCheckboxTokens returns checkbox token names in source order,
// without duplicates.
func ExtractCheckboxTokens(text string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, match := range checkboxRe.FindAllStringSubmatch(text, -1) {
		if _, dup := seen[match[1]]; dup {
			continue
		}
		seen[match[1]] = struct{}{}
		out = append(out, match[1])
	}
	return out
}

// ParseFile reads and parses a template from disk, picking the host
// implementation from the file extension.
func ParseFile(path string) (*section.Model, []SchemaError, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read template: %w", err)
	}
	h, err := host.ForPath(path, raw)
	if err != nil {
		return nil, nil, err
	}
	model, errs := Parse(h, path)
	return model, errs, nil
}

// Parse builds the section model from host blocks. Every heading starts a
// section; the body runs to the next heading. Content before the first
// heading is preamble and belongs to no section.
func Parse(h host.Host, sourcePath string) (*section.Model, []SchemaError) {
	blocks := h.Blocks()
	model := &section.Model{SourcePath: sourcePath, Format: h.Format()}
	var errs []SchemaError
	usedIDs := map[string]struct{}{}

	var headingIdx []int
	for _, b := range blocks {
		if b.Kind == host.BlockHeading {
			headingIdx = append(headingIdx, b.Index)
		}
	}

	for i, hb := range headingIdx {
		heading := blocks[hb]
		marker, markerErrs := parseHeadingMarker(heading.Text, usedIDs)
		errs = append(errs, markerErrs...)

		bodyEnd := len(blocks)
		if i+1 < len(headingIdx) {
			bodyEnd = headingIdx[i+1]
		}

		sec := section.Section{
			ID:           marker.ID,
			Title:        marker.Title,
			Tag:          marker.Tag,
			Order:        i,
			MarkerText:   strings.TrimSpace(heading.Text),
			HeadingBlock: hb,
			BodyStart:    hb + 1,
			BodyEnd:      bodyEnd,
			AnchorKind:   section.AnchorNone,
			AnchorBlock:  -1,
		}

		var bodyParts []string
		for _, b := range blocks[sec.BodyStart:bodyEnd] {
			bodyParts = append(bodyParts, b.Text)
			if b.RegionID == "" && orphanMarkerRe.MatchString(b.Text) {
				errs = append(errs, SchemaError{
					Kind:      SchemaOrphanedMarker,
					SectionID: sec.ID,
					Marker:    firstLine(b.Text),
					Message:   fmt.Sprintf("marker token outside a heading in section %q", sec.ID),
				})
			}
		}
		sec.Body = strings.TrimSpace(strings.Join(bodyParts, "\n"))
		sec.CheckboxTokens = ExtractCheckboxTokens(sec.Body)
		sec.AnchorKind, sec.AnchorBlock = resolveAnchor(blocks, sec)

		model.Sections = append(model.Sections, sec)
	}

	return model, errs
}

// resolveAnchor picks the insertion point for generated content: a prior
// generated region wins, then the explicit placeholder token, then the
// first non-empty body block.
func resolveAnchor(blocks []host.Block, sec section.Section) (section.AnchorKind, int) {
	for _, b := range blocks[sec.BodyStart:sec.BodyEnd] {
		if b.RegionID == sec.ID {
			return section.AnchorRegion, b.Index
		}
	}
	for _, b := range blocks[sec.BodyStart:sec.BodyEnd] {
		if strings.Contains(b.Text, contentToken) {
			return section.AnchorToken, b.Index
		}
	}
	for _, b := range blocks[sec.BodyStart:sec.BodyEnd] {
		if b.Kind == host.BlockParagraph && strings.TrimSpace(b.Text) != "" {
			return section.AnchorFirstBlock, b.Index
		}
	}
	return section.AnchorNone, -1
}

// Validate checks model-level requirements beyond per-heading lexing. The
// returned list is empty for a usable template.
func Validate(model *section.Model) []SchemaError {
	var errs []SchemaError
	if len(model.Sections) == 0 {
		return append(errs, SchemaError{
			Kind:    SchemaNoSections,
			Message: "no template sections found",
		})
	}

	seen := map[string]struct{}{}
	anyFill := false
	for _, sec := range model.Sections {
		if _, dup := seen[sec.ID]; dup {
			errs = append(errs, SchemaError{
				Kind:      SchemaDuplicateID,
				SectionID: sec.ID,
				Message:   fmt.Sprintf("duplicate section id %q", sec.ID),
			})
		}
		seen[sec.ID] = struct{}{}

		if sec.Tag.Fillable() {
			anyFill = true
			if sec.AnchorKind == section.AnchorNone {
				errs = append(errs, SchemaError{
					Kind:      SchemaNoAnchor,
					SectionID: sec.ID,
					Marker:    sec.MarkerText,
					Message:   fmt.Sprintf("fill section %q has no writable body location", sec.ID),
				})
			}
		}
	}
	if !anyFill {
		errs = append(errs, SchemaError{
			Kind:    SchemaNoFillSections,
			Message: "template must contain at least one fillable section",
		})
	}
	return errs
}

func firstLine(text string) string {
	if at := strings.IndexByte(text, '\n'); at >= 0 {
		return strings.TrimSpace(text[:at])
	}
	return strings.TrimSpace(text)
}
