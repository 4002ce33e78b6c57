package draft

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdraft/internal/section"
)

func sampleDraft() *section.Draft {
	return &section.Draft{Sections: []section.DraftSection{
		{
			SectionID: "overview",
			Title:     "Model Overview",
			Status:    section.StatusComplete,
			Checkboxes: []section.Checkbox{
				{Name: "kpi_defined", Checked: true},
				{Name: "owner_assigned", Checked: false},
			},
			Attachments: []string{"figures/architecture.png"},
			Evidence:    []string{"models/train.py:42", "docs/design.md:7"},
			Body:        "The model predicts quarterly credit losses.\n\nIt is retrained monthly.",
		},
		{
			SectionID: "controls",
			Title:     "Controls",
			Status:    section.StatusPartial,
			MissingItems: []section.MissingItem{
				{ID: "controls_owner", SectionID: "controls", Question: "Who owns the control review?"},
			},
			Body: "Control narrative pending owner confirmation.",
		},
	}}
}

func TestSerializeShape(t *testing.T) {
	text := Serialize(sampleDraft())

	assert.Contains(t, text, "## [ID:overview] Model Overview")
	assert.Contains(t, text, "## [ID:controls] Controls")
	assert.Contains(t, text, "status: complete")
	assert.Contains(t, text, "status: partial")
	// Empty list keys are written explicitly so reviewers see the contract.
	assert.Contains(t, text, "missing_items: []")
	assert.Contains(t, text, "attachments: []")
	assert.True(t, strings.HasSuffix(text, "\n"))

	// Every section block carries a yaml fence.
	assert.Equal(t, 2, strings.Count(text, "```yaml"))
}

func TestParseSerializeRoundTrip(t *testing.T) {
	want := sampleDraft()
	got, errs := Parse(Serialize(want))
	require.Empty(t, errs)
	assert.Equal(t, want, got)
}

func TestParseCollectsAllErrors(t *testing.T) {
	text := "## [ID:one] One\n" +
		"```yaml\nstatus: done\ncheckboxes: []\nattachments: []\nevidence: []\nmissing_items: []\n```\n\nbody\n\n" +
		"## [ID:two] Two\n" +
		"```yaml\nstatus: complete\ncheckboxes: []\n```\n\nbody\n\n" +
		"## [ID:three] Three\n\nno metadata block here\n"
	_, errs := Parse(text)
	require.Len(t, errs, 6)

	byID := map[string][]FormatError{}
	for _, e := range errs {
		byID[e.SectionID] = append(byID[e.SectionID], e)
	}

	// one: invalid status value, and empty evidence with no missing items.
	require.Len(t, byID["one"], 2)
	assert.Equal(t, "status", byID["one"][0].Key)

	// two: three missing required keys.
	require.Len(t, byID["two"], 3)
	keys := map[string]bool{}
	for _, e := range byID["two"] {
		keys[e.Key] = true
	}
	assert.True(t, keys["attachments"] && keys["evidence"] && keys["missing_items"])

	// three: no yaml fence at all.
	require.Len(t, byID["three"], 1)
	assert.Contains(t, byID["three"][0].Message, "yaml metadata block")
}

func TestParseRejectsHeadingWithoutID(t *testing.T) {
	text := "## Overview Without Token\n" +
		"```yaml\nstatus: complete\ncheckboxes: []\nattachments: []\nevidence: [a.py:1]\nmissing_items: []\n```\n"
	_, errs := Parse(text)
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "[ID:<section_id>]")
}

func TestParseEmptyDocument(t *testing.T) {
	d, errs := Parse("nothing resembling a draft\n")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "no section headings")
	assert.Empty(t, d.Sections)
}

func TestParseEvidenceOrMissingItemsRule(t *testing.T) {
	text := "## [ID:one] One\n" +
		"```yaml\nstatus: complete\ncheckboxes: []\nattachments: []\nevidence: []\nmissing_items: []\n```\n\nbody\n"
	_, errs := Parse(text)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "evidence entry or missing item")
}

func TestParseMissingItemInheritsSectionID(t *testing.T) {
	text := "## [ID:one] One\n" +
		"```yaml\nstatus: partial\ncheckboxes: []\nattachments: []\nevidence: []\n" +
		"missing_items:\n  - id: q1\n    question: What is the KPI?\n```\n\nbody\n"
	d, errs := Parse(text)
	require.Empty(t, errs)
	require.Len(t, d.Sections, 1)
	require.Len(t, d.Sections[0].MissingItems, 1)
	assert.Equal(t, "one", d.Sections[0].MissingItems[0].SectionID)
}

func TestParseMalformedMissingItem(t *testing.T) {
	text := "## [ID:one] One\n" +
		"```yaml\nstatus: partial\ncheckboxes: []\nattachments: []\nevidence: [a.py:1]\n" +
		"missing_items:\n  - id: q1\n```\n\nbody\n"
	_, errs := Parse(text)
	require.Len(t, errs, 1)
	assert.Equal(t, "missing_items", errs[0].Key)
}

func TestRoundTripStructuredBody(t *testing.T) {
	want := &section.Draft{Sections: []section.DraftSection{{
		SectionID: "controls",
		Title:     "Controls",
		Status:    section.StatusComplete,
		Evidence:  []string{"a.py:1"},
		Body: "Narrative intro.\n\n" +
			"- first control\n- second control\n\n" +
			"### Sub-heading inside the body\n\n" +
			"Closing paragraph.",
	}}}
	got, errs := Parse(Serialize(want))
	require.Empty(t, errs)
	assert.Equal(t, want, got)
}

func TestParseBodyPreserved(t *testing.T) {
	d, errs := Parse(Serialize(sampleDraft()))
	require.Empty(t, errs)
	require.Len(t, d.Sections, 2)
	assert.Equal(t,
		"The model predicts quarterly credit losses.\n\nIt is retrained monthly.",
		d.Sections[0].Body)
}
