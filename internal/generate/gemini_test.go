package generate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdraft/internal/section"
)

func TestNewCapabilityRejectsUnknownProvider(t *testing.T) {
	_, err := NewCapability(context.Background(), "openai", "key", "model", 0.1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported ai provider "openai"`)
}

func TestDecodePayload(t *testing.T) {
	t.Run("bare json", func(t *testing.T) {
		payload, err := decodePayload(`{"body": "text", "evidence": ["a.py:1"]}`)
		require.NoError(t, err)
		assert.Equal(t, "text", payload.Body)
		assert.Equal(t, []string{"a.py:1"}, payload.Evidence)
	})

	t.Run("json wrapped in prose and fences", func(t *testing.T) {
		text := "Here is the section:\n```json\n{\"body\": \"wrapped\"}\n```\nDone."
		payload, err := decodePayload(text)
		require.NoError(t, err)
		assert.Equal(t, "wrapped", payload.Body)
	})

	t.Run("no json at all", func(t *testing.T) {
		_, err := decodePayload("just prose, sorry")
		assert.Error(t, err)
	})
}

func TestPayloadToDraftSection(t *testing.T) {
	sec := section.Section{ID: "controls", Title: "Controls"}
	text := `{
		"body": "Narrative.",
		"checkboxes": [{"name": "kpi_defined", "checked": true}, {"name": "", "checked": true}],
		"attachments": ["figs/a.png", " "],
		"evidence": ["train.py:10"],
		"missing_items": [
			{"id": "owner", "question": "Who owns this?"},
			{"id": "", "question": "dropped"}
		]
	}`

	ds, err := payloadToDraftSection(text, sec)
	require.NoError(t, err)
	assert.Equal(t, "controls", ds.SectionID)
	assert.Equal(t, "Controls", ds.Title)
	assert.Equal(t, section.StatusPartial, ds.Status)
	assert.Equal(t, []section.Checkbox{{Name: "kpi_defined", Checked: true}}, ds.Checkboxes)
	assert.Equal(t, []string{"figs/a.png"}, ds.Attachments)
	require.Len(t, ds.MissingItems, 1)
	assert.Equal(t, "controls", ds.MissingItems[0].SectionID)
	assert.NoError(t, ds.Validate())
}

func TestPayloadWithoutQuestionsIsComplete(t *testing.T) {
	ds, err := payloadToDraftSection(`{"body": "Done.", "evidence": ["a.go:1"]}`, section.Section{ID: "x", Title: "X"})
	require.NoError(t, err)
	assert.Equal(t, section.StatusComplete, ds.Status)
}

func TestBuildSectionPrompt(t *testing.T) {
	prompt := buildSectionPrompt(Request{
		Section:  section.Section{ID: "overview", Title: "Overview", Body: "Describe the model."},
		Evidence: []string{"train.py:\n  def train()"},
		Context:  "- kpi: AUC",
	})
	assert.Contains(t, prompt, "id: overview")
	assert.Contains(t, prompt, "Describe the model.")
	assert.Contains(t, prompt, "def train()")
	assert.Contains(t, prompt, "- kpi: AUC")

	empty := buildSectionPrompt(Request{Section: section.Section{ID: "a", Title: "A"}})
	assert.Contains(t, empty, "(no additional requirement text provided)")
	assert.Contains(t, empty, "None.")
}
