package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"govdraft/internal/section"
)

// NewCapability builds the content producer selected by the configured
// provider name. Gemini is the only shipped provider.
func NewCapability(ctx context.Context, provider, apiKey, model string, temperature float32) (Capability, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "gemini":
		return NewGeminiCapability(ctx, apiKey, model, temperature)
	}
	return nil, fmt.Errorf("unsupported ai provider %q (supported: gemini)", provider)
}

// GeminiCapability implements Capability against the Gemini API.
type GeminiCapability struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiCapability builds a Gemini-backed content producer.
func NewGeminiCapability(ctx context.Context, apiKey, model string, temperature float32) (*GeminiCapability, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiCapability{client: client, model: model, temperature: temperature}, nil
}

func (g *GeminiCapability) GenerateSection(ctx context.Context, req Request) (*section.DraftSection, error) {
	prompt := systemPrompt + "\n\n" + buildSectionPrompt(req)
	temperature := g.temperature
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("gemini returned an empty response")
	}
	return payloadToDraftSection(text, req.Section)
}

type sectionPayload struct {
	Body       string `json:"body"`
	Checkboxes []struct {
		Name    string `json:"name"`
		Checked bool   `json:"checked"`
	} `json:"checkboxes"`
	Attachments  []string `json:"attachments"`
	Evidence     []string `json:"evidence"`
	MissingItems []struct {
		ID       string `json:"id"`
		Question string `json:"question"`
	} `json:"missing_items"`
}

// payloadToDraftSection parses the provider response. Providers wrap JSON in
// prose or code fences often enough that a bare decode failure falls back to
// the outermost brace pair.
func payloadToDraftSection(text string, sec section.Section) (*section.DraftSection, error) {
	payload, err := decodePayload(text)
	if err != nil {
		return nil, fmt.Errorf("section %q: %w", sec.ID, err)
	}

	ds := &section.DraftSection{
		SectionID: sec.ID,
		Title:     sec.Title,
		Body:      strings.TrimSpace(payload.Body),
	}
	for _, c := range payload.Checkboxes {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		ds.Checkboxes = append(ds.Checkboxes, section.Checkbox{Name: c.Name, Checked: c.Checked})
	}
	for _, a := range payload.Attachments {
		if strings.TrimSpace(a) != "" {
			ds.Attachments = append(ds.Attachments, a)
		}
	}
	for _, e := range payload.Evidence {
		if strings.TrimSpace(e) != "" {
			ds.Evidence = append(ds.Evidence, e)
		}
	}
	for _, item := range payload.MissingItems {
		if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.Question) == "" {
			continue
		}
		ds.MissingItems = append(ds.MissingItems, section.MissingItem{
			ID:        item.ID,
			SectionID: sec.ID,
			Question:  item.Question,
		})
	}

	ds.Status = section.StatusComplete
	if len(ds.MissingItems) > 0 {
		ds.Status = section.StatusPartial
	}
	return ds, nil
}

func decodePayload(text string) (*sectionPayload, error) {
	var payload sectionPayload
	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		return &payload, nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err == nil {
			return &payload, nil
		}
	}
	return nil, fmt.Errorf("response is not a JSON object payload")
}
