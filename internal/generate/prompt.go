package generate

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a governance documentation assistant.
Rules:
- Never invent facts or metrics.
- Use only information in the provided evidence and context.
- If information is unavailable, create explicit missing_items.
- Return valid JSON only.`

// buildSectionPrompt renders the per-section instruction for the content
// producer.
func buildSectionPrompt(req Request) string {
	requirement := req.Section.Body
	if strings.TrimSpace(requirement) == "" {
		requirement = "(no additional requirement text provided)"
	}
	contextBlock := strings.TrimSpace(req.Context)
	if contextBlock == "" {
		contextBlock = "None."
	}
	evidenceBlock := "None."
	if len(req.Evidence) > 0 {
		evidenceBlock = strings.Join(req.Evidence, "\n")
	}

	return fmt.Sprintf(`Generate content for one governance document section.

Section:
- id: %s
- title: %s
- requirement text:
%s

Codebase evidence excerpts:
%s

User-provided supplemental context:
%s

Output format (JSON object only):
{
  "body": "filled section narrative",
  "checkboxes": [{"name": "token_name", "checked": true}],
  "attachments": ["relative/path/to/artifact"],
  "evidence": ["relative/path.go:line"],
  "missing_items": [{"id": "short_id", "question": "what is missing"}]
}

Quality rules:
- Include at least one evidence item or one missing_items entry.
- If any required information is absent, include missing_items.
- Keep writing concise, factual, and audit-friendly.`,
		req.Section.ID, req.Section.Title, requirement, evidenceBlock, contextBlock)
}
