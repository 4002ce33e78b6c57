package template

import (
	"fmt"
	"regexp"
	"strings"

	"govdraft/internal/section"
)

// Heading markers are a small, order-independent token language: bracket
// groups anywhere in the heading text. [FILL][ID:x], [ID:x][FILL], a bare
// trailing [FILL], and untagged headings are all accepted.
var (
	bracketTokenRe = regexp.MustCompile(`\[([^\[\]]*)\]`)
	idValueRe      = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	spaceRe        = regexp.MustCompile(`\s+`)
	slugRe         = regexp.MustCompile(`[^a-z0-9]+`)
)

type headingMarker struct {
	Tag   section.Tag
	ID    string
	Title string
	// ExplicitID records whether the id came from an [ID:...] token rather
	// than the slugified title.
	ExplicitID bool
}

// parseHeadingMarker lexes one heading. usedIDs tracks ids already assigned
// so derived ids stay unique. Malformed tokens are reported, never thrown.
func parseHeadingMarker(heading string, usedIDs map[string]struct{}) (headingMarker, []SchemaError) {
	var errs []SchemaError
	raw := strings.TrimSpace(heading)

	parsed := headingMarker{Tag: section.TagUntagged}
	tagSeen := false

	for _, match := range bracketTokenRe.FindAllStringSubmatch(raw, -1) {
		token := strings.TrimSpace(match[1])
		upper := strings.ToUpper(token)

		switch {
		case upper == "FILL" || upper == "SKIP" || upper == "VALIDATOR":
			tag := tagFromToken(upper)
			if tagSeen && tag != parsed.Tag {
				errs = append(errs, SchemaError{
					Kind:    SchemaConflictingTags,
					Marker:  raw,
					Message: fmt.Sprintf("heading carries conflicting tags (kept %q, ignored %q)", parsed.Tag, tag),
				})
				continue
			}
			parsed.Tag = tag
			tagSeen = true

		case strings.HasPrefix(upper, "ID:"):
			value := strings.TrimSpace(token[len("ID:"):])
			if !idValueRe.MatchString(value) {
				errs = append(errs, SchemaError{
					Kind:    SchemaMalformedMarker,
					Marker:  raw,
					Message: fmt.Sprintf("invalid section id token %q", match[0]),
				})
				continue
			}
			if parsed.ExplicitID {
				errs = append(errs, SchemaError{
					Kind:    SchemaMalformedMarker,
					Marker:  raw,
					Message: fmt.Sprintf("heading carries more than one id token (kept %q)", parsed.ID),
				})
				continue
			}
			parsed.ID = strings.ToLower(value)
			parsed.ExplicitID = true
		}
	}

	parsed.Title = cleanTitle(raw)
	if parsed.ID == "" {
		parsed.ID = dedupeID(slugify(parsed.Title), usedIDs)
	} else if _, taken := usedIDs[parsed.ID]; taken {
		errs = append(errs, SchemaError{
			Kind:      SchemaDuplicateID,
			SectionID: parsed.ID,
			Marker:    raw,
			Message:   fmt.Sprintf("duplicate section id %q", parsed.ID),
		})
		parsed.ID = dedupeID(parsed.ID, usedIDs)
	}
	usedIDs[parsed.ID] = struct{}{}

	return parsed, errs
}

func tagFromToken(upper string) section.Tag {
	switch upper {
	case "FILL":
		return section.TagFill
	case "SKIP":
		return section.TagSkip
	case "VALIDATOR":
		return section.TagValidator
	}
	return section.TagUntagged
}

func cleanTitle(raw string) string {
	cleaned := bracketTokenRe.ReplaceAllStringFunc(raw, func(token string) string {
		inner := strings.ToUpper(strings.TrimSpace(strings.Trim(token, "[]")))
		if inner == "FILL" || inner == "SKIP" || inner == "VALIDATOR" || strings.HasPrefix(inner, "ID:") {
			return ""
		}
		return token
	})
	cleaned = spaceRe.ReplaceAllString(cleaned, " ")
	cleaned = strings.Trim(cleaned, " -:\t")
	if cleaned == "" {
		return "Untitled Section"
	}
	return cleaned
}

func slugify(title string) string {
	slug := slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(title)), "_")
	slug = strings.Trim(slug, "_")
	slug = strings.TrimLeft(slug, "0123456789_")
	if slug == "" {
		return "section"
	}
	return slug
}

func dedupeID(id string, usedIDs map[string]struct{}) string {
	if _, taken := usedIDs[id]; !taken {
		return id
	}
	for suffix := 2; ; suffix++ {
		candidate := fmt.Sprintf("%s_%d", id, suffix)
		if _, taken := usedIDs[candidate]; !taken {
			return candidate
		}
	}
}
