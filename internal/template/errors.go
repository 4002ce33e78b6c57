package template

import "fmt"

// SchemaErrorKind classifies template marker and structure problems.
type SchemaErrorKind string

const (
	SchemaMalformedMarker SchemaErrorKind = "malformed_marker"
	SchemaConflictingTags SchemaErrorKind = "conflicting_tags"
	SchemaDuplicateID     SchemaErrorKind = "duplicate_id"
	SchemaOrphanedMarker  SchemaErrorKind = "orphaned_marker"
	SchemaNoSections      SchemaErrorKind = "no_sections"
	SchemaNoFillSections  SchemaErrorKind = "no_fill_sections"
	SchemaNoAnchor        SchemaErrorKind = "no_anchor"
)

// SchemaError is one structured template problem. Parsing and validation
// collect these instead of failing on the first issue, so one pass yields
// complete diagnostics.
type SchemaError struct {
	Kind      SchemaErrorKind
	SectionID string
	Marker    string
	Message   string
}

func (e SchemaError) Error() string {
	if e.SectionID != "" {
		return fmt.Sprintf("%s [section %s]: %s", e.Kind, e.SectionID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}
