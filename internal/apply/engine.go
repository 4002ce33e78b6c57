// Package apply merges a validated draft into a copy of the source template.
// The engine re-parses the template itself, refuses every unsafe operation
// before staging a single edit, and writes the output atomically so a failed
// apply leaves the filesystem unchanged.
package apply

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"govdraft/internal/draft"
	"govdraft/internal/host"
	"govdraft/internal/section"
	"govdraft/internal/template"
)

const (
	glyphChecked   = "☒"
	glyphUnchecked = "☐"
)

var checkboxTokenRe = regexp.MustCompile(`\[\[CHECK:([A-Za-z0-9_-]+)\]\]`)

// UnsafeReason classifies why an apply was refused.
type UnsafeReason string

const (
	ReasonAlreadyApplied      UnsafeReason = "already_applied"
	ReasonMissingDraftSection UnsafeReason = "missing_draft_section"
	ReasonNoAnchor            UnsafeReason = "no_anchor"
	ReasonOutputIsInput       UnsafeReason = "output_is_input"
)

// UnsafeApplyError aborts the whole apply with no partial output.
type UnsafeApplyError struct {
	Reason    UnsafeReason
	SectionID string
	Message   string
}

func (e *UnsafeApplyError) Error() string {
	if e.SectionID != "" {
		return fmt.Sprintf("unsafe apply (%s, section %s): %s", e.Reason, e.SectionID, e.Message)
	}
	return fmt.Sprintf("unsafe apply (%s): %s", e.Reason, e.Message)
}

// TemplateInvalidError reports that the re-parsed template failed schema
// validation, carrying the full diagnostic list.
type TemplateInvalidError struct {
	Errors []template.SchemaError
}

func (e *TemplateInvalidError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return "template is schema-invalid: " + strings.Join(msgs, "; ")
}

// Options control one apply run.
type Options struct {
	// Force allows applying over a document that already carries an apply
	// marker; the marker is replaced.
	Force bool
	// OutPath is the output document path. It must differ from the
	// template path; the template file is never mutated.
	OutPath string
	// ContextReference names the context file mentioned in unresolved-
	// section notes.
	ContextReference string
}

// Report describes a successful apply.
type Report struct {
	OutputPath           string
	Marker               Marker
	UnresolvedSectionIDs []string
}

// Apply merges the draft into a copy of the template at templatePath and
// writes it to opts.OutPath. The template is re-parsed here: apply never
// trusts a caller-supplied parse result.
func Apply(templatePath string, d *section.Draft, opts Options) (*Report, error) {
	if opts.OutPath == "" {
		return nil, fmt.Errorf("apply: output path is required")
	}
	if samePath(templatePath, opts.OutPath) {
		return nil, &UnsafeApplyError{
			Reason:  ReasonOutputIsInput,
			Message: "refusing to overwrite the template file itself",
		}
	}
	contextRef := opts.ContextReference
	if contextRef == "" {
		contextRef = "additional-context.md"
	}

	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	h, err := host.ForPath(templatePath, raw)
	if err != nil {
		return nil, err
	}

	model, parseErrs := template.Parse(h, templatePath)
	if errs := append(parseErrs, template.Validate(model)...); len(errs) > 0 {
		return nil, &TemplateInvalidError{Errors: errs}
	}

	if payload, applied := h.Marker(); applied && !opts.Force {
		prior := ParseMarker(payload)
		return nil, &UnsafeApplyError{
			Reason: ReasonAlreadyApplied,
			Message: fmt.Sprintf(
				"document already has an apply marker (run %s); re-run with force to override", prior.RunID),
		}
	}

	// Safety pass before any staging: an apply must be total over fill
	// sections, and frozen sections are never written, so any draft
	// content for them is dropped on the floor.
	var unresolved []string
	for _, sec := range model.Sections {
		if sec.Tag.Frozen() {
			continue
		}
		ds := d.Section(sec.ID)
		if ds == nil {
			return nil, &UnsafeApplyError{
				Reason:    ReasonMissingDraftSection,
				SectionID: sec.ID,
				Message:   fmt.Sprintf("fill section %q has no matching draft section", sec.ID),
			}
		}
		if sec.AnchorKind == section.AnchorNone {
			return nil, &UnsafeApplyError{
				Reason:    ReasonNoAnchor,
				SectionID: sec.ID,
				Message:   fmt.Sprintf("fill section %q has no writable body location", sec.ID),
			}
		}
		if ds.Unresolved() {
			unresolved = append(unresolved, sec.ID)
		}
	}

	blocks := h.Blocks()
	for _, sec := range model.Sections {
		if sec.Tag.Frozen() {
			continue
		}
		ds := d.Section(sec.ID)
		rendered := renderBody(ds, contextRef)

		edits := map[int]string{}
		anchorText := blocks[sec.AnchorBlock].Text
		switch sec.AnchorKind {
		case section.AnchorToken:
			insert := rendered
			if h.Format() == section.FormatMarkdown {
				insert = wrapRegion(sec.ID, rendered)
			}
			edits[sec.AnchorBlock] = strings.Replace(anchorText, template.ContentToken(), insert, 1)
		case section.AnchorRegion:
			edits[sec.AnchorBlock] = wrapRegion(sec.ID, rendered)
		case section.AnchorFirstBlock:
			if h.Format() == section.FormatMarkdown {
				edits[sec.AnchorBlock] = wrapRegion(sec.ID, rendered)
			} else {
				edits[sec.AnchorBlock] = rendered
			}
		case section.AnchorNone:
			// rejected above
		}

		// Checkbox resolution is advisory: every token in the section body
		// resolves from the draft map, unknown names render unset.
		cbmap := ds.CheckboxMap()
		for idx := sec.BodyStart; idx < sec.BodyEnd; idx++ {
			text, edited := edits[idx]
			if !edited {
				text = blocks[idx].Text
			}
			resolved := resolveCheckboxes(text, cbmap)
			if !edited && resolved == text {
				continue
			}
			if err := h.SetBlockText(idx, resolved); err != nil {
				return nil, fmt.Errorf("stage section %q: %w", sec.ID, err)
			}
		}
	}

	marker := Marker{
		RunID:     uuid.NewString(),
		DraftHash: draftHash(d),
		AppliedAt: time.Now().UTC(),
	}
	h.SetMarker(marker.Encode())

	out, err := h.Render()
	if err != nil {
		return nil, fmt.Errorf("render output document: %w", err)
	}
	if err := writeFileAtomic(opts.OutPath, out); err != nil {
		return nil, err
	}

	return &Report{
		OutputPath:           opts.OutPath,
		Marker:               marker,
		UnresolvedSectionIDs: unresolved,
	}, nil
}

// renderBody produces the deterministic content inserted for one section:
// the reviewed body, checkbox declaration lines, and an unresolved note for
// partial or blocked sections.
func renderBody(ds *section.DraftSection, contextRef string) string {
	rendered := strings.TrimSpace(ds.Body)
	if len(ds.Checkboxes) > 0 {
		var lines []string
		for _, c := range ds.Checkboxes {
			lines = append(lines, fmt.Sprintf("%s: [[CHECK:%s]]", c.Name, c.Name))
		}
		rendered += "\n\n" + strings.Join(lines, "\n")
	}
	if ds.Unresolved() {
		rendered += fmt.Sprintf(
			"\n\nUNRESOLVED: This section includes missing information. Review %s and update.", contextRef)
	}
	return rendered
}

func wrapRegion(sectionID, rendered string) string {
	return host.RegionBegin(sectionID) + "\n" + rendered + "\n" + host.RegionEnd()
}

func resolveCheckboxes(text string, cbmap map[string]bool) string {
	return checkboxTokenRe.ReplaceAllStringFunc(text, func(token string) string {
		name := checkboxTokenRe.FindStringSubmatch(token)[1]
		if cbmap[name] {
			return glyphChecked
		}
		return glyphUnchecked
	})
}

// draftHash fingerprints the applied draft content for the marker.
func draftHash(d *section.Draft) string {
	sum := sha256.Sum256([]byte(draft.Serialize(d)))
	return hex.EncodeToString(sum[:])[:12]
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}

// writeFileAtomic stages the full output next to the destination and
// finalizes with a single rename.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".apply-*")
	if err != nil {
		return fmt.Errorf("stage output: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize output: %w", err)
	}
	return nil
}
