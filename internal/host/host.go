// Package host abstracts the two supported template formats behind one
// block-oriented capability. The template parser and the apply engine only
// ever see ordered blocks with text; where those blocks live (markdown lines
// or OOXML paragraphs and table cells) is the host's concern.
package host

import (
	"fmt"
	"path/filepath"
	"strings"

	"govdraft/internal/section"
)

// BlockKind distinguishes headings from body blocks.
type BlockKind int

const (
	BlockHeading BlockKind = iota
	BlockParagraph
)

// Block is one addressable unit of a host document.
type Block struct {
	Index int
	Kind  BlockKind
	// Level is the heading level (1..6) for heading blocks, 0 otherwise.
	Level int
	// Text is the flattened text content of the block.
	Text string
	// RegionID is non-empty when the block is a previously generated
	// content region for that section id.
	RegionID string
}

// Host is the section-location capability shared by both formats. Edits are
// staged; Render produces the full output document, leaving every untouched
// block byte-identical to the source.
type Host interface {
	Format() section.Format
	Blocks() []Block
	// SetBlockText stages a replacement of the block's content. For
	// markdown the text is inserted verbatim; for flowed documents it is
	// rebuilt into runs with the original paragraph properties kept.
	SetBlockText(index int, text string) error
	// Marker returns the embedded apply-marker payload, if present.
	Marker() (string, bool)
	// SetMarker stages removal of any existing marker and the append of a
	// new one carrying the given payload.
	SetMarker(payload string)
	// Render serializes the document with all staged edits applied.
	Render() ([]byte, error)
}

// ForPath opens the host implementation matching the file extension.
func ForPath(path string, raw []byte) (Host, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return NewMarkdown(raw), nil
	case ".docx":
		return NewDocx(raw)
	}
	return nil, fmt.Errorf(
		"unsupported template extension %q (supported: .md, .markdown, .docx)", filepath.Ext(path))
}
