package host

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"govdraft/internal/section"
)

const (
	documentPart    = "word/document.xml"
	docxMarkerOpen  = "[GOVDRAFT_APPLIED "
	docxMarkerClose = "]"
)

var (
	textRunRe   = regexp.MustCompile(`(?s)<w:t[^>]*>(.*?)</w:t>`)
	styleRe     = regexp.MustCompile(`<w:pStyle[^>]*w:val="([^"]+)"`)
	headingNoRe = regexp.MustCompile(`^[Hh]eading\s*(\d)`)
	pPrRe       = regexp.MustCompile(`(?s)<w:pPr>.*?</w:pPr>`)
)

type docxPart struct {
	name string
	data []byte
}

// Docx is the flowed-document host. It works directly on the OOXML package:
// paragraphs (including table-cell paragraphs) become blocks in document
// order, and all other parts of the archive pass through untouched.
type Docx struct {
	parts         []docxPart
	doc           string // word/document.xml content
	blocks        []Block
	spans         [][2]int
	edits         map[int]string
	markerPayload string
	markerSpans   [][2]int
	newMarker     *string
}

// NewDocx opens a DOCX package from raw bytes.
func NewDocx(raw []byte) (*Docx, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open docx package: %w", err)
	}
	d := &Docx{edits: map[int]string{}}
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("read docx part %s: %w", file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read docx part %s: %w", file.Name, err)
		}
		d.parts = append(d.parts, docxPart{name: file.Name, data: data})
		if file.Name == documentPart {
			d.doc = string(data)
		}
	}
	if d.doc == "" {
		return nil, fmt.Errorf("docx package has no %s part", documentPart)
	}
	d.scan()
	return d, nil
}

func (d *Docx) Format() section.Format { return section.FormatDocx }

func (d *Docx) Blocks() []Block { return d.blocks }

func (d *Docx) SetBlockText(index int, text string) error {
	if index < 0 || index >= len(d.blocks) {
		return fmt.Errorf("block index %d out of range", index)
	}
	d.edits[index] = text
	return nil
}

func (d *Docx) Marker() (string, bool) {
	return d.markerPayload, d.markerPayload != ""
}

func (d *Docx) SetMarker(payload string) {
	d.newMarker = &payload
}

func (d *Docx) Render() ([]byte, error) {
	type splice struct {
		start, end int
		text       string
	}
	var splices []splice
	for idx, text := range d.edits {
		span := d.spans[idx]
		splices = append(splices, splice{span[0], span[1], d.paragraphXML(idx, text)})
	}
	if d.newMarker != nil {
		for _, span := range d.markerSpans {
			splices = append(splices, splice{span[0], span[1], ""})
		}
	}
	sort.Slice(splices, func(i, j int) bool { return splices[i].start > splices[j].start })

	doc := d.doc
	for _, s := range splices {
		doc = doc[:s.start] + s.text + doc[s.end:]
	}
	if d.newMarker != nil {
		markerPara := "<w:p><w:r><w:t xml:space=\"preserve\">" +
			escapeXML(docxMarkerOpen+*d.newMarker+docxMarkerClose) +
			"</w:t></w:r></w:p>"
		if at := strings.Index(doc, "<w:sectPr"); at >= 0 {
			doc = doc[:at] + markerPara + doc[at:]
		} else if at := strings.Index(doc, "</w:body>"); at >= 0 {
			doc = doc[:at] + markerPara + doc[at:]
		} else {
			return nil, fmt.Errorf("document.xml has no body element")
		}
	}

	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for _, part := range d.parts {
		w, err := writer.Create(part.name)
		if err != nil {
			return nil, fmt.Errorf("write docx part %s: %w", part.name, err)
		}
		data := part.data
		if part.name == documentPart {
			data = []byte(doc)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write docx part %s: %w", part.name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize docx package: %w", err)
	}
	return buf.Bytes(), nil
}

// paragraphXML rebuilds a paragraph element with new text, keeping the
// original paragraph properties. Newlines become explicit breaks.
func (d *Docx) paragraphXML(index int, text string) string {
	span := d.spans[index]
	original := d.doc[span[0]:span[1]]
	pPr := pPrRe.FindString(original)

	var runs strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			runs.WriteString("<w:r><w:br/></w:r>")
		}
		runs.WriteString("<w:r><w:t xml:space=\"preserve\">")
		runs.WriteString(escapeXML(line))
		runs.WriteString("</w:t></w:r>")
	}
	return "<w:p>" + pPr + runs.String() + "</w:p>"
}

// scan walks document.xml for paragraph elements in document order.
// Paragraph elements do not nest, so a sequential scan is exact; table-cell
// paragraphs are found the same way and keep their position.
func (d *Docx) scan() {
	pos := 0
	for {
		start := indexParagraph(d.doc, pos)
		if start < 0 {
			break
		}
		tagEnd := strings.Index(d.doc[start:], ">")
		if tagEnd < 0 {
			break
		}
		tagEnd += start + 1

		var end int
		if strings.HasSuffix(d.doc[start:tagEnd], "/>") {
			end = tagEnd
		} else {
			closing := strings.Index(d.doc[tagEnd:], "</w:p>")
			if closing < 0 {
				break
			}
			end = tagEnd + closing + len("</w:p>")
		}
		pos = end

		raw := d.doc[start:end]
		text := paragraphText(raw)

		if strings.HasPrefix(text, docxMarkerOpen) {
			payload := strings.TrimSuffix(strings.TrimPrefix(text, docxMarkerOpen), docxMarkerClose)
			d.markerPayload = strings.TrimSpace(payload)
			d.markerSpans = append(d.markerSpans, [2]int{start, end})
			continue
		}

		block := Block{Index: len(d.blocks), Kind: BlockParagraph, Text: text}
		if level, ok := headingLevel(raw); ok {
			block.Kind = BlockHeading
			block.Level = level
		}
		d.blocks = append(d.blocks, block)
		d.spans = append(d.spans, [2]int{start, end})
	}
}

// indexParagraph finds the next <w:p> element start at or after pos,
// skipping lookalike tags such as <w:pPr> and <w:pStyle>.
func indexParagraph(doc string, pos int) int {
	for {
		at := strings.Index(doc[pos:], "<w:p")
		if at < 0 {
			return -1
		}
		at += pos
		next := at + len("<w:p")
		if next < len(doc) {
			switch doc[next] {
			case '>', ' ', '/':
				return at
			}
		}
		pos = at + 1
	}
}

func paragraphText(raw string) string {
	var sb strings.Builder
	for _, match := range textRunRe.FindAllStringSubmatch(raw, -1) {
		sb.WriteString(unescapeXML(match[1]))
	}
	return strings.TrimSpace(sb.String())
}

func headingLevel(raw string) (int, bool) {
	style := styleRe.FindStringSubmatch(raw)
	if style == nil {
		return 0, false
	}
	match := headingNoRe.FindStringSubmatch(style[1])
	if match == nil {
		return 0, false
	}
	return int(match[1][0] - '0'), true
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func unescapeXML(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&apos;", "'")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}
