package host

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"govdraft/internal/section"
)

var headingRe = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

const (
	regionBeginPrefix = "<!-- govdraft:content "
	regionBeginSuffix = " -->"
	regionEnd         = "<!-- govdraft:content:end -->"
	mdMarkerPrefix    = "<!-- govdraft:applied "
	mdMarkerSuffix    = " -->"
)

// RegionBegin returns the opening delimiter for a generated content region.
func RegionBegin(sectionID string) string {
	return regionBeginPrefix + sectionID + regionBeginSuffix
}

// RegionEnd returns the closing delimiter for a generated content region.
func RegionEnd() string { return regionEnd }

// Markdown is the plain-text host. Blocks map to byte ranges of the source,
// so rendering splices edits without disturbing any other byte.
type Markdown struct {
	src    string
	blocks []Block
	spans  [][2]int // [start, end) per block, aligned with blocks
	edits  map[int]string

	markerPayload string
	markerSpans   [][2]int // existing marker lines, removed on SetMarker
	newMarker     *string
}

// NewMarkdown scans the source into heading, region, and paragraph blocks.
func NewMarkdown(raw []byte) *Markdown {
	m := &Markdown{src: string(raw), edits: map[int]string{}}
	m.scan()
	return m
}

func (m *Markdown) Format() section.Format { return section.FormatMarkdown }

func (m *Markdown) Blocks() []Block { return m.blocks }

func (m *Markdown) SetBlockText(index int, text string) error {
	if index < 0 || index >= len(m.blocks) {
		return fmt.Errorf("block index %d out of range", index)
	}
	m.edits[index] = text
	return nil
}

func (m *Markdown) Marker() (string, bool) {
	return m.markerPayload, m.markerPayload != ""
}

func (m *Markdown) SetMarker(payload string) {
	line := mdMarkerPrefix + payload + mdMarkerSuffix
	m.newMarker = &line
}

func (m *Markdown) Render() ([]byte, error) {
	type splice struct {
		start, end int
		text       string
	}
	var splices []splice
	for idx, text := range m.edits {
		span := m.spans[idx]
		splices = append(splices, splice{span[0], span[1], text})
	}
	if m.newMarker != nil {
		for _, span := range m.markerSpans {
			splices = append(splices, splice{span[0], span[1], ""})
		}
	}
	sort.Slice(splices, func(i, j int) bool { return splices[i].start > splices[j].start })

	out := m.src
	for _, s := range splices {
		out = out[:s.start] + s.text + out[s.end:]
	}
	if m.newMarker != nil {
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		out += "\n" + *m.newMarker + "\n"
	}
	return []byte(out), nil
}

// scan partitions the source into blocks: heading lines, generated regions
// (kept whole regardless of internal blank lines), and blank-line-delimited
// paragraph chunks. Apply-marker lines are recorded but not exposed as
// blocks.
func (m *Markdown) scan() {
	lines := strings.Split(m.src, "\n")
	offsets := make([]int, len(lines))
	pos := 0
	for i, line := range lines {
		offsets[i] = pos
		pos += len(line) + 1
	}
	lineEnd := func(i int) int {
		end := offsets[i] + len(lines[i])
		if end > len(m.src) {
			end = len(m.src)
		}
		return end
	}

	var paraStart = -1
	flushPara := func(lastLine int) {
		if paraStart < 0 {
			return
		}
		start := offsets[paraStart]
		end := lineEnd(lastLine)
		text := m.src[start:end]
		m.blocks = append(m.blocks, Block{Index: len(m.blocks), Kind: BlockParagraph, Text: text})
		m.spans = append(m.spans, [2]int{start, end})
		paraStart = -1
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flushPara(i - 1)

		case strings.HasPrefix(trimmed, mdMarkerPrefix):
			flushPara(i - 1)
			payload := strings.TrimSuffix(strings.TrimPrefix(trimmed, mdMarkerPrefix), mdMarkerSuffix)
			m.markerPayload = strings.TrimSpace(payload)
			m.markerSpans = append(m.markerSpans, [2]int{offsets[i], lineEnd(i)})

		case strings.HasPrefix(trimmed, regionBeginPrefix):
			flushPara(i - 1)
			regionID := strings.TrimSpace(
				strings.TrimSuffix(strings.TrimPrefix(trimmed, regionBeginPrefix), regionBeginSuffix))
			end := -1
			for j := i; j < len(lines); j++ {
				if strings.TrimSpace(lines[j]) == regionEnd {
					end = j
					break
				}
			}
			if end < 0 {
				// Unterminated region: stop before the next heading so the
				// rest of the document keeps its structure.
				end = len(lines) - 1
				for j := i + 1; j < len(lines); j++ {
					if headingRe.MatchString(lines[j]) {
						end = j - 1
						break
					}
				}
			}
			start := offsets[i]
			stop := lineEnd(end)
			m.blocks = append(m.blocks, Block{
				Index:    len(m.blocks),
				Kind:     BlockParagraph,
				Text:     m.src[start:stop],
				RegionID: regionID,
			})
			m.spans = append(m.spans, [2]int{start, stop})
			i = end

		case headingRe.MatchString(line):
			flushPara(i - 1)
			match := headingRe.FindStringSubmatch(line)
			start := offsets[i]
			end := lineEnd(i)
			m.blocks = append(m.blocks, Block{
				Index: len(m.blocks),
				Kind:  BlockHeading,
				Level: len(match[1]),
				Text:  match[2],
			})
			m.spans = append(m.spans, [2]int{start, end})

		default:
			if paraStart < 0 {
				paraStart = i
			}
		}
	}
	flushPara(len(lines) - 1)
}
