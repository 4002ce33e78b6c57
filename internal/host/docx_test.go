package host

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govdraft/internal/section"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	parts := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":   documentXML,
		"word/styles.xml":     `<w:styles/>`,
	}
	for _, name := range []string{"[Content_Types].xml", "word/document.xml", "word/styles.xml"} {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(parts[name]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func readDocumentXML(t *testing.T, raw []byte) string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	require.NoError(t, err)
	for _, f := range r.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(data)
	}
	t.Fatal("no word/document.xml in archive")
	return ""
}

const docxDocument = `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>[FILL][ID:scope] Scope</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Describe the </w:t></w:r><w:r><w:t>scope &amp; limits.</w:t></w:r></w:p>` +
	`<w:p><w:pPr><w:pStyle w:val="Heading2"/></w:pPr><w:r><w:t>Appendix</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Fixed appendix text.</w:t></w:r></w:p>` +
	`<w:sectPr></w:sectPr></w:body></w:document>`

func TestDocxScan(t *testing.T) {
	d, err := NewDocx(buildDocx(t, docxDocument))
	require.NoError(t, err)
	assert.Equal(t, section.FormatDocx, d.Format())

	blocks := d.Blocks()
	require.Len(t, blocks, 4)

	assert.Equal(t, BlockHeading, blocks[0].Kind)
	assert.Equal(t, 2, blocks[0].Level)
	assert.Equal(t, "[FILL][ID:scope] Scope", blocks[0].Text)

	assert.Equal(t, BlockParagraph, blocks[1].Kind)
	assert.Equal(t, "Describe the scope & limits.", blocks[1].Text)

	assert.Equal(t, BlockHeading, blocks[2].Kind)
	assert.Equal(t, "Appendix", blocks[2].Text)
}

func TestDocxRenderWithoutEditsKeepsDocument(t *testing.T) {
	d, err := NewDocx(buildDocx(t, docxDocument))
	require.NoError(t, err)

	out, err := d.Render()
	require.NoError(t, err)
	assert.Equal(t, docxDocument, readDocumentXML(t, out))
}

func TestDocxEditKeepsParagraphProperties(t *testing.T) {
	d, err := NewDocx(buildDocx(t, docxDocument))
	require.NoError(t, err)
	require.NoError(t, d.SetBlockText(1, "New narrative.\nSecond line <ok>."))

	out, err := d.Render()
	require.NoError(t, err)
	doc := readDocumentXML(t, out)

	assert.NotContains(t, doc, "Describe the ")
	assert.Contains(t, doc, `<w:t xml:space="preserve">New narrative.</w:t>`)
	assert.Contains(t, doc, "<w:br/>")
	assert.Contains(t, doc, "Second line &lt;ok&gt;.")
	assert.Contains(t, doc, "Fixed appendix text.")

	reread, err := NewDocx(out)
	require.NoError(t, err)
	blocks := reread.Blocks()
	require.Len(t, blocks, 4)
	assert.Contains(t, blocks[1].Text, "Second line <ok>.")
}

func TestDocxMarkerRoundTrip(t *testing.T) {
	d, err := NewDocx(buildDocx(t, docxDocument))
	require.NoError(t, err)
	_, present := d.Marker()
	assert.False(t, present)

	d.SetMarker("run=abc draft=def at=2026-01-02T03:04:05Z")
	out, err := d.Render()
	require.NoError(t, err)

	doc := readDocumentXML(t, out)
	markerAt := strings.Index(doc, "[GOVDRAFT_APPLIED")
	sectPrAt := strings.Index(doc, "<w:sectPr")
	require.Greater(t, markerAt, 0)
	assert.Less(t, markerAt, sectPrAt)

	reread, err := NewDocx(out)
	require.NoError(t, err)
	payload, present := reread.Marker()
	require.True(t, present)
	assert.Equal(t, "run=abc draft=def at=2026-01-02T03:04:05Z", payload)
	assert.Len(t, reread.Blocks(), len(d.Blocks()))
}

func TestDocxSetMarkerReplacesExisting(t *testing.T) {
	d, err := NewDocx(buildDocx(t, docxDocument))
	require.NoError(t, err)
	d.SetMarker("run=first draft=aaa at=2026-01-02T03:04:05Z")
	first, err := d.Render()
	require.NoError(t, err)

	second, err := NewDocx(first)
	require.NoError(t, err)
	second.SetMarker("run=second draft=bbb at=2026-01-03T03:04:05Z")
	out, err := second.Render()
	require.NoError(t, err)

	doc := readDocumentXML(t, out)
	assert.NotContains(t, doc, "run=first")
	assert.Contains(t, doc, "run=second")
}

func TestDocxRejectsPackageWithoutDocument(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<w:styles/>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = NewDocx(buf.Bytes())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "word/document.xml")
}

func TestDocxRejectsGarbage(t *testing.T) {
	_, err := NewDocx([]byte("not a zip archive"))
	assert.Error(t, err)
}
