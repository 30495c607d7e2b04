package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fumiama/go-docx"
	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	xhtml "golang.org/x/net/html"

	"github.com/nerdneilsfield/go-pdf-translator/internal/pdfextract"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/reconstruct"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

func sampleSource() Source {
	chunks := []document.Chunk{
		{ID: "c1", Index: 1, Text: "Zweiter Absatz."},
		{ID: "c0", Index: 0, Text: "Erster Absatz.\n\nNoch ein Absatz."},
	}
	return Source{
		FileName:       "vertrag.pdf",
		SourceLanguage: document.LanguageGerman,
		Chunks:         chunks,
		Translated: map[string]document.TranslatedChunk{
			"c0": {ChunkID: "c0", TranslatedText: "Hello world.\n\nAnother paragraph."},
			"c1": {ChunkID: "c1", TranslatedText: "Second paragraph."},
		},
	}
}

func extractText(t *testing.T, data []byte) (*document.ParsedDocument, string) {
	t.Helper()
	doc, err := pdfextract.New(pdfextract.WithValidation(false)).Extract(data, "out.pdf")
	require.NoError(t, err)

	var parts []string
	for _, p := range doc.Pages {
		for _, b := range p.Blocks {
			parts = append(parts, b.Text)
		}
	}
	return doc, strings.Join(parts, " ")
}

func TestSanitizeWinAnsi(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"turkish", "İstanbul ığdır Şişli", "Istanbul igdir Sisli"},
		{"latin1 kept", "Grüße für Çalışkan", "Grüße für Çaliskan"},
		{"punctuation", "“quoted” ‘single’ – dash — long…", `"quoted" 'single' - dash - long...`},
		{"bullets", "• one · two", "* one * two"},
		{"zero width", "a\u200bb\ufeffc", "abc"},
		{"marks stripped", "Őrség ŷ", "Orség y"},
		{"unmappable", "中文 مرحبا", "?? ?????"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeWinAnsi(tt.in))
		})
	}
}

func TestParseFormat(t *testing.T) {
	cases := map[string]Format{
		"pdf":          FormatPDF,
		"PDF":          FormatPDF,
		"out.docx":     FormatDOCX,
		".html":        FormatHTML,
		"notes.txt":    FormatText,
		"text":         FormatText,
		"/tmp/out.htm": FormatHTML,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("out.odt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, translation.ErrUnsupportedFormat))
}

func TestFileNameAndContentType(t *testing.T) {
	assert.Equal(t, "report-translated.docx", FileName("report.pdf", FormatDOCX))
	assert.Equal(t, "report-translated.pdf", FileName("/uploads/report.PDF", FormatPDF))
	assert.Equal(t, "document-translated.txt", FileName("", FormatText))
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
	assert.Contains(t, FormatHTML.ContentType(), "text/html")
}

func TestFlowPDF(t *testing.T) {
	e := New(zaptest.NewLogger(t))
	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, FormatPDF, sampleSource(), Options{PaperSize: PaperA4}))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	doc, text := extractText(t, buf.Bytes())
	assert.Equal(t, 1, doc.PageCount)
	assert.InDelta(t, 595.28, doc.Pages[0].Width, 0.5)
	assert.InDelta(t, 841.89, doc.Pages[0].Height, 0.5)
	assert.Contains(t, text, "Hello world.")
	assert.Contains(t, text, "Second paragraph.")
	assert.Less(t, strings.Index(text, "Hello"), strings.Index(text, "Second"))
}

func TestFlowPDFLetterAndPaging(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 120; i++ {
		sb.WriteString("This paragraph is long enough to wrap across more than one line of text on the page.\n\n")
	}

	var buf bytes.Buffer
	require.NoError(t, New(nil).WriteFlowPDF(&buf, sb.String(), PaperLetter))

	doc, _ := extractText(t, buf.Bytes())
	assert.Greater(t, doc.PageCount, 1)
	assert.InDelta(t, 612, doc.Pages[0].Width, 0.5)
	assert.InDelta(t, 792, doc.Pages[0].Height, 0.5)
}

func TestFlowPDFEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(nil).WriteFlowPDF(&buf, "  \n\n ", PaperA4))

	doc, text := extractText(t, buf.Bytes())
	assert.Equal(t, 1, doc.PageCount)
	assert.Contains(t, text, "No translations available")
}

func TestLayoutPDF(t *testing.T) {
	src := sampleSource()
	src.Reconstructed = &document.ReconstructedDocument{
		Pages: []document.ReconstructedPage{
			{
				PageNumber: 1, Width: 612, Height: 792,
				Elements: []document.TextPlacement{
					{Text: "Translated heading", X: 72, Y: 80, Width: 400, Height: 18, FontSize: 18},
					{Text: "Body line", X: 72, Y: 120, Width: 400, Height: 12, FontSize: 40},
				},
			},
			{
				PageNumber: 2, Width: 500, Height: 700,
				Elements: []document.TextPlacement{
					{Text: "Second page", X: 50, Y: 50, Width: 300, Height: 12, FontSize: 12},
				},
			},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, New(nil).Render(&buf, FormatPDF, src, Options{PreserveLayout: true}))

	doc, text := extractText(t, buf.Bytes())
	require.Equal(t, 2, doc.PageCount)
	assert.InDelta(t, 500, doc.Pages[1].Width, 0.5)
	assert.InDelta(t, 700, doc.Pages[1].Height, 0.5)
	assert.Contains(t, text, "Translated heading")
	assert.Contains(t, text, "Second page")

	for _, b := range doc.Pages[0].Blocks {
		assert.LessOrEqual(t, b.FontInfo.Size, maxLayoutFontSize+0.01)
	}
}

func TestLayoutPDFKeepsBaseline(t *testing.T) {
	p := gofpdf.New("P", "pt", "Letter", "")
	p.AddPage()
	p.SetFont("Helvetica", "", 12)
	p.Text(72, 100, "Hallo Welt")
	var in bytes.Buffer
	require.NoError(t, p.Output(&in))

	orig, _ := extractText(t, in.Bytes())
	require.NotEmpty(t, orig.Pages[0].Blocks)
	block := orig.Pages[0].Blocks[0]
	assert.InDelta(t, 100, block.BoundingBox.Y+block.FontInfo.Size, 0.5)

	placed := reconstruct.PlaceBlock(block, "Hi World", orig.Pages[0].Width)
	rec := document.ReconstructedDocument{
		Pages: []document.ReconstructedPage{{
			PageNumber: 1,
			Width:      orig.Pages[0].Width,
			Height:     orig.Pages[0].Height,
			Elements:   []document.TextPlacement{placed},
		}},
	}

	var out bytes.Buffer
	require.NoError(t, New(zaptest.NewLogger(t)).WriteLayoutPDF(&out, rec))

	again, text := extractText(t, out.Bytes())
	assert.Contains(t, text, "Hi World")
	require.NotEmpty(t, again.Pages[0].Blocks)
	got := again.Pages[0].Blocks[0]
	assert.InDelta(t, block.BoundingBox.Y, got.BoundingBox.Y, 0.5)
	assert.InDelta(t, 100, got.BoundingBox.Y+got.FontInfo.Size, 0.5)
	assert.InDelta(t, block.BoundingBox.X, got.BoundingBox.X, 0.5)
}

func TestLayoutFallsBackToFlow(t *testing.T) {
	src := sampleSource()
	src.Reconstructed = &document.ReconstructedDocument{}

	var buf bytes.Buffer
	require.NoError(t, New(nil).Render(&buf, FormatPDF, src, Options{PreserveLayout: true, PaperSize: PaperA4}))
	doc, text := extractText(t, buf.Bytes())
	assert.InDelta(t, 595.28, doc.Pages[0].Width, 0.5)
	assert.Contains(t, text, "Another paragraph.")
}

func TestFitWidth(t *testing.T) {
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	pdf.SetFont(pdfFont, "", 12)

	assert.Equal(t, "short", fitWidth(pdf, "short", 200))
	assert.Equal(t, "no limit", fitWidth(pdf, "no limit", 0))

	long := strings.Repeat("word ", 40)
	got := fitWidth(pdf, long, 100)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, pdf.GetStringWidth(got), 100.0)
}

func docxParagraphs(t *testing.T, data []byte) []string {
	t.Helper()
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var out []string
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		var sb strings.Builder
		for _, child := range para.Children {
			run, ok := child.(*docx.Run)
			if !ok {
				continue
			}
			for _, rc := range run.Children {
				if txt, ok := rc.(*docx.Text); ok {
					sb.WriteString(txt.Text)
				}
			}
		}
		if s := strings.TrimSpace(sb.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func TestDOCX(t *testing.T) {
	date := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, New(nil).Render(&buf, FormatDOCX, sampleSource(), Options{Date: date}))

	paras := docxParagraphs(t, buf.Bytes())
	assert.Equal(t, []string{
		"Translated Document: vertrag.pdf",
		"Source Language: German",
		"Translated: 2026-01-02",
		"Hello world.",
		"Another paragraph.",
		"Second paragraph.",
	}, paras)
}

func TestDOCXIncludeOriginal(t *testing.T) {
	src := sampleSource()
	delete(src.Translated, "c1")

	var buf bytes.Buffer
	require.NoError(t, New(nil).WriteDOCX(&buf, src, Options{IncludeOriginal: true, Date: time.Now()}))

	paras := docxParagraphs(t, buf.Bytes())
	require.GreaterOrEqual(t, len(paras), 3)
	assert.Equal(t, []string{
		"Original (Chunk 1)",
		"Erster Absatz.",
		"Noch ein Absatz.",
		"Translation:",
		"Hello world.",
		"Another paragraph.",
		"Original (Chunk 2)",
		"Zweiter Absatz.",
		"Translation:",
	}, paras[3:])
}

func findNode(n *xhtml.Node, tag string) *xhtml.Node {
	if n.Type == xhtml.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func TestHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, "a <b> & c.pdf", "# Heading\n\nSome **bold** text."))

	root, err := xhtml.Parse(&buf)
	require.NoError(t, err)

	title := findNode(root, "title")
	require.NotNil(t, title)
	require.NotNil(t, title.FirstChild)
	assert.Equal(t, "a <b> & c.pdf", title.FirstChild.Data)

	h1 := findNode(root, "h1")
	require.NotNil(t, h1)
	assert.Equal(t, "Heading", h1.FirstChild.Data)

	strong := findNode(root, "strong")
	require.NotNil(t, strong)
	assert.Equal(t, "bold", strong.FirstChild.Data)
}

func TestTextAndUnknownFormat(t *testing.T) {
	e := New(nil)
	var buf bytes.Buffer
	require.NoError(t, e.Render(&buf, FormatText, sampleSource(), DefaultOptions()))
	assert.Equal(t, "Hello world.\n\nAnother paragraph.\n\nSecond paragraph.", buf.String())

	err := e.Render(&buf, Format("odt"), sampleSource(), DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, translation.ErrUnsupportedFormat))
}
