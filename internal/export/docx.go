package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fumiama/go-docx"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/langdetect"
)

// 字号单位为半磅
const (
	docxTitleSize    = "36"
	docxHeadingSize  = "26"
	docxMetaSize     = "20"
	docxOriginalSize = "22"
	docxBodySize     = "24"

	docxMutedColor = "666666"
)

// WriteDOCX 生成 Word 文档：标题、源语言、日期，
// 然后按分块顺序写出译文，IncludeOriginal 时在每块前附上原文。
func (e *Exporter) WriteDOCX(w io.Writer, src Source, opts Options) error {
	date := opts.Date
	if date.IsZero() {
		date = time.Now()
	}

	doc := docx.New().WithDefaultTheme().WithA4Page()

	doc.AddParagraph().Justification("center").
		AddText("Translated Document: " + src.FileName).Bold().Size(docxTitleSize)

	doc.AddParagraph().
		AddText("Source Language: " + langdetect.DisplayName(src.SourceLanguage)).
		Size(docxMetaSize).Color(docxMutedColor)
	doc.AddParagraph().
		AddText("Translated: " + date.Format("2006-01-02")).
		Size(docxMetaSize).Color(docxMutedColor)
	doc.AddParagraph()

	chunks := append([]document.Chunk(nil), src.Chunks...)
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })

	for _, ch := range chunks {
		if opts.IncludeOriginal {
			heading(doc, fmt.Sprintf("Original (Chunk %d)", ch.Index+1))
			for _, para := range paragraphs(ch.Text) {
				doc.AddParagraph().AddText(para).Size(docxOriginalSize).Color(docxMutedColor)
			}
			heading(doc, "Translation:")
		}

		if tc, ok := src.Translated[ch.ID]; ok {
			for _, para := range paragraphs(tc.TranslatedText) {
				doc.AddParagraph().AddText(para).Size(docxBodySize)
			}
		}

		if opts.IncludeOriginal {
			doc.AddParagraph()
		}
	}

	_, err := doc.WriteTo(w)
	return err
}

func heading(doc *docx.Docx, text string) {
	doc.AddParagraph().AddText(strings.TrimSpace(text)).Bold().Size(docxHeadingSize)
}
