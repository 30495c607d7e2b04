package export

import (
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// 流式排版参数（单位 pt）
const (
	flowMargin     = 50.0
	flowFontSize   = 11.0
	flowLineHeight = 14.0

	// 版面模式下的最大字号
	maxLayoutFontSize = 24.0

	pdfFont    = "Helvetica"
	emptyText  = "No translations available"
	ellipsis   = "..."
	pdfCreator = "pdftrans"
)

// paperFormat 返回 gofpdf 的纸张名
func paperFormat(paper string) string {
	if strings.EqualFold(paper, PaperLetter) {
		return "Letter"
	}
	return "A4"
}

func newPDF(paper string) (*gofpdf.Fpdf, func(string) string) {
	pdf := gofpdf.New("P", "pt", paperFormat(paper), "")
	pdf.SetCreator(pdfCreator, false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	return pdf, pdf.UnicodeTranslatorFromDescriptor("")
}

// WriteLayoutPDF 按重建后的位置逐页绘制译文，每页尺寸与原文一致
func (e *Exporter) WriteLayoutPDF(w io.Writer, doc document.ReconstructedDocument) error {
	pdf, tr := newPDF(PaperLetter)

	for _, page := range doc.Pages {
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: page.Width, Ht: page.Height})
		pdf.SetTextColor(0, 0, 0)

		for _, el := range page.Elements {
			size := min(el.FontSize, maxLayoutFontSize)
			if size <= 0 {
				continue
			}
			pdf.SetFont(pdfFont, "", size)

			text := fitWidth(pdf, tr(SanitizeWinAnsi(el.Text)), el.Width)
			if strings.TrimSpace(text) == "" {
				continue
			}
			// gofpdf 以左上角为原点，Text 的 y 是基线；框顶部向下一个原字号即原基线
			pdf.Text(el.X, el.Y+el.FontSize, text)
		}

		if pdf.Err() {
			e.logger.Warn("failed to draw page", zap.Int("page", page.PageNumber), zap.Error(pdf.Error()))
			return pdf.Error()
		}
	}

	return pdf.Output(w)
}

// fitWidth 超出宽度时截断并追加省略号。text 已转换为单字节编码。
func fitWidth(pdf *gofpdf.Fpdf, text string, width float64) string {
	if width <= 0 || pdf.GetStringWidth(text) <= width {
		return text
	}
	for len(text) > 0 && pdf.GetStringWidth(text+ellipsis) > width {
		text = text[:len(text)-1]
	}
	return text + ellipsis
}

// WriteFlowPDF 把全文按段落重新排版，不保留原版面
func (e *Exporter) WriteFlowPDF(w io.Writer, fullText, paper string) error {
	pdf, tr := newPDF(paper)
	_, pageHeight := pdf.GetPageSize()

	pdf.AddPage()
	pdf.SetFont(pdfFont, "", flowFontSize)

	text := SanitizeWinAnsi(fullText)
	if strings.TrimSpace(text) == "" {
		pdf.SetTextColor(128, 128, 128)
		pdf.Text(flowMargin, flowMargin, emptyText)
		return pdf.Output(w)
	}

	pdf.SetTextColor(0, 0, 0)
	pageWidth, _ := pdf.GetPageSize()
	maxWidth := pageWidth - flowMargin*2
	bottom := pageHeight - flowMargin
	y := flowMargin

	newPage := func() {
		pdf.AddPage()
		pdf.SetFont(pdfFont, "", flowFontSize)
		pdf.SetTextColor(0, 0, 0)
		y = flowMargin
	}

	for _, para := range paragraphs(text) {
		if y > bottom-flowLineHeight*2 {
			newPage()
		}

		line := ""
		for _, word := range strings.Fields(para) {
			word = tr(word)
			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if line != "" && pdf.GetStringWidth(candidate) > maxWidth {
				pdf.Text(flowMargin, y, line)
				y += flowLineHeight
				line = word
				if y > bottom {
					newPage()
				}
				continue
			}
			line = candidate
		}
		if line != "" {
			pdf.Text(flowMargin, y, line)
			y += flowLineHeight
		}

		y += flowLineHeight * 0.5
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.Output(w)
}

// paragraphs 以空行切分段落，跳过空白段
func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
