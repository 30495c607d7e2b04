// Package export 把翻译结果渲染为 PDF、DOCX、HTML 或纯文本。
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/reconstruct"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// Format 导出格式
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatHTML Format = "html"
	FormatText Format = "txt"
)

// 纸张尺寸
const (
	PaperA4     = "a4"
	PaperLetter = "letter"
)

// ParseFormat 解析格式名或文件扩展名
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	if ext := filepath.Ext(s); ext != "" {
		s = strings.TrimPrefix(ext, ".")
	}
	switch s {
	case "pdf":
		return FormatPDF, nil
	case "docx":
		return FormatDOCX, nil
	case "html", "htm":
		return FormatHTML, nil
	case "txt", "text", "md":
		return FormatText, nil
	}
	return "", translation.UnsupportedFormat("unsupported export format %q", s)
}

// ContentType HTTP 响应类型
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// FileName 导出文件名，如 report.pdf -> report-translated.docx
func FileName(original string, f Format) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	if base == "" || base == "." {
		base = "document"
	}
	return fmt.Sprintf("%s-translated.%s", base, f)
}

// Source 导出所需的任务数据
type Source struct {
	FileName       string
	SourceLanguage document.SourceLanguage
	Chunks         []document.Chunk
	Translated     map[string]document.TranslatedChunk
	// Reconstructed 为空时 PDF 总是使用流式排版
	Reconstructed *document.ReconstructedDocument
}

// FullText 按分块顺序拼接的译文
func (s Source) FullText() string {
	return reconstruct.FullTranslatedText(s.Chunks, s.Translated)
}

// Options 导出选项
type Options struct {
	PaperSize       string
	PreserveLayout  bool
	IncludeOriginal bool
	// Date 写入 DOCX 的翻译日期，零值表示当前时间
	Date time.Time
}

// DefaultOptions 默认导出选项
func DefaultOptions() Options {
	return Options{
		PaperSize:      PaperA4,
		PreserveLayout: true,
	}
}

// Exporter 渲染器
type Exporter struct {
	logger *zap.Logger
}

// New 创建渲染器
func New(logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{logger: logger}
}

// Render 按格式写出
func (e *Exporter) Render(w io.Writer, f Format, src Source, opts Options) error {
	var err error
	switch f {
	case FormatPDF:
		if opts.PreserveLayout && src.Reconstructed != nil && len(src.Reconstructed.Pages) > 0 {
			err = e.WriteLayoutPDF(w, *src.Reconstructed)
		} else {
			err = e.WriteFlowPDF(w, src.FullText(), opts.PaperSize)
		}
	case FormatDOCX:
		err = e.WriteDOCX(w, src, opts)
	case FormatHTML:
		err = WriteHTML(w, src.FileName, src.FullText())
	case FormatText:
		_, err = io.WriteString(w, src.FullText())
	default:
		return translation.UnsupportedFormat("unsupported export format %q", f)
	}
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", f, err)
	}

	e.logger.Debug("document exported",
		zap.String("file", src.FileName),
		zap.String("format", string(f)),
		zap.Int("chunks", len(src.Chunks)),
		zap.Int("translated", len(src.Translated)))
	return nil
}
