package pdfextract

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/langdetect"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// 缺少 MediaBox 时使用 US Letter
const (
	defaultPageWidth  float64 = 612
	defaultPageHeight float64 = 792
)

// pdfMagic PDF 文件头
var pdfMagic = []byte("%PDF-")

func init() {
	// 不读写 pdfcpu 的用户配置目录
	api.DisableConfigDir()
}

// Extractor 从 PDF 中提取带坐标的文本片段
type Extractor struct {
	logger   *zap.Logger
	validate bool
	newID    func() string
}

// Option 提取器选项
type Option func(*Extractor)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithValidation 是否在提取前用 pdfcpu 做结构校验
func WithValidation(enabled bool) Option {
	return func(e *Extractor) {
		e.validate = enabled
	}
}

// WithIDGenerator 设置片段 ID 生成函数
func WithIDGenerator(fn func() string) Option {
	return func(e *Extractor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// New 创建提取器
func New(opts ...Option) *Extractor {
	e := &Extractor{
		logger:   zap.NewNop(),
		validate: true,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsPDF 检查文件头
func IsPDF(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, pdfMagic)
}

// Validate 用 pdfcpu 以宽松模式校验 PDF 结构
func Validate(data []byte) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.Validate(bytes.NewReader(data), conf)
}

// Extract 解析 PDF，返回每页的原始文本片段（类型均为 paragraph，尚未做版面分析）
func (e *Extractor) Extract(data []byte, fileName string) (doc *document.ParsedDocument, err error) {
	if !IsPDF(data) {
		return nil, translation.UnsupportedFormat("%s is not a PDF file", fileName)
	}

	if e.validate {
		if verr := Validate(data); verr != nil {
			e.logger.Warn("pdf validation failed, trying extraction anyway",
				zap.String("file", fileName), zap.Error(verr))
		}
	}

	// ledongthuc/pdf 遇到损坏的文件可能 panic
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = translation.UnsupportedFormat("failed to read %s: %v", fileName, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, translation.WrapError(err, translation.ErrCodeUnsupportedFormat, "failed to open PDF")
	}

	doc = &document.ParsedDocument{
		FileName:  fileName,
		PageCount: reader.NumPage(),
	}

	var all strings.Builder
	for n := 1; n <= reader.NumPage(); n++ {
		page := reader.Page(n)
		width, height := defaultPageWidth, defaultPageHeight
		var blocks []document.TextBlock

		if !page.V.IsNull() {
			width, height = mediaBox(page.V)
			blocks = e.coalesce(page.Content().Text, n, height)
		}

		for _, b := range blocks {
			if b.Direction == document.DirectionRTL {
				doc.HasRTL = true
			}
			all.WriteString(b.Text)
			all.WriteByte(' ')
		}

		doc.Pages = append(doc.Pages, document.PageData{
			PageNumber: n,
			Width:      width,
			Height:     height,
			Blocks:     blocks,
		})
		doc.TotalBlocks += len(blocks)
	}

	doc.DetectedLanguage = langdetect.DetectLanguage(all.String())

	e.logger.Debug("pdf extracted",
		zap.String("file", fileName),
		zap.Int("pages", doc.PageCount),
		zap.Int("fragments", doc.TotalBlocks),
		zap.String("language", string(doc.DetectedLanguage)))

	return doc, nil
}

// coalesce 把同一行上相邻的字形合并为文本片段，坐标换算为左上角原点，Y 为文字框顶部
func (e *Extractor) coalesce(glyphs []pdf.Text, pageNumber int, pageHeight float64) []document.TextBlock {
	var (
		blocks []document.TextBlock
		run    []pdf.Text
	)

	flush := func() {
		if len(run) == 0 {
			return
		}
		if b, ok := e.fragment(run, pageNumber, pageHeight); ok {
			blocks = append(blocks, b)
		}
		run = run[:0]
	}

	for _, g := range glyphs {
		if g.S == "" || g.S == "\n" {
			continue
		}
		if len(run) > 0 && !sameRun(run[len(run)-1], g) {
			flush()
		}
		run = append(run, g)
	}
	flush()

	return blocks
}

// sameRun 同一基线、同一字号且水平间距不大
func sameRun(prev, next pdf.Text) bool {
	fs := math.Max(prev.FontSize, 1)
	if math.Abs(prev.Y-next.Y) > fs*0.3 {
		return false
	}
	if math.Abs(prev.FontSize-next.FontSize) > 0.5 || prev.Font != next.Font {
		return false
	}
	gap := next.X - (prev.X + prev.W)
	return gap > -fs && gap < fs*2
}

func (e *Extractor) fragment(run []pdf.Text, pageNumber int, pageHeight float64) (document.TextBlock, bool) {
	var sb strings.Builder
	first := run[0]
	minX, maxX := first.X, first.X+first.W

	for i, g := range run {
		if i > 0 {
			prev := run[i-1]
			gap := g.X - (prev.X + prev.W)
			if gap > math.Max(prev.FontSize, 1)*0.25 && !strings.HasSuffix(sb.String(), " ") && !strings.HasPrefix(g.S, " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(g.S)
		minX = math.Min(minX, g.X)
		maxX = math.Max(maxX, g.X+g.W)
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return document.TextBlock{}, false
	}

	fontSize := math.Abs(first.FontSize)
	width := maxX - minX
	if width <= 0 {
		width = fontSize * float64(len([]rune(text))) * 0.6
	}

	weight := ""
	if strings.Contains(strings.ToLower(first.Font), "bold") {
		weight = "bold"
	}

	return document.TextBlock{
		ID:         e.newID(),
		Text:       text,
		PageNumber: pageNumber,
		// Y 为文字框顶部：基线向上一个字号
		BoundingBox: document.BoundingBox{
			X:      minX,
			Y:      pageHeight - first.Y - fontSize,
			Width:  width,
			Height: fontSize,
		},
		FontInfo: document.FontInfo{
			Name:   first.Font,
			Size:   fontSize,
			Weight: weight,
		},
		Type:      document.BlockTypeParagraph,
		Direction: langdetect.DetectDirection(text),
	}, true
}

// mediaBox 读取页面尺寸，沿 Parent 查找继承值
func mediaBox(v pdf.Value) (float64, float64) {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			w := box.Index(2).Float64() - box.Index(0).Float64()
			h := box.Index(3).Float64() - box.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageWidth, defaultPageHeight
}

// PageSize 返回文档第一页的尺寸，无页面时返回默认值
func PageSize(doc *document.ParsedDocument) (float64, float64) {
	if doc == nil || len(doc.Pages) == 0 {
		return defaultPageWidth, defaultPageHeight
	}
	return doc.Pages[0].Width, doc.Pages[0].Height
}

// Summary 文档的简要描述
func Summary(doc *document.ParsedDocument) string {
	return fmt.Sprintf("%s: %d pages, %d fragments, language %s, rtl=%t",
		doc.FileName, doc.PageCount, doc.TotalBlocks, langdetect.DisplayName(doc.DetectedLanguage), doc.HasRTL)
}
