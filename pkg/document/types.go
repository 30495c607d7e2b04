package document

import (
	"time"
)

// Direction 文本书写方向
type Direction string

const (
	DirectionLTR Direction = "ltr"
	DirectionRTL Direction = "rtl"
)

// BlockType 块类型
type BlockType string

const (
	BlockTypeHeader    BlockType = "header"
	BlockTypeParagraph BlockType = "paragraph"
	BlockTypeListItem  BlockType = "list-item"
	BlockTypeFooter    BlockType = "footer"
	// BlockTypeCaption 保留类型，分析器不会产出
	BlockTypeCaption BlockType = "caption"
)

// SourceLanguage 支持的源语言
type SourceLanguage string

const (
	LanguageArabic  SourceLanguage = "arabic"
	LanguageTurkish SourceLanguage = "turkish"
	LanguageGerman  SourceLanguage = "german"
	LanguageUnknown SourceLanguage = "unknown"
)

// SupportedLanguages 可作为翻译源的语言
func SupportedLanguages() []SourceLanguage {
	return []SourceLanguage{LanguageArabic, LanguageTurkish, LanguageGerman}
}

// IsSupported 是否为受支持的源语言
func (l SourceLanguage) IsSupported() bool {
	switch l {
	case LanguageArabic, LanguageTurkish, LanguageGerman:
		return true
	}
	return false
}

// BoundingBox 页面内坐标，原点在左上角
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right 右边界
func (b BoundingBox) Right() float64 { return b.X + b.Width }

// Bottom 下边界
func (b BoundingBox) Bottom() float64 { return b.Y + b.Height }

// Union 返回同时包含两个矩形的最小矩形
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	x := min(b.X, o.X)
	y := min(b.Y, o.Y)
	return BoundingBox{
		X:      x,
		Y:      y,
		Width:  max(b.Right(), o.Right()) - x,
		Height: max(b.Bottom(), o.Bottom()) - y,
	}
}

// FontInfo 字体信息
type FontInfo struct {
	Name   string  `json:"name"`
	Size   float64 `json:"size"`
	Weight string  `json:"weight,omitempty"`
}

// TextBlock 一个带几何信息的文本块。原始片段在分析前类型为 paragraph。
type TextBlock struct {
	ID          string      `json:"id"`
	Text        string      `json:"text"`
	PageNumber  int         `json:"pageNumber"`
	BoundingBox BoundingBox `json:"boundingBox"`
	FontInfo    FontInfo    `json:"fontInfo"`
	Type        BlockType   `json:"type"`
	Direction   Direction   `json:"direction"`
}

// PageData 单页数据
type PageData struct {
	PageNumber int         `json:"pageNumber"`
	Width      float64     `json:"width"`
	Height     float64     `json:"height"`
	Blocks     []TextBlock `json:"blocks"`
}

// ParsedDocument 解析后的文档
type ParsedDocument struct {
	FileName         string         `json:"fileName"`
	PageCount        int            `json:"pageCount"`
	Pages            []PageData     `json:"pages"`
	DetectedLanguage SourceLanguage `json:"detectedLanguage,omitempty"`
	HasRTL           bool           `json:"hasRTL"`
	TotalBlocks      int            `json:"totalBlocks"`
}

// ChunkMetadata 分块在文档中的位置信息
type ChunkMetadata struct {
	IsFirstChunk           bool     `json:"isFirstChunk"`
	IsLastChunk            bool     `json:"isLastChunk"`
	HasOverlapWithPrevious bool     `json:"hasOverlapWithPrevious"`
	HasOverlapWithNext     bool     `json:"hasOverlapWithNext"`
	OverlapBlockIDs        []string `json:"overlapBlockIds,omitempty"`
}

// Chunk 翻译单元
type Chunk struct {
	ID              string        `json:"id"`
	Index           int           `json:"index"`
	Blocks          []TextBlock   `json:"blocks"`
	Text            string        `json:"text"`
	TokenCount      int           `json:"tokenCount"`
	PageRange       [2]int        `json:"pageRange"`
	PreviousContext string        `json:"previousContext,omitempty"`
	NextContext     string        `json:"nextContext,omitempty"`
	Metadata        ChunkMetadata `json:"metadata"`
}

// ChunkingOptions 分块参数，零值字段使用默认值
type ChunkingOptions struct {
	MaxTokensPerChunk int `json:"maxTokensPerChunk" mapstructure:"max_tokens_per_chunk"`
	// OverlapTokens 保留字段，当前不产生重叠内容
	OverlapTokens int `json:"overlapTokens" mapstructure:"overlap_tokens"`
	ContextTokens int `json:"contextTokens" mapstructure:"context_tokens"`
}

// 分块默认值
const (
	DefaultMaxTokensPerChunk = 3000
	DefaultOverlapTokens     = 150
	DefaultContextTokens     = 100
)

// DefaultChunkingOptions 返回默认分块参数
func DefaultChunkingOptions() ChunkingOptions {
	return ChunkingOptions{
		MaxTokensPerChunk: DefaultMaxTokensPerChunk,
		OverlapTokens:     DefaultOverlapTokens,
		ContextTokens:     DefaultContextTokens,
	}
}

// WithDefaults 用默认值填充未设置的字段
func (o ChunkingOptions) WithDefaults() ChunkingOptions {
	if o.MaxTokensPerChunk <= 0 {
		o.MaxTokensPerChunk = DefaultMaxTokensPerChunk
	}
	if o.OverlapTokens <= 0 {
		o.OverlapTokens = DefaultOverlapTokens
	}
	if o.ContextTokens <= 0 {
		o.ContextTokens = DefaultContextTokens
	}
	return o
}

// DocumentMetadata 分块结果附带的文档信息
type DocumentMetadata struct {
	PageCount        int            `json:"pageCount"`
	DetectedLanguage SourceLanguage `json:"detectedLanguage,omitempty"`
	HasRTL           bool           `json:"hasRTL"`
}

// ChunkingResult 分块结果
type ChunkingResult struct {
	Chunks           []Chunk          `json:"chunks"`
	TotalTokens      int              `json:"totalTokens"`
	DocumentMetadata DocumentMetadata `json:"documentMetadata"`
	// Oversized 超过上限且无法继续切分的分块序号
	Oversized []int `json:"oversized,omitempty"`
}

// BlockMapping 块级别的译文映射
type BlockMapping struct {
	BlockID        string `json:"blockId"`
	OriginalText   string `json:"originalText"`
	TranslatedText string `json:"translatedText"`
}

// TranslatedChunk 分块的翻译结果
type TranslatedChunk struct {
	ChunkID        string         `json:"chunkId"`
	OriginalText   string         `json:"originalText"`
	TranslatedText string         `json:"translatedText"`
	TokensUsed     int            `json:"tokensUsed"`
	BlockMappings  []BlockMapping `json:"blockMappings,omitempty"`
	CompletedAt    time.Time      `json:"completedAt"`
}

// TextPlacement 译文在页面上的位置
type TextPlacement struct {
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	FontSize   float64 `json:"fontSize"`
	FontFamily string  `json:"fontFamily"`
	Align      string  `json:"align"`
}

// ReconstructedPage 重建后的页面
type ReconstructedPage struct {
	PageNumber int             `json:"pageNumber"`
	Width      float64         `json:"width"`
	Height     float64         `json:"height"`
	Elements   []TextPlacement `json:"elements"`
}

// ReconstructedDocument 重建后的文档，页码升序
type ReconstructedDocument struct {
	Pages []ReconstructedPage `json:"pages"`
}

// ChunkPreview 分块预览
type ChunkPreview struct {
	ID         string `json:"id"`
	Index      int    `json:"index"`
	PageRange  [2]int `json:"pageRange"`
	TokenCount int    `json:"tokenCount"`
	Preview    string `json:"preview"`
}
