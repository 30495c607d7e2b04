// Package chunking 把解析后的文档切分为受 token 上限约束的翻译单元，
// 并为每个单元附加前后文上下文。
package chunking

import (
	"strings"

	"github.com/google/uuid"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/layout"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/tokenizer"
)

// BlockSeparator 分块内块之间的分隔符
const BlockSeparator = "\n\n"

// previewLength 预览保留的字符数
const previewLength = 150

// Tokenizer 分块所需的分词能力
type Tokenizer interface {
	Count(text string) int
	Head(text string, n int) string
	Tail(text string, n int) string
}

// Chunker 文档分块器
type Chunker struct {
	opts      document.ChunkingOptions
	tokenizer Tokenizer
	newID     func() string
}

// Option 分块器选项
type Option func(*Chunker)

// WithTokenizer 设置分词器
func WithTokenizer(t Tokenizer) Option {
	return func(c *Chunker) {
		if t != nil {
			c.tokenizer = t
		}
	}
}

// WithIDGenerator 设置分块和合成块的 ID 生成函数
func WithIDGenerator(fn func() string) Option {
	return func(c *Chunker) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewChunker 创建分块器，未设置的参数使用默认值
func NewChunker(opts document.ChunkingOptions, options ...Option) *Chunker {
	c := &Chunker{
		opts:      opts.WithDefaults(),
		tokenizer: tokenizer.Default(),
		newID:     uuid.NewString,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// ChunkDocument 使用默认分词器对文档分块
func ChunkDocument(doc document.ParsedDocument, opts document.ChunkingOptions) document.ChunkingResult {
	return NewChunker(opts).Chunk(doc)
}

// Options 返回生效的分块参数
func (c *Chunker) Options() document.ChunkingOptions {
	return c.opts
}

// Chunk 对文档分块
func (c *Chunker) Chunk(doc document.ParsedDocument) document.ChunkingResult {
	var all []document.TextBlock
	for _, page := range doc.Pages {
		all = append(all, page.Blocks...)
	}

	chunks := c.createChunks(layout.MergeIntoParagraphs(all))
	c.addContext(chunks)

	result := document.ChunkingResult{
		Chunks: chunks,
		DocumentMetadata: document.DocumentMetadata{
			PageCount:        doc.PageCount,
			DetectedLanguage: doc.DetectedLanguage,
			HasRTL:           doc.HasRTL,
		},
	}
	for _, ch := range chunks {
		result.TotalTokens += ch.TokenCount
		if ch.TokenCount > c.opts.MaxTokensPerChunk {
			result.Oversized = append(result.Oversized, ch.Index)
		}
	}
	return result
}

// pending 正在累积的分块
type pending struct {
	blocks []document.TextBlock
	tokens int
}

func (c *Chunker) createChunks(blocks []document.TextBlock) []document.Chunk {
	chunks := []document.Chunk{}
	limit := c.opts.MaxTokensPerChunk
	sep := c.tokenizer.Count(BlockSeparator)

	var cur pending
	flush := func() {
		if len(cur.blocks) == 0 {
			return
		}
		chunks = append(chunks, c.newChunk(cur.blocks, len(chunks)))
		cur = pending{}
	}
	add := func(b document.TextBlock, tokens int) {
		if len(cur.blocks) > 0 {
			cur.tokens += sep
		}
		cur.blocks = append(cur.blocks, b)
		cur.tokens += tokens
	}

	for _, block := range blocks {
		blockTokens := c.tokenizer.Count(block.Text)

		if len(cur.blocks) > 0 && cur.tokens+sep+blockTokens > limit {
			flush()
		}

		if blockTokens <= limit {
			add(block, blockTokens)
			continue
		}

		// 超长段落按句子切分，完整的句子组独立成块，剩余部分进入累积缓冲
		var group []string
		groupTokens := 0
		for _, sentence := range SplitIntoSentences(block.Text) {
			st := c.tokenizer.Count(sentence)
			if len(group) > 0 && groupTokens+st > limit {
				chunks = append(chunks, c.newChunk([]document.TextBlock{c.synthetic(block, group)}, len(chunks)))
				group = nil
				groupTokens = 0
			}
			group = append(group, sentence)
			groupTokens += st
		}
		if len(group) > 0 {
			rest := c.synthetic(block, group)
			add(rest, c.tokenizer.Count(rest.Text))
		}
	}
	flush()

	return chunks
}

// synthetic 由句子组构造新块，保留原块的几何和字体信息
func (c *Chunker) synthetic(block document.TextBlock, sentences []string) document.TextBlock {
	b := block
	b.ID = c.newID()
	b.Text = strings.Join(sentences, " ")
	return b
}

func (c *Chunker) newChunk(blocks []document.TextBlock, index int) document.Chunk {
	texts := make([]string, len(blocks))
	first, last := blocks[0].PageNumber, blocks[0].PageNumber
	for i, b := range blocks {
		texts[i] = b.Text
		first = min(first, b.PageNumber)
		last = max(last, b.PageNumber)
	}
	text := strings.Join(texts, BlockSeparator)

	return document.Chunk{
		ID:         c.newID(),
		Index:      index,
		Blocks:     blocks,
		Text:       text,
		TokenCount: c.tokenizer.Count(text),
		PageRange:  [2]int{first, last},
	}
}

// addContext 设置首尾标记和前后文
func (c *Chunker) addContext(chunks []document.Chunk) {
	for i := range chunks {
		ch := &chunks[i]
		ch.Metadata.IsFirstChunk = i == 0
		ch.Metadata.IsLastChunk = i == len(chunks)-1

		if i > 0 {
			ch.PreviousContext = c.tokenizer.Tail(chunks[i-1].Text, c.opts.ContextTokens)
			ch.Metadata.HasOverlapWithPrevious = true
		}
		if i < len(chunks)-1 {
			ch.NextContext = c.tokenizer.Head(chunks[i+1].Text, c.opts.ContextTokens)
			ch.Metadata.HasOverlapWithNext = true
		}
	}
}

// Previews 生成分块预览，保留前 150 个字符
func Previews(chunks []document.Chunk) []document.ChunkPreview {
	previews := make([]document.ChunkPreview, 0, len(chunks))
	for _, ch := range chunks {
		previews = append(previews, document.ChunkPreview{
			ID:         ch.ID,
			Index:      ch.Index,
			PageRange:  ch.PageRange,
			TokenCount: ch.TokenCount,
			Preview:    Preview(ch.Text, previewLength),
		})
	}
	return previews
}

// Preview 截取前 n 个字符，被截断时追加省略号
func Preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
