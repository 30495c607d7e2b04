// Package reconstruct 把整段译文按比例映射回原始块的几何位置，生成可渲染的页面布局。
package reconstruct

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// 默认页面尺寸（US Letter，单位 pt）
const (
	DefaultPageWidth  = 612.0
	DefaultPageHeight = 792.0
)

const (
	// FontFamily 译文使用的字体
	FontFamily = "Helvetica"

	pageMargin      = 36.0
	lineHeightRatio = 1.2
	charWidthRatio  = 0.5
	// groupCompleteRatio 累积文本达到原段落长度的该比例时视为段落结束
	groupCompleteRatio = 0.9
)

var paragraphBreak = regexp.MustCompile(`\n\n+`)

// ReconstructDocument 根据分块和译文生成按页组织的文本布局
//
// 没有译文的分块不产生输出。页码升序，页内元素按 y 升序。
func ReconstructDocument(chunks []document.Chunk, translated map[string]document.TranslatedChunk, pageWidth, pageHeight float64) document.ReconstructedDocument {
	if pageWidth <= 0 {
		pageWidth = DefaultPageWidth
	}
	if pageHeight <= 0 {
		pageHeight = DefaultPageHeight
	}

	pages := make(map[int][]document.TextPlacement)
	for _, chunk := range chunks {
		tc, ok := translated[chunk.ID]
		if !ok {
			continue
		}

		byID := make(map[string]document.TextBlock, len(chunk.Blocks))
		for _, b := range chunk.Blocks {
			byID[b.ID] = b
		}

		for _, m := range MapTranslationToBlocks(chunk, tc.TranslatedText) {
			b, ok := byID[m.BlockID]
			if !ok {
				continue
			}
			pages[b.PageNumber] = append(pages[b.PageNumber], PlaceBlock(b, m.TranslatedText, pageWidth))
		}
	}

	numbers := make([]int, 0, len(pages))
	for n := range pages {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	doc := document.ReconstructedDocument{Pages: make([]document.ReconstructedPage, 0, len(numbers))}
	for _, n := range numbers {
		elements := pages[n]
		sort.SliceStable(elements, func(i, j int) bool { return elements[i].Y < elements[j].Y })
		doc.Pages = append(doc.Pages, document.ReconstructedPage{
			PageNumber: n,
			Width:      pageWidth,
			Height:     pageHeight,
			Elements:   elements,
		})
	}
	return doc
}

// MapTranslationToBlocks 将分块的译文分配到各个块
//
// 原文和译文都按空行拆成段落；块依次累积，直到文本长度达到对应原文段落的 90%，
// 组成一个块组。第 i 个块组对应第 i 段译文，并按各块原文长度比例切分。
// 切分结果为空的块保留原文。
func MapTranslationToBlocks(chunk document.Chunk, translatedText string) []document.BlockMapping {
	originals := paragraphBreak.Split(chunk.Text, -1)
	translations := paragraphBreak.Split(translatedText, -1)

	groups := groupBlocks(chunk.Blocks, originals)

	mappings := make([]document.BlockMapping, 0, len(chunk.Blocks))
	mapped := make(map[string]bool, len(chunk.Blocks))

	for i, group := range groups {
		para := ""
		if i < len(translations) {
			para = translations[i]
		}
		for j, text := range distribute(group, para) {
			b := group[j]
			if text == "" {
				text = b.Text
			}
			mappings = append(mappings, document.BlockMapping{
				BlockID:        b.ID,
				OriginalText:   b.Text,
				TranslatedText: text,
			})
			mapped[b.ID] = true
		}
	}

	for _, b := range chunk.Blocks {
		if !mapped[b.ID] {
			mappings = append(mappings, document.BlockMapping{
				BlockID:        b.ID,
				OriginalText:   b.Text,
				TranslatedText: b.Text,
			})
		}
	}
	return mappings
}

// groupBlocks 按原文段落长度把块分组，超出段落数量的块全部归入最后一组
func groupBlocks(blocks []document.TextBlock, originals []string) [][]document.TextBlock {
	var groups [][]document.TextBlock
	var current []document.TextBlock
	var acc strings.Builder

	for _, b := range blocks {
		current = append(current, b)
		acc.WriteString(b.Text)

		idx := len(groups)
		if idx >= len(originals) {
			continue
		}
		target := float64(runeLen(strings.TrimSpace(originals[idx]))) * groupCompleteRatio
		if float64(runeLen(strings.TrimSpace(acc.String()))) >= target {
			groups = append(groups, current)
			current = nil
			acc.Reset()
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

// distribute 按原文长度比例切分译文段落，每段切片长度向上取整
func distribute(group []document.TextBlock, para string) []string {
	runes := []rune(para)
	total := 0
	for _, b := range group {
		total += runeLen(b.Text)
	}

	out := make([]string, len(group))
	offset := 0
	for i, b := range group {
		if total == 0 {
			continue
		}
		n := int(math.Ceil(float64(len(runes)) * float64(runeLen(b.Text)) / float64(total)))
		start := min(offset, len(runes))
		end := min(offset+n, len(runes))
		out[i] = strings.TrimSpace(string(runes[start:end]))
		offset += n
	}
	return out
}

// PlaceBlock 计算块译文的位置。RTL 块改为左对齐并估算宽度，y 坐标保持不变。
func PlaceBlock(block document.TextBlock, text string, pageWidth float64) document.TextPlacement {
	if pageWidth <= 0 {
		pageWidth = DefaultPageWidth
	}

	size := block.FontInfo.Size
	p := document.TextPlacement{
		Text:       text,
		X:          block.BoundingBox.X,
		Y:          block.BoundingBox.Y,
		Width:      block.BoundingBox.Width,
		Height:     size * lineHeightRatio,
		FontSize:   size,
		FontFamily: FontFamily,
		Align:      "left",
	}

	if block.Direction == document.DirectionRTL {
		estimated := float64(runeLen(text)) * size * charWidthRatio
		p.X = math.Max(pageMargin, block.BoundingBox.X-block.BoundingBox.Width+pageMargin)
		p.Width = math.Min(estimated, pageWidth-2*pageMargin)
	}
	return p
}

// FullTranslatedText 按分块顺序拼接所有非空译文
func FullTranslatedText(chunks []document.Chunk, translated map[string]document.TranslatedChunk) string {
	ordered := make([]document.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	var parts []string
	for _, ch := range ordered {
		if tc, ok := translated[ch.ID]; ok && tc.TranslatedText != "" {
			parts = append(parts, tc.TranslatedText)
		}
	}
	return strings.Join(parts, "\n\n")
}

// WithBlockMappings 返回译文映射的副本，每条记录带上块级映射
func WithBlockMappings(chunks []document.Chunk, translated map[string]document.TranslatedChunk) map[string]document.TranslatedChunk {
	out := make(map[string]document.TranslatedChunk, len(translated))
	for id, tc := range translated {
		out[id] = tc
	}
	for _, ch := range chunks {
		tc, ok := out[ch.ID]
		if !ok {
			continue
		}
		tc.BlockMappings = MapTranslationToBlocks(ch, tc.TranslatedText)
		out[ch.ID] = tc
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
