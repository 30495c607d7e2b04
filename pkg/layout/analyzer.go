// Package layout 将 PDF 文本片段归并为行和段落，并识别标题、列表项和页脚。
package layout

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

const (
	// lineTolerance 同一行的 Y 坐标容差
	lineTolerance = 5.0
	// mergeSortTolerance 合并段落排序时视为同一行的 Y 容差
	mergeSortTolerance = 15.0

	headerFontRatio = 1.2
	footerFontRatio = 0.8
	topRegion       = 0.15
	bottomRegion    = 0.9
	centerTolerance = 0.2
)

var listMarkers = []*regexp.Regexp{
	regexp.MustCompile(`^\d+[.)]\s`),
	regexp.MustCompile(`^[•●○◦▪▫]\s`),
	regexp.MustCompile(`^[-–—]\s`),
	regexp.MustCompile(`^[a-zA-Z][.)]\s`),
	regexp.MustCompile(`^[ivxIVX]+[.)]\s`),
}

// lineGroup 同一行上的片段
type lineGroup struct {
	y           float64
	blocks      []document.TextBlock
	avgFontSize float64
}

// AnalyzePage 对页面中的块重新分类，返回新的页面，不修改输入
func AnalyzePage(page document.PageData) document.PageData {
	out := page
	if len(page.Blocks) == 0 {
		out.Blocks = []document.TextBlock{}
		return out
	}

	avg := averageFontSize(page.Blocks)
	lines := groupIntoLines(page.Blocks)

	blocks := make([]document.TextBlock, 0, len(page.Blocks))
	for _, line := range lines {
		blocks = append(blocks, classifyLine(line, page, avg)...)
	}
	out.Blocks = blocks
	return out
}

// groupIntoLines 按 Y 坐标把片段分组成行，行内按 X 排序
func groupIntoLines(blocks []document.TextBlock) []*lineGroup {
	sorted := make([]document.TextBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BoundingBox.Y < sorted[j].BoundingBox.Y
	})

	var groups []*lineGroup
	for _, b := range sorted {
		var target *lineGroup
		for _, g := range groups {
			if math.Abs(g.y-b.BoundingBox.Y) < lineTolerance {
				target = g
				break
			}
		}

		if target == nil {
			groups = append(groups, &lineGroup{
				y:           b.BoundingBox.Y,
				blocks:      []document.TextBlock{b},
				avgFontSize: b.FontInfo.Size,
			})
			continue
		}

		target.blocks = append(target.blocks, b)
		target.avgFontSize = averageFontSize(target.blocks)
	}

	for _, g := range groups {
		sort.SliceStable(g.blocks, func(i, j int) bool {
			return g.blocks[i].BoundingBox.X < g.blocks[j].BoundingBox.X
		})
	}
	return groups
}

// classifyLine 依次判断页脚、标题、列表项，其余为正文
func classifyLine(line *lineGroup, page document.PageData, pageAvg float64) []document.TextBlock {
	isLarger := line.avgFontSize > pageAvg*headerFontRatio
	isSmaller := line.avgFontSize < pageAvg*footerFontRatio
	isAtTop := line.y < page.Height*topRegion
	isAtBottom := line.y > page.Height*bottomRegion

	isCentered := true
	for _, b := range line.blocks {
		center := b.BoundingBox.X + b.BoundingBox.Width/2
		if math.Abs(center-page.Width/2) >= page.Width*centerTolerance {
			isCentered = false
			break
		}
	}

	out := make([]document.TextBlock, 0, len(line.blocks))
	for _, b := range line.blocks {
		switch {
		case isAtBottom && isSmaller:
			b.Type = document.BlockTypeFooter
		case isLarger || (isAtTop && isCentered):
			b.Type = document.BlockTypeHeader
		case IsListItem(b.Text):
			b.Type = document.BlockTypeListItem
		default:
			b.Type = document.BlockTypeParagraph
		}
		out = append(out, b)
	}
	return out
}

// IsListItem 文本是否以列表标记开头
func IsListItem(text string) bool {
	text = strings.TrimSpace(text)
	for _, re := range listMarkers {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// MergeIntoParagraphs 将相邻的同类片段合并为段落
//
// 排序规则：页码，Y（15 单位内视为同一行），X。当页码相同、字号相差小于 1、
// 类型相同且垂直间距小于片段字号的两倍时合并。
func MergeIntoParagraphs(blocks []document.TextBlock) []document.TextBlock {
	if len(blocks) == 0 {
		return []document.TextBlock{}
	}

	sorted := make([]document.TextBlock, len(blocks))
	copy(sorted, blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.PageNumber != b.PageNumber {
			return a.PageNumber < b.PageNumber
		}
		if math.Abs(a.BoundingBox.Y-b.BoundingBox.Y) > mergeSortTolerance {
			return a.BoundingBox.Y < b.BoundingBox.Y
		}
		return a.BoundingBox.X < b.BoundingBox.X
	})

	merged := make([]document.TextBlock, 0, len(sorted))
	current := sorted[0]
	for _, b := range sorted[1:] {
		if shouldMerge(current, b) {
			current.Text += " " + b.Text
			current.BoundingBox = current.BoundingBox.Union(b.BoundingBox)
			continue
		}
		merged = append(merged, current)
		current = b
	}
	merged = append(merged, current)

	return merged
}

func shouldMerge(current, next document.TextBlock) bool {
	gap := next.BoundingBox.Y - current.BoundingBox.Bottom()
	return next.PageNumber == current.PageNumber &&
		math.Abs(next.FontInfo.Size-current.FontInfo.Size) < 1 &&
		next.Type == current.Type &&
		gap < next.FontInfo.Size*2
}

// DocumentText 按页拼接所有块的文本，页内按 Y 排序，段落之间空一行
func DocumentText(pages []document.PageData) string {
	var parts []string
	for _, page := range pages {
		blocks := make([]document.TextBlock, len(page.Blocks))
		copy(blocks, page.Blocks)
		sort.SliceStable(blocks, func(i, j int) bool {
			return blocks[i].BoundingBox.Y < blocks[j].BoundingBox.Y
		})
		for _, b := range blocks {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func averageFontSize(blocks []document.TextBlock) float64 {
	if len(blocks) == 0 {
		return 0
	}
	total := 0.0
	for _, b := range blocks {
		total += b.FontInfo.Size
	}
	return total / float64(len(blocks))
}
