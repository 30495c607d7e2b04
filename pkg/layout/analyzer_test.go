package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

func fragment(id, text string, page int, x, y, w, size float64) document.TextBlock {
	return document.TextBlock{
		ID:          id,
		Text:        text,
		PageNumber:  page,
		BoundingBox: document.BoundingBox{X: x, Y: y, Width: w, Height: size},
		FontInfo:    document.FontInfo{Name: "Helvetica", Size: size},
		Type:        document.BlockTypeParagraph,
		Direction:   document.DirectionLTR,
	}
}

func typesByID(blocks []document.TextBlock) map[string]document.BlockType {
	out := make(map[string]document.BlockType, len(blocks))
	for _, b := range blocks {
		out[b.ID] = b.Type
	}
	return out
}

func TestAnalyzePage(t *testing.T) {
	page := document.PageData{
		PageNumber: 1,
		Width:      612,
		Height:     792,
		Blocks: []document.TextBlock{
			fragment("body", "Body line one", 1, 72, 200, 200, 12),
			fragment("title", "Document Title", 1, 206, 50, 200, 24),
			fragment("list", "• first item", 1, 72, 300, 200, 12),
			fragment("num", "1. numbered item", 1, 72, 320, 200, 12),
			fragment("footer", "Page 1", 1, 280, 760, 50, 8),
			fragment("more", "more body text", 1, 72, 400, 200, 12),
		},
	}

	result := AnalyzePage(page)
	require.Len(t, result.Blocks, len(page.Blocks))

	types := typesByID(result.Blocks)
	assert.Equal(t, document.BlockTypeHeader, types["title"])
	assert.Equal(t, document.BlockTypeParagraph, types["body"])
	assert.Equal(t, document.BlockTypeListItem, types["list"])
	assert.Equal(t, document.BlockTypeListItem, types["num"])
	assert.Equal(t, document.BlockTypeFooter, types["footer"])
	assert.Equal(t, document.BlockTypeParagraph, types["more"])

	t.Run("rows top to bottom", func(t *testing.T) {
		assert.Equal(t, "title", result.Blocks[0].ID)
		assert.Equal(t, "footer", result.Blocks[len(result.Blocks)-1].ID)
	})

	t.Run("input not modified", func(t *testing.T) {
		assert.Equal(t, "body", page.Blocks[0].ID)
		for _, b := range page.Blocks {
			assert.Equal(t, document.BlockTypeParagraph, b.Type)
		}
	})
}

func TestAnalyzePageCenteredTopIsHeader(t *testing.T) {
	page := document.PageData{
		PageNumber: 1,
		Width:      612,
		Height:     792,
		Blocks: []document.TextBlock{
			fragment("centered", "Centered", 1, 256, 60, 100, 12),
			fragment("left", "Left aligned body", 1, 72, 300, 300, 12),
		},
	}

	types := typesByID(AnalyzePage(page).Blocks)
	assert.Equal(t, document.BlockTypeHeader, types["centered"])
	assert.Equal(t, document.BlockTypeParagraph, types["left"])
}

func TestAnalyzePageSameLineSortedByX(t *testing.T) {
	page := document.PageData{
		PageNumber: 1,
		Width:      612,
		Height:     792,
		Blocks: []document.TextBlock{
			fragment("right", "world", 1, 300, 202, 50, 12),
			fragment("left", "hello", 1, 72, 200, 50, 12),
		},
	}

	result := AnalyzePage(page)
	require.Len(t, result.Blocks, 2)
	assert.Equal(t, "left", result.Blocks[0].ID)
	assert.Equal(t, "right", result.Blocks[1].ID)
}

func TestAnalyzeEmptyPage(t *testing.T) {
	result := AnalyzePage(document.PageData{PageNumber: 3, Width: 612, Height: 792})
	assert.Equal(t, 3, result.PageNumber)
	assert.Empty(t, result.Blocks)
}

func TestIsListItem(t *testing.T) {
	for _, text := range []string{"1. one", "12) twelve", "• bullet", "- dash", "— em", "a) letter", "B. letter", "iv. roman", "  2. padded"} {
		assert.True(t, IsListItem(text), text)
	}
	for _, text := range []string{"Normal sentence.", "1.5 million", "-dash without space", ""} {
		assert.False(t, IsListItem(text), text)
	}
}

func TestMergeIntoParagraphs(t *testing.T) {
	blocks := []document.TextBlock{
		fragment("c", "next line", 1, 72, 220, 250, 12),
		fragment("a", "Body line one", 1, 72, 200, 200, 12),
		fragment("b", "continues", 1, 300, 200, 100, 12),
	}

	merged := MergeIntoParagraphs(blocks)
	require.Len(t, merged, 1)
	assert.Equal(t, "a", merged[0].ID)
	assert.Equal(t, "Body line one continues next line", merged[0].Text)
	assert.Equal(t, document.BoundingBox{X: 72, Y: 200, Width: 328, Height: 32}, merged[0].BoundingBox)

	t.Run("input not modified", func(t *testing.T) {
		assert.Equal(t, "next line", blocks[0].Text)
		assert.Equal(t, "Body line one", blocks[1].Text)
		assert.Equal(t, 200.0, blocks[1].BoundingBox.Width)
	})
}

func TestMergeIntoParagraphsBoundaries(t *testing.T) {
	header := fragment("h", "Title", 1, 72, 100, 200, 12)
	header.Type = document.BlockTypeHeader

	blocks := []document.TextBlock{
		header,
		fragment("p1", "first paragraph", 1, 72, 116, 200, 12),
		fragment("p2", "far below", 1, 72, 200, 200, 12),
		fragment("p3", "different font", 1, 72, 214, 200, 14),
		fragment("p4", "next page", 2, 72, 230, 200, 14),
	}

	merged := MergeIntoParagraphs(blocks)
	require.Len(t, merged, 5)
	for i, id := range []string{"h", "p1", "p2", "p3", "p4"} {
		assert.Equal(t, id, merged[i].ID)
	}
}

func TestMergeIntoParagraphsEmpty(t *testing.T) {
	assert.Empty(t, MergeIntoParagraphs(nil))
}

func TestDocumentText(t *testing.T) {
	pages := []document.PageData{
		{PageNumber: 1, Blocks: []document.TextBlock{
			fragment("b", "second", 1, 72, 300, 100, 12),
			fragment("a", "first", 1, 72, 100, 100, 12),
		}},
		{PageNumber: 2, Blocks: []document.TextBlock{
			fragment("c", "third", 2, 72, 100, 100, 12),
		}},
	}
	assert.Equal(t, "first\n\nsecond\n\nthird", DocumentText(pages))
	assert.Equal(t, "b", pages[0].Blocks[0].ID)
}
