package reconstruct

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

func textBlock(id, text string, page int, x, y, w float64, dir document.Direction) document.TextBlock {
	return document.TextBlock{
		ID:          id,
		Text:        text,
		PageNumber:  page,
		BoundingBox: document.BoundingBox{X: x, Y: y, Width: w, Height: 14},
		FontInfo:    document.FontInfo{Name: "Helvetica", Size: 10},
		Type:        document.BlockTypeParagraph,
		Direction:   dir,
	}
}

func chunkOf(id string, index int, blocks ...document.TextBlock) document.Chunk {
	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	return document.Chunk{ID: id, Index: index, Blocks: blocks, Text: strings.Join(texts, "\n\n")}
}

func TestMapTranslationToBlocksOnePerParagraph(t *testing.T) {
	chunk := chunkOf("c1", 0,
		textBlock("a", "Erster Absatz", 1, 72, 100, 400, document.DirectionLTR),
		textBlock("b", "Zweiter Absatz", 1, 72, 200, 400, document.DirectionLTR),
		textBlock("c", "Dritter Absatz", 1, 72, 300, 400, document.DirectionLTR),
	)

	mappings := MapTranslationToBlocks(chunk, "First paragraph\n\nSecond paragraph\n\n\nThird paragraph")
	require.Len(t, mappings, 3)
	assert.Equal(t, document.BlockMapping{BlockID: "a", OriginalText: "Erster Absatz", TranslatedText: "First paragraph"}, mappings[0])
	assert.Equal(t, "Second paragraph", mappings[1].TranslatedText)
	assert.Equal(t, "Third paragraph", mappings[2].TranslatedText)
}

func TestMapTranslationToBlocksProportional(t *testing.T) {
	chunk := document.Chunk{
		ID:   "c1",
		Text: "Hello there general world",
		Blocks: []document.TextBlock{
			textBlock("a", "Hello there", 1, 72, 100, 400, document.DirectionLTR),
			textBlock("b", "general world", 1, 72, 114, 400, document.DirectionLTR),
		},
	}

	mappings := MapTranslationToBlocks(chunk, "abcdefghij klmnopqrst")
	require.Len(t, mappings, 2)
	assert.Equal(t, "abcdefghij", mappings[0].TranslatedText)
	assert.Equal(t, "klmnopqrst", mappings[1].TranslatedText)
}

func TestMapTranslationToBlocksFallsBackToOriginal(t *testing.T) {
	chunk := chunkOf("c1", 0,
		textBlock("a", "Bir", 1, 72, 100, 400, document.DirectionLTR),
		textBlock("b", "İki", 1, 72, 200, 400, document.DirectionLTR),
	)

	mappings := MapTranslationToBlocks(chunk, "One")
	require.Len(t, mappings, 2)
	assert.Equal(t, "One", mappings[0].TranslatedText)
	assert.Equal(t, "İki", mappings[1].TranslatedText)
}

func TestMapTranslationToBlocksTrailingGroup(t *testing.T) {
	chunk := document.Chunk{
		ID:   "c1",
		Text: "First para",
		Blocks: []document.TextBlock{
			textBlock("a", "First para", 1, 72, 100, 400, document.DirectionLTR),
			textBlock("b", "x", 1, 72, 200, 400, document.DirectionLTR),
			textBlock("c", "y", 1, 72, 300, 400, document.DirectionLTR),
		},
	}

	mappings := MapTranslationToBlocks(chunk, "Erste\n\nsecond")
	require.Len(t, mappings, 3)
	assert.Equal(t, "Erste", mappings[0].TranslatedText)
	assert.Equal(t, "sec", mappings[1].TranslatedText)
	assert.Equal(t, "ond", mappings[2].TranslatedText)
}

func TestPlaceBlock(t *testing.T) {
	t.Run("RTL mirrored", func(t *testing.T) {
		b := textBlock("r", "نص عربي", 1, 500, 120, 100, document.DirectionRTL)
		p := PlaceBlock(b, "abcdefghij", 612)

		assert.Equal(t, 436.0, p.X)
		assert.Less(t, p.X, b.BoundingBox.X)
		assert.Equal(t, 50.0, p.Width)
		assert.Equal(t, 120.0, p.Y)
		assert.InDelta(t, 12.0, p.Height, 1e-9)
		assert.Equal(t, "left", p.Align)
		assert.Equal(t, "Helvetica", p.FontFamily)
		assert.Equal(t, 10.0, p.FontSize)
	})

	t.Run("RTL width within page", func(t *testing.T) {
		b := textBlock("r", "نص", 1, 50, 120, 100, document.DirectionRTL)
		p := PlaceBlock(b, strings.Repeat("a", 200), 612)
		assert.Equal(t, 36.0, p.X)
		assert.Equal(t, 540.0, p.Width)
	})

	t.Run("LTR keeps position", func(t *testing.T) {
		b := textBlock("l", "Text", 1, 72, 300, 250, document.DirectionLTR)
		p := PlaceBlock(b, "Translated", 612)
		assert.Equal(t, 72.0, p.X)
		assert.Equal(t, 250.0, p.Width)
		assert.Equal(t, 300.0, p.Y)
		assert.InDelta(t, 12.0, p.Height, 1e-9)
	})
}

func TestReconstructDocument(t *testing.T) {
	c1 := chunkOf("c1", 0,
		textBlock("p2-low", "unten", 2, 72, 500, 400, document.DirectionLTR),
		textBlock("p1", "oben", 1, 72, 100, 400, document.DirectionLTR),
	)
	c2 := chunkOf("c2", 1,
		textBlock("p2-high", "mitte", 2, 72, 200, 400, document.DirectionLTR),
	)
	c3 := chunkOf("c3", 2,
		textBlock("untranslated", "nicht", 3, 72, 100, 400, document.DirectionLTR),
	)

	translated := map[string]document.TranslatedChunk{
		"c1": {ChunkID: "c1", TranslatedText: "below\n\nabove"},
		"c2": {ChunkID: "c2", TranslatedText: "middle"},
	}

	doc := ReconstructDocument([]document.Chunk{c1, c2, c3}, translated, 0, 0)
	require.Len(t, doc.Pages, 2)

	assert.Equal(t, 1, doc.Pages[0].PageNumber)
	assert.Equal(t, DefaultPageWidth, doc.Pages[0].Width)
	assert.Equal(t, DefaultPageHeight, doc.Pages[0].Height)
	require.Len(t, doc.Pages[0].Elements, 1)
	assert.Equal(t, "above", doc.Pages[0].Elements[0].Text)

	page2 := doc.Pages[1]
	assert.Equal(t, 2, page2.PageNumber)
	require.Len(t, page2.Elements, 2)
	assert.Equal(t, "middle", page2.Elements[0].Text)
	assert.Equal(t, "below", page2.Elements[1].Text)

	t.Run("one placement per translated block", func(t *testing.T) {
		total := 0
		for _, p := range doc.Pages {
			total += len(p.Elements)
		}
		assert.Equal(t, len(c1.Blocks)+len(c2.Blocks), total)
	})
}

func TestReconstructDocumentEmpty(t *testing.T) {
	doc := ReconstructDocument(nil, nil, 595, 842)
	assert.Empty(t, doc.Pages)
}

func TestFullTranslatedText(t *testing.T) {
	chunks := []document.Chunk{{ID: "b", Index: 1}, {ID: "a", Index: 0}, {ID: "c", Index: 2}}
	translated := map[string]document.TranslatedChunk{
		"a": {TranslatedText: "first"},
		"b": {TranslatedText: "second"},
		"c": {TranslatedText: ""},
	}

	assert.Equal(t, "first\n\nsecond", FullTranslatedText(chunks, translated))
	assert.Equal(t, "b", chunks[0].ID)
}

func TestWithBlockMappings(t *testing.T) {
	chunk := chunkOf("c1", 0, textBlock("a", "Hallo", 1, 72, 100, 400, document.DirectionLTR))
	translated := map[string]document.TranslatedChunk{"c1": {ChunkID: "c1", TranslatedText: "Hello"}}

	out := WithBlockMappings([]document.Chunk{chunk}, translated)
	require.Len(t, out["c1"].BlockMappings, 1)
	assert.Equal(t, "Hello", out["c1"].BlockMappings[0].TranslatedText)
	assert.Empty(t, translated["c1"].BlockMappings)
}
