package translation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/chunking"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/retry"
)

// reply 一次模拟调用的输出
type reply struct {
	deltas []string
	err    error
}

type scriptedProvider struct {
	mu       sync.Mutex
	replies  map[string][]reply // 按分块文本排队
	fallback reply
	calls    int
	requests []*providers.ChatRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) StreamChat(ctx context.Context, req *providers.ChatRequest, onDelta providers.DeltaFunc) (*providers.Usage, error) {
	p.mu.Lock()
	p.calls++
	p.requests = append(p.requests, req)
	r := p.fallback
	for text, queue := range p.replies {
		if len(queue) > 0 && containsText(req.UserPrompt, text) {
			r = queue[0]
			p.replies[text] = queue[1:]
			break
		}
	}
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, d := range r.deltas {
		onDelta(d)
	}
	if r.err != nil {
		return nil, r.err
	}
	return &providers.Usage{PromptTokens: 20, CompletionTokens: 5, TotalTokens: 25}, nil
}

func containsText(prompt, text string) bool {
	return strings.Contains(prompt, "[TEXT TO TRANSLATE]:\n"+text)
}

func fastRetry() retry.RetryConfig {
	return retry.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
}

func testChunk(id string, index int, text string) document.Chunk {
	return document.Chunk{
		ID:    id,
		Index: index,
		Text:  text,
		Blocks: []document.TextBlock{{
			ID:          id + "-b",
			Text:        text,
			PageNumber:  1,
			BoundingBox: document.BoundingBox{X: 72, Y: 100, Width: 400, Height: 14},
			FontInfo:    document.FontInfo{Name: "Helvetica", Size: 12},
			Type:        document.BlockTypeParagraph,
			Direction:   document.DirectionLTR,
		}},
		PageRange: [2]int{1, 1},
	}
}

func collect(events *[]Event) EventFunc {
	return func(e Event) { *events = append(*events, e) }
}

func types(events []Event) []EventType {
	out := make([]EventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func TestTranslateChunk(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("success", func(t *testing.T) {
		p := &scriptedProvider{fallback: reply{deltas: []string{"Hello", " world"}}}
		tr := New(p, WithLogger(logger), WithRetryConfig(fastRetry()), WithModel("m"))

		var events []Event
		tc, err := tr.TranslateChunk(context.Background(), testChunk("c0", 0, "Hallo Welt"), document.LanguageGerman, chunking.DefaultPromptOptions(), collect(&events))
		require.NoError(t, err)

		assert.Equal(t, []EventType{EventChunkStart, EventToken, EventToken, EventChunkComplete}, types(events))
		require.NotNil(t, events[0].Index)
		assert.Equal(t, 0, *events[0].Index)
		assert.Equal(t, "Hello world", events[3].Translation)
		assert.Equal(t, 25, events[3].TokensUsed)

		assert.Equal(t, "c0", tc.ChunkID)
		assert.Equal(t, "Hallo Welt", tc.OriginalText)
		assert.Equal(t, "Hello world", tc.TranslatedText)
		require.Len(t, tc.BlockMappings, 1)
		assert.Equal(t, "Hello world", tc.BlockMappings[0].TranslatedText)
		assert.Equal(t, "m", p.requests[0].Model)

		// chunk_complete 携带同一份译文记录
		require.NotNil(t, events[3].Chunk)
		assert.Equal(t, tc, *events[3].Chunk)
		for _, e := range events[:3] {
			assert.Nil(t, e.Chunk)
		}
	})

	t.Run("succeeds after retry", func(t *testing.T) {
		p := &scriptedProvider{
			replies: map[string][]reply{
				"Merhaba": {
					{deltas: []string{"Hel"}, err: providers.NewError("scripted", 503, "overloaded", nil)},
				},
			},
			fallback: reply{deltas: []string{"Hello"}},
		}
		tr := New(p, WithLogger(logger), WithRetryConfig(fastRetry()))

		var events []Event
		tc, err := tr.TranslateChunk(context.Background(), testChunk("c0", 0, "Merhaba"), document.LanguageTurkish, chunking.DefaultPromptOptions(), collect(&events))
		require.NoError(t, err)

		assert.Equal(t, []EventType{EventChunkStart, EventToken, EventRetry, EventToken, EventChunkComplete}, types(events))
		assert.Equal(t, 1, events[2].Attempt)
		assert.Contains(t, events[2].Error, "overloaded")
		assert.Equal(t, "Hello", tc.TranslatedText)
		assert.Equal(t, 2, p.calls)
	})

	t.Run("retries exhausted", func(t *testing.T) {
		p := &scriptedProvider{fallback: reply{err: providers.NewError("scripted", 500, "down", nil)}}
		tr := New(p, WithLogger(logger), WithRetryConfig(fastRetry()))

		var events []Event
		_, err := tr.TranslateChunk(context.Background(), testChunk("c0", 0, "Hallo"), document.LanguageGerman, chunking.DefaultPromptOptions(), collect(&events))
		require.Error(t, err)

		assert.Equal(t, []EventType{EventChunkStart, EventRetry, EventRetry, EventError}, types(events))
		assert.Equal(t, "Failed after 3 attempts: down", events[3].Error)
		assert.Equal(t, 3, p.calls)
		assert.True(t, errors.Is(err, ErrTranslationTransient))

		var te *TranslationError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "c0", te.ChunkID)
	})

	t.Run("non-retryable error", func(t *testing.T) {
		p := &scriptedProvider{fallback: reply{err: providers.NewError("scripted", 401, "invalid key", nil)}}
		tr := New(p, WithLogger(logger), WithRetryConfig(fastRetry()))

		var events []Event
		_, err := tr.TranslateChunk(context.Background(), testChunk("c0", 0, "Hallo"), document.LanguageGerman, chunking.DefaultPromptOptions(), collect(&events))
		require.Error(t, err)
		assert.Equal(t, 1, p.calls)
		assert.Equal(t, []EventType{EventChunkStart, EventError}, types(events))
		assert.Equal(t, "Failed after 1 attempts: invalid key", events[1].Error)
	})

	t.Run("strips reasoning tags", func(t *testing.T) {
		p := &scriptedProvider{fallback: reply{deltas: []string{"<think>hmm</think>\n", "Hello"}}}
		tr := New(p, WithRetryConfig(fastRetry()))

		tc, err := tr.TranslateChunk(context.Background(), testChunk("c0", 0, "Hallo"), document.LanguageGerman, chunking.DefaultPromptOptions(), nil)
		require.NoError(t, err)
		assert.Equal(t, "Hello", tc.TranslatedText)
	})

	t.Run("glossary in system prompt", func(t *testing.T) {
		p := &scriptedProvider{fallback: reply{deltas: []string{"ok"}}}
		tr := New(p, WithRetryConfig(fastRetry()), WithGlossary(map[string]string{"Vertrag": "contract"}))

		_, err := tr.TranslateChunk(context.Background(), testChunk("c0", 0, "Der Vertrag gilt."), document.LanguageGerman, chunking.DefaultPromptOptions(), nil)
		require.NoError(t, err)
		assert.Contains(t, p.requests[0].SystemPrompt, "contract")
	})
}

func TestTranslateChunkCache(t *testing.T) {
	p := &scriptedProvider{fallback: reply{deltas: []string{"Hello"}}}
	cache := NewMemoryCache()
	tr := New(p, WithRetryConfig(fastRetry()), WithCache(cache))
	chunk := testChunk("c0", 0, "Hallo")

	_, err := tr.TranslateChunk(context.Background(), chunk, document.LanguageGerman, chunking.DefaultPromptOptions(), nil)
	require.NoError(t, err)

	var events []Event
	tc, err := tr.TranslateChunk(context.Background(), chunk, document.LanguageGerman, chunking.DefaultPromptOptions(), collect(&events))
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls)
	assert.Equal(t, "Hello", tc.TranslatedText)
	assert.Equal(t, []EventType{EventChunkStart, EventToken, EventChunkComplete}, types(events))
	assert.Equal(t, int64(1), cache.Stats().Hits)
}

func TestRun(t *testing.T) {
	p := &scriptedProvider{
		replies: map[string][]reply{
			"zwei": {
				{err: providers.NewError("scripted", 500, "down", nil)},
				{err: providers.NewError("scripted", 500, "down", nil)},
				{err: providers.NewError("scripted", 500, "down", nil)},
			},
		},
		fallback: reply{deltas: []string{"ok"}},
	}
	tr := New(p, WithLogger(zaptest.NewLogger(t)), WithRetryConfig(fastRetry()))

	chunks := []document.Chunk{
		testChunk("c0", 0, "eins"),
		testChunk("c1", 1, "zwei"),
		testChunk("c2", 2, "drei"),
	}

	var events []Event
	res := tr.Run(context.Background(), "job-1", chunks, document.LanguageGerman, chunking.DefaultPromptOptions(), collect(&events))

	assert.False(t, res.Cancelled)
	assert.Len(t, res.Translations, 2)
	assert.Contains(t, res.Failed, "c1")
	assert.Equal(t, 50, res.TokensUsed)

	last := events[len(events)-1]
	assert.Equal(t, EventComplete, last.Type)
	assert.Equal(t, "job-1", last.JobID)
	require.NotNil(t, last.TotalChunks)
	assert.Equal(t, 3, *last.TotalChunks)

	// 分块 i 的事件全部结束后才开始分块 i+1
	var order []string
	for _, e := range events {
		if e.Type == EventChunkStart {
			order = append(order, e.ChunkID)
		}
	}
	assert.Equal(t, []string{"c0", "c1", "c2"}, order)
}

func TestStreamCancel(t *testing.T) {
	p := &scriptedProvider{fallback: reply{deltas: []string{"ok"}}}
	tr := New(p, WithRetryConfig(fastRetry()), WithBufferSize(1))

	chunks := []document.Chunk{
		testChunk("c0", 0, "eins"),
		testChunk("c1", 1, "zwei"),
		testChunk("c2", 2, "drei"),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []Event
	for e := range tr.Stream(ctx, "job", chunks, document.LanguageGerman, chunking.DefaultPromptOptions()) {
		seen = append(seen, e)
		if e.Type == EventChunkComplete && e.ChunkID == "c0" {
			cancel()
		}
	}

	for _, e := range seen {
		assert.NotEqual(t, EventComplete, e.Type)
	}
	assert.Less(t, p.calls, 3)
}

func TestStreamComplete(t *testing.T) {
	p := &scriptedProvider{fallback: reply{deltas: []string{"a", "b"}}}
	tr := New(p, WithRetryConfig(fastRetry()))

	var got []EventType
	for e := range tr.Stream(context.Background(), "job", []document.Chunk{testChunk("c0", 0, "eins")}, document.LanguageGerman, chunking.DefaultPromptOptions()) {
		got = append(got, e.Type)
	}
	assert.Equal(t, []EventType{EventChunkStart, EventToken, EventToken, EventChunkComplete, EventComplete}, got)
}
