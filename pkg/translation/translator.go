package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/chunking"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/retry"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/reconstruct"
)

// DefaultBufferSize 事件通道默认容量
const DefaultBufferSize = 64

// Translator 逐块调用模型完成翻译
type Translator struct {
	provider    providers.StreamingProvider
	logger      *zap.Logger
	retry       retry.RetryConfig
	bufferSize  int
	glossary    map[string]string
	model       string
	temperature float64
	maxTokens   int
	cache       Cache
}

// Option 翻译器配置选项函数
type Option func(*Translator)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithRetryConfig 设置重试策略
func WithRetryConfig(cfg retry.RetryConfig) Option {
	return func(t *Translator) {
		t.retry = cfg
	}
}

// WithBufferSize 设置事件通道容量
func WithBufferSize(n int) Option {
	return func(t *Translator) {
		if n > 0 {
			t.bufferSize = n
		}
	}
}

// WithGlossary 设置术语表
func WithGlossary(glossary map[string]string) Option {
	return func(t *Translator) {
		t.glossary = glossary
	}
}

// WithModel 设置请求使用的模型，为空时由提供商决定
func WithModel(model string) Option {
	return func(t *Translator) {
		t.model = model
	}
}

// WithSampling 设置温度和最大输出长度
func WithSampling(temperature float64, maxTokens int) Option {
	return func(t *Translator) {
		t.temperature = temperature
		t.maxTokens = maxTokens
	}
}

// WithCache 设置译文缓存
func WithCache(cache Cache) Option {
	return func(t *Translator) {
		t.cache = cache
	}
}

// New 创建翻译器
func New(provider providers.StreamingProvider, opts ...Option) *Translator {
	t := &Translator{
		provider:   provider,
		logger:     zap.NewNop(),
		retry:      retry.DefaultRetryConfig(),
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Result 一次批量翻译的结果
type Result struct {
	Translations map[string]document.TranslatedChunk
	Failed       map[string]error
	TokensUsed   int
	Cancelled    bool
}

// TranslateChunk 翻译单个分块。事件依次为 chunk_start、若干 token 与 retry，
// 最后是 chunk_complete 或 error。
func (t *Translator) TranslateChunk(ctx context.Context, chunk document.Chunk, lang document.SourceLanguage, opts chunking.PromptOptions, emit EventFunc) (document.TranslatedChunk, error) {
	if emit == nil {
		emit = func(Event) {}
	}
	if opts.Glossary == nil {
		opts.Glossary = t.glossary
	}

	emit(chunkStartEvent(chunk.ID, chunk.Index))

	prompt := chunking.BuildTranslationContext(chunk, lang, opts)
	req := &providers.ChatRequest{
		Model:        t.model,
		SystemPrompt: prompt.SystemPrompt,
		UserPrompt:   prompt.UserPrompt,
		Temperature:  t.temperature,
		MaxTokens:    t.maxTokens,
	}

	key := CacheKey(t.provider.Name()+"/"+t.model, prompt.SystemPrompt, prompt.UserPrompt)
	if t.cache != nil {
		if cached, ok := t.cache.Get(key); ok {
			t.logger.Debug("translation cache hit", zap.String("chunk_id", chunk.ID))
			tc := t.translated(chunk, cached, 0)
			emit(tokenEvent(chunk.ID, cached))
			emit(chunkCompleteEvent(tc))
			return tc, nil
		}
	}

	var (
		partial  strings.Builder
		usage    *providers.Usage
		attempts int
	)

	start := time.Now()
	err := retry.Do(ctx, t.retry, func(attempt int) error {
		attempts = attempt
		partial.Reset()

		u, err := t.provider.StreamChat(ctx, req, func(delta string) {
			partial.WriteString(delta)
			emit(tokenEvent(chunk.ID, delta))
		})
		if err != nil {
			return err
		}
		usage = u
		return nil
	}, func(attempt int, err error, delay time.Duration) {
		t.logger.Warn("translation attempt failed, retrying",
			zap.String("chunk_id", chunk.ID),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Bool("network", retry.IsNetworkError(err)),
			zap.Error(err))
		emit(retryEvent(chunk.ID, attempt, err, delay))
	})

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return document.TranslatedChunk{}, &TranslationError{
				Code:    ErrCodeTranslationTransient,
				Message: "translation cancelled",
				Cause:   err,
				ChunkID: chunk.ID,
			}
		}

		msg := fmt.Sprintf("Failed after %d attempts: %s", attempts, errorMessage(err))
		t.logger.Error("chunk translation failed",
			zap.String("chunk_id", chunk.ID),
			zap.Int("attempts", attempts),
			zap.Error(err))
		emit(errorEvent(chunk.ID, msg))
		return document.TranslatedChunk{}, &TranslationError{
			Code:    ErrCodeTranslationTransient,
			Message: msg,
			Cause:   err,
			ChunkID: chunk.ID,
		}
	}

	text := StripReasoning(partial.String())
	tokensUsed := 0
	if usage != nil {
		tokensUsed = usage.TotalTokens
	}

	t.logger.Debug("chunk translated",
		zap.String("chunk_id", chunk.ID),
		zap.Int("attempts", attempts),
		zap.Int("tokens_used", tokensUsed),
		zap.Duration("elapsed", time.Since(start)))

	tc := t.translated(chunk, text, tokensUsed)
	emit(chunkCompleteEvent(tc))

	if t.cache != nil && text != "" {
		if err := t.cache.Set(key, text); err != nil {
			t.logger.Warn("failed to cache translation", zap.String("chunk_id", chunk.ID), zap.Error(err))
		}
	}

	return tc, nil
}

// translated 生成译文记录，块级映射只在这里计算
func (t *Translator) translated(chunk document.Chunk, text string, tokensUsed int) document.TranslatedChunk {
	return document.TranslatedChunk{
		ChunkID:        chunk.ID,
		OriginalText:   chunk.Text,
		TranslatedText: text,
		TokensUsed:     tokensUsed,
		BlockMappings:  reconstruct.MapTranslationToBlocks(chunk, text),
		CompletedAt:    time.Now(),
	}
}

// Run 依次翻译所有分块。单个分块失败不会中断后续分块；
// 上下文取消后停止派发，已完成的结果保留。未取消时最后发出 complete 事件。
func (t *Translator) Run(ctx context.Context, jobID string, chunks []document.Chunk, lang document.SourceLanguage, opts chunking.PromptOptions, emit EventFunc) *Result {
	if emit == nil {
		emit = func(Event) {}
	}

	res := &Result{
		Translations: make(map[string]document.TranslatedChunk, len(chunks)),
		Failed:       make(map[string]error),
	}

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		tc, err := t.TranslateChunk(ctx, chunk, lang, opts, emit)
		if err != nil {
			if ctx.Err() != nil {
				res.Cancelled = true
				break
			}
			res.Failed[chunk.ID] = err
			continue
		}
		res.Translations[chunk.ID] = tc
		res.TokensUsed += tc.TokensUsed
	}

	if res.Cancelled {
		t.logger.Info("translation cancelled",
			zap.String("job_id", jobID),
			zap.Int("completed", len(res.Translations)),
			zap.Int("total", len(chunks)))
		return res
	}

	emit(CompleteEvent(jobID, len(chunks)))
	return res
}

// Stream 在独立 goroutine 中运行 Run，通过容量为 bufferSize 的通道输出事件，结束后关闭通道。
// 上下文取消后未送出的事件被丢弃。
func (t *Translator) Stream(ctx context.Context, jobID string, chunks []document.Chunk, lang document.SourceLanguage, opts chunking.PromptOptions) <-chan Event {
	events := make(chan Event, t.bufferSize)

	go func() {
		defer close(events)
		t.Run(ctx, jobID, chunks, lang, opts, func(e Event) {
			select {
			case events <- e:
			case <-ctx.Done():
			}
		})
	}()

	return events
}

// errorMessage 提取面向用户的错误消息
func errorMessage(err error) string {
	var pe *providers.Error
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}
