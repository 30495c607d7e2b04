package pipeline

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/internal/config"
	logpkg "github.com/nerdneilsfield/go-pdf-translator/internal/logger"
	"github.com/nerdneilsfield/go-pdf-translator/internal/store"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/chunking"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/factory"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/stats"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// Components 按配置组装出的服务及其依赖
type Components struct {
	Service  *Service
	Provider providers.StreamingProvider
	Stats    *stats.Manager
	Glossary *config.Glossary
}

// Build 按配置创建提供商、统计、术语表、缓存和服务
func Build(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	provider, err := factory.New(cfg.ProviderSettings(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return BuildWithProvider(cfg, provider, logger)
}

// BuildWithProvider 使用给定的提供商组装服务
func BuildWithProvider(cfg *config.Config, provider providers.StreamingProvider, l *zap.Logger) (*Components, error) {
	logger := logpkg.OrNop(l)
	manager := stats.NewManager(cfg.StatsPath, logger)
	if err := manager.Load(); err != nil {
		logger.Warn("failed to load provider stats", zap.String("path", cfg.StatsPath), zap.Error(err))
	}

	opts := []translation.Option{
		translation.WithLogger(logger),
		translation.WithRetryConfig(cfg.RetryConfig()),
		translation.WithBufferSize(cfg.Translation.BufferSize),
		translation.WithModel(cfg.Model),
		translation.WithSampling(cfg.Temperature, cfg.MaxOutputTokens),
	}

	var glossary *config.Glossary
	if cfg.GlossaryPath != "" {
		g, err := config.LoadGlossary(cfg.GlossaryPath)
		if err != nil {
			return nil, err
		}
		glossary = g
		opts = append(opts, translation.WithGlossary(g.Translations))
		logger.Info("glossary loaded", zap.String("path", cfg.GlossaryPath), zap.Int("terms", len(g.Translations)))
	}

	if cfg.UseCache {
		cache, err := translation.NewFileCache(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create translation cache: %w", err)
		}
		opts = append(opts, translation.WithCache(cache))
	}

	tr := translation.New(stats.Wrap(provider, manager), opts...)

	svc := New(tr,
		WithLogger(logger),
		WithStore(store.NewMemoryStore(cfg.JobTTL())),
		WithChunkingOptions(cfg.Chunking),
		WithPromptOptions(chunking.PromptOptions{
			FormalTone:         cfg.Translation.FormalTone,
			PreserveFormatting: cfg.Translation.PreserveFormatting,
		}),
		WithMaxFileSize(cfg.MaxFileSize()),
	)

	return &Components{
		Service:  svc,
		Provider: provider,
		Stats:    manager,
		Glossary: glossary,
	}, nil
}
