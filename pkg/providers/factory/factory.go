package factory

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/compat"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/openai"
)

var (
	defaultOnce     sync.Once
	defaultRegistry *providers.Registry
)

// Registry 返回内置提供商的注册表
func Registry() *providers.Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry 创建包含内置提供商的注册表
func NewRegistry() *providers.Registry {
	r := providers.NewRegistry()
	_ = r.Register(openai.ProviderName, createOpenAIProvider)
	_ = r.Register(compat.ProviderName, createCompatProvider)
	_ = r.Register("compat", createCompatProvider)
	return r
}

// New 根据配置创建提供商
func New(settings providers.Settings, logger *zap.Logger) (providers.StreamingProvider, error) {
	return Registry().Create(settings, logger)
}

// createOpenAIProvider 创建 OpenAI 提供商
func createOpenAIProvider(s providers.Settings, logger *zap.Logger) (providers.StreamingProvider, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}

	cfg := openai.DefaultConfig()
	cfg.APIKey = s.APIKey
	cfg.BaseURL = s.BaseURL
	applyCommon(&cfg.BaseConfig, s)
	if s.Model != "" {
		cfg.Model = s.Model
	}
	if s.Temperature > 0 {
		cfg.Temperature = s.Temperature
	}
	if s.MaxTokens > 0 {
		cfg.MaxTokens = s.MaxTokens
	}

	return openai.New(cfg, logger), nil
}

// createCompatProvider 创建 OpenAI 兼容提供商（默认 OpenRouter）
func createCompatProvider(s providers.Settings, logger *zap.Logger) (providers.StreamingProvider, error) {
	if s.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", s.Provider)
	}

	cfg := compat.DefaultConfig()
	cfg.APIKey = s.APIKey
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}
	applyCommon(&cfg.BaseConfig, s)
	if s.Model != "" {
		cfg.Model = s.Model
	}
	if s.Temperature > 0 {
		cfg.Temperature = s.Temperature
	}
	if s.MaxTokens > 0 {
		cfg.MaxTokens = s.MaxTokens
	}

	return compat.New(cfg, logger), nil
}

func applyCommon(base *providers.BaseConfig, s providers.Settings) {
	if s.Timeout > 0 {
		base.Timeout = s.Timeout
	}
	for k, v := range s.Headers {
		base.Headers[k] = v
	}
}
