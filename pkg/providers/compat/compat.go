// Package compat 通过 go-openai 访问任意 OpenAI 兼容端点，默认指向 OpenRouter。
package compat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/tokenizer"
)

// ProviderName 提供商名称
const ProviderName = "openrouter"

// 默认端点和模型
const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "anthropic/claude-3.5-sonnet"
)

// Config 兼容端点配置
type Config struct {
	providers.BaseConfig
	Name        string  `json:"name"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	base := providers.DefaultConfig()
	base.BaseURL = DefaultBaseURL
	return Config{
		BaseConfig:  base,
		Name:        ProviderName,
		Model:       DefaultModel,
		Temperature: 0.3,
	}
}

// Provider OpenAI 兼容提供商
type Provider struct {
	config    Config
	client    *goopenai.Client
	tokenizer *tokenizer.Tokenizer
	logger    *zap.Logger
}

var _ providers.StreamingProvider = (*Provider)(nil)

// headerTransport 为每个请求附加固定头部
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// New 创建兼容提供商
func New(config Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Name == "" {
		config.Name = ProviderName
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}

	httpClient := &http.Client{Timeout: config.Timeout}
	if len(config.Headers) > 0 {
		httpClient.Transport = &headerTransport{base: http.DefaultTransport, headers: config.Headers}
	}

	// go-openai 的路径以斜杠开头，避免出现双斜杠
	clientConfig := goopenai.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	clientConfig.HTTPClient = httpClient

	return &Provider{
		config:    config,
		client:    goopenai.NewClientWithConfig(clientConfig),
		tokenizer: tokenizer.Default(),
		logger:    logger.With(zap.String("provider", config.Name)),
	}
}

// Name 获取提供商名称
func (p *Provider) Name() string {
	return p.config.Name
}

// StreamChat 流式对话。兼容端点通常不返回用量，用分词器估算。
func (p *Provider) StreamChat(ctx context.Context, req *providers.ChatRequest, onDelta providers.DeltaFunc) (*providers.Usage, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = p.config.Temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}

	request := goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
		Temperature: float32(temperature),
		MaxTokens:   maxTokens,
		Stream:      true,
	}

	p.logger.Debug("发送流式请求",
		zap.String("model", model),
		zap.String("base_url", p.config.BaseURL))

	stream, err := p.client.CreateChatCompletionStream(ctx, request)
	if err != nil {
		return nil, p.wrapError(err)
	}
	defer stream.Close()

	var output strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, p.wrapError(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if delta := resp.Choices[0].Delta.Content; delta != "" {
			output.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
	}

	prompt := p.tokenizer.Count(req.SystemPrompt) + p.tokenizer.Count(req.UserPrompt)
	completion := p.tokenizer.Count(output.String())
	return &providers.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
		Estimated:        true,
	}, nil
}

func (p *Provider) wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return providers.NewError(p.config.Name, apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return providers.NewError(p.config.Name, reqErr.HTTPStatusCode, reqErr.Error(), err)
	}
	return providers.NewError(p.config.Name, 0, fmt.Sprintf("stream failed: %v", err), err)
}
