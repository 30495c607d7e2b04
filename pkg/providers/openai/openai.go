package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
)

// ProviderName 提供商名称
const ProviderName = "openai"

// getModel 根据字符串获取模型常量
func getModel(model string) openai.ChatModel {
	switch model {
	case "gpt-4o":
		return openai.ChatModelGPT4o
	case "gpt-4o-mini":
		return openai.ChatModelGPT4oMini
	case "gpt-4-turbo":
		return openai.ChatModelGPT4Turbo
	default:
		// 对于新模型或自定义模型，使用字符串
		return openai.ChatModel(model)
	}
}

// Config OpenAI配置（使用官方SDK）
type Config struct {
	providers.BaseConfig
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	OrgID       string  `json:"org_id,omitempty"` // 可选的组织ID
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		BaseConfig:  providers.DefaultConfig(),
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		MaxTokens:   8192,
	}
}

// Provider OpenAI提供商（使用官方SDK，流式输出）
type Provider struct {
	config Config
	client openai.Client
	logger *zap.Logger
}

// 确保 Provider 实现 providers.StreamingProvider 接口
var _ providers.StreamingProvider = (*Provider)(nil)

// New 创建新的OpenAI提供商
func New(config Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}

	// 重试由调用方统一处理
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}

	// 添加自定义端点（如果有）
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	// 添加组织ID（如果有）
	if config.OrgID != "" {
		opts = append(opts, option.WithOrganization(config.OrgID))
	}

	// 添加自定义头部
	for k, v := range config.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}

	// 设置超时
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	return &Provider{
		config: config,
		client: openai.NewClient(opts...),
		logger: logger.With(zap.String("provider", ProviderName)),
	}
}

// Name 获取提供商名称
func (p *Provider) Name() string {
	return ProviderName
}

// StreamChat 流式对话，请求携带 include_usage 以便在最后一个片段拿到用量
func (p *Provider) StreamChat(ctx context.Context, req *providers.ChatRequest, onDelta providers.DeltaFunc) (*providers.Usage, error) {
	model := req.Model
	if model == "" {
		model = p.config.Model
	}

	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		Model: getModel(model),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}

	// 设置可选参数
	temperature := req.Temperature
	if temperature <= 0 {
		temperature = p.config.Temperature
	}
	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	p.logger.Debug("发送流式请求",
		zap.String("model", model),
		zap.Int("system_len", len(req.SystemPrompt)),
		zap.Int("user_len", len(req.UserPrompt)))

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	usage := &providers.Usage{}
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if onDelta != nil {
				onDelta(chunk.Choices[0].Delta.Content)
			}
		}
		if chunk.Usage.TotalTokens > 0 {
			usage.PromptTokens = int(chunk.Usage.PromptTokens)
			usage.CompletionTokens = int(chunk.Usage.CompletionTokens)
			usage.TotalTokens = int(chunk.Usage.TotalTokens)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, wrapError(err)
	}
	return usage, nil
}

// wrapError 把 SDK 错误转换为带状态码的提供商错误
func wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return providers.NewError(ProviderName, apiErr.StatusCode, apiErr.Message, err)
	}
	return providers.NewError(ProviderName, 0, fmt.Sprintf("stream failed: %v", err), err)
}
