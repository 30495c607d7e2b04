package providers

import (
	"context"
	"fmt"
	"time"
)

// BaseConfig 基础配置
type BaseConfig struct {
	// API配置
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`

	// 单次请求超时
	Timeout time.Duration `json:"timeout"`

	// 自定义头部
	Headers map[string]string `json:"headers,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() BaseConfig {
	return BaseConfig{
		Timeout: 5 * time.Minute, // LLM 流式请求可能持续较长时间
		Headers: make(map[string]string),
	}
}

// ChatRequest 一次对话请求
type ChatRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
}

// Usage token 用量
type Usage struct {
	PromptTokens     int  `json:"prompt_tokens"`
	CompletionTokens int  `json:"completion_tokens"`
	TotalTokens      int  `json:"total_tokens"`
	Estimated        bool `json:"estimated,omitempty"` // 服务端未返回用量时为估算值
}

// DeltaFunc 接收流式输出的文本片段
type DeltaFunc func(delta string)

// StreamingProvider 流式对话提供商
type StreamingProvider interface {
	// Name 提供商名称
	Name() string

	// StreamChat 发送请求并逐段回调输出，返回最终用量
	StreamChat(ctx context.Context, req *ChatRequest, onDelta DeltaFunc) (*Usage, error)
}

// Error 提供商错误
type Error struct {
	Provider   string `json:"provider"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
	Cause      error  `json:"-"`
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap 返回原因错误
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable 判断错误是否可重试：限流、服务端错误和网络错误可重试，其余客户端错误不重试
func (e *Error) IsRetryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == 408, e.StatusCode == 409, e.StatusCode == 429:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// NewError 创建提供商错误
func NewError(provider string, statusCode int, message string, cause error) *Error {
	return &Error{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}
