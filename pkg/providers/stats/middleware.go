package stats

import (
	"context"
	"errors"
	"time"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
)

// Middleware 为流式提供商记录调用统计
type Middleware struct {
	next    providers.StreamingProvider
	manager *Manager
}

// Wrap 用统计中间件包装提供商
func Wrap(next providers.StreamingProvider, manager *Manager) *Middleware {
	return &Middleware{next: next, manager: manager}
}

// Name 返回被包装提供商的名称
func (m *Middleware) Name() string {
	return m.next.Name()
}

// StreamChat 带统计的流式调用
func (m *Middleware) StreamChat(ctx context.Context, req *providers.ChatRequest, onDelta providers.DeltaFunc) (*providers.Usage, error) {
	start := time.Now()
	deltas := 0

	usage, err := m.next.StreamChat(ctx, req, func(delta string) {
		deltas++
		if onDelta != nil {
			onDelta(delta)
		}
	})

	result := RequestResult{
		Success: err == nil,
		Latency: time.Since(start),
		Deltas:  deltas,
	}
	if err != nil {
		result.ErrorType = classifyError(err)
	}
	if usage != nil {
		result.TokensIn = usage.PromptTokens
		result.TokensOut = usage.CompletionTokens
		result.Estimated = usage.Estimated
	}
	m.manager.RecordRequest(m.next.Name(), req.Model, result)

	return usage, err
}

// classifyError 错误分类
func classifyError(err error) string {
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}

	var pe *providers.Error
	if errors.As(err, &pe) {
		switch {
		case pe.StatusCode == 429:
			return "rate_limit"
		case pe.StatusCode == 401 || pe.StatusCode == 403:
			return "auth"
		case pe.StatusCode >= 500:
			return "server_error"
		case pe.StatusCode == 0:
			return "network"
		default:
			return "client_error"
		}
	}
	return "unknown"
}
