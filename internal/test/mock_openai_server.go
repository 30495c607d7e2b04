package test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// MockOpenAIServer 是一个模拟的 OpenAI 兼容 Chat Completions 服务器
type MockOpenAIServer struct {
	Server          *httptest.Server
	URL             string
	Responses       map[string]string
	DefaultResponse string
	// FailFirst 前 N 个请求返回 FailStatus
	FailFirst  int
	FailStatus int
	// ChunkSize 流式响应每个片段的字符数
	ChunkSize int
	DelayMs   int

	mu       sync.Mutex
	requests []MockRequest
}

// MockRequest 记录请求信息
type MockRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Stream       bool
	IncludeUsage bool
	Headers      http.Header
}

type chatRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	StreamOptions *struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options"`
}

// NewMockOpenAIServer 创建一个新的模拟服务器，测试结束时自动关闭
func NewMockOpenAIServer(t *testing.T) *MockOpenAIServer {
	t.Helper()

	mock := &MockOpenAIServer{
		Responses:       make(map[string]string),
		DefaultResponse: "This is the translated text.",
		FailStatus:      http.StatusInternalServerError,
		ChunkSize:       8,
	}

	mock.Server = httptest.NewServer(http.HandlerFunc(mock.handle))
	mock.URL = mock.Server.URL
	t.Cleanup(mock.Server.Close)

	return mock
}

func (m *MockOpenAIServer) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}

	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid request body", "type": "invalid_request_error"}}`))
		return
	}

	req := MockRequest{Model: body.Model, Stream: body.Stream, Headers: r.Header.Clone()}
	for _, msg := range body.Messages {
		switch msg.Role {
		case "system":
			req.SystemPrompt = msg.Content
		case "user":
			req.UserPrompt = msg.Content
		}
	}
	if body.StreamOptions != nil {
		req.IncludeUsage = body.StreamOptions.IncludeUsage
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	count := len(m.requests)
	fail := count <= m.FailFirst
	status := m.FailStatus
	response, ok := m.Responses[req.UserPrompt]
	if !ok {
		response = m.DefaultResponse
	}
	chunkSize := m.ChunkSize
	delay := time.Duration(m.DelayMs) * time.Millisecond
	m.mu.Unlock()

	if fail {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"error": {"message": "mock failure %d", "type": "server_error"}}`, count)
		return
	}

	if !body.Stream {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-mock",
			"object":  "chat.completion",
			"created": time.Now().Unix(),
			"model":   body.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": response},
			}},
			"usage": map[string]any{"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150},
		})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	send := func(payload map[string]any) {
		data, _ := json.Marshal(payload)
		_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
	chunk := func(delta map[string]any, finish any) map[string]any {
		return map[string]any{
			"id":      "chatcmpl-mock",
			"object":  "chat.completion.chunk",
			"created": time.Now().Unix(),
			"model":   body.Model,
			"choices": []map[string]any{{"index": 0, "delta": delta, "finish_reason": finish}},
		}
	}

	send(chunk(map[string]any{"role": "assistant"}, nil))
	for _, part := range SplitRunes(response, chunkSize) {
		send(chunk(map[string]any{"content": part}, nil))
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	send(chunk(map[string]any{}, "stop"))

	if req.IncludeUsage {
		send(map[string]any{
			"id":      "chatcmpl-mock",
			"object":  "chat.completion.chunk",
			"created": time.Now().Unix(),
			"model":   body.Model,
			"choices": []any{},
			"usage":   map[string]any{"prompt_tokens": 100, "completion_tokens": 50, "total_tokens": 150},
		})
	}

	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}
}

// SplitRunes 按字符数切分字符串
func SplitRunes(s string, size int) []string {
	if size <= 0 {
		size = 1
	}
	runes := []rune(s)
	var parts []string
	for i := 0; i < len(runes); i += size {
		end := min(i+size, len(runes))
		parts = append(parts, string(runes[i:end]))
	}
	return parts
}

// AddResponse 为指定的用户提示词设置响应
func (m *MockOpenAIServer) AddResponse(userPrompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[userPrompt] = response
}

// SetDefaultResponse 设置默认响应
func (m *MockOpenAIServer) SetDefaultResponse(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DefaultResponse = response
}

// SetFailures 前 n 个请求返回指定状态码
func (m *MockOpenAIServer) SetFailures(n, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailFirst = n
	m.FailStatus = status
}

// Requests 返回已收到的请求
func (m *MockOpenAIServer) Requests() []MockRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
