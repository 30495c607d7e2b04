package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nerdneilsfield/go-pdf-translator/internal/test"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers"
)

func newTestProvider(t *testing.T, mock *test.MockOpenAIServer) *Provider {
	cfg := DefaultConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = mock.URL + "/v1/"
	return New(cfg, zaptest.NewLogger(t))
}

func TestProvider_StreamChat(t *testing.T) {
	mock := test.NewMockOpenAIServer(t)
	mock.SetDefaultResponse("Guten Tag means good day.")
	provider := newTestProvider(t, mock)

	var parts []string
	usage, err := provider.StreamChat(context.Background(), &providers.ChatRequest{
		SystemPrompt: "system",
		UserPrompt:   "Guten Tag",
	}, func(delta string) {
		parts = append(parts, delta)
	})
	require.NoError(t, err)

	assert.Equal(t, "Guten Tag means good day.", strings.Join(parts, ""))
	assert.Greater(t, len(parts), 1)
	assert.Equal(t, 150, usage.TotalTokens)
	assert.False(t, usage.Estimated)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.True(t, reqs[0].Stream)
	assert.True(t, reqs[0].IncludeUsage)
	assert.Equal(t, "system", reqs[0].SystemPrompt)
	assert.Equal(t, "Guten Tag", reqs[0].UserPrompt)
	assert.Equal(t, "gpt-4o-mini", reqs[0].Model)
	assert.Equal(t, "openai", provider.Name())
}

func TestProvider_StreamChatError(t *testing.T) {
	mock := test.NewMockOpenAIServer(t)
	mock.SetFailures(1, http.StatusUnauthorized)
	provider := newTestProvider(t, mock)

	_, err := provider.StreamChat(context.Background(), &providers.ChatRequest{UserPrompt: "x"}, nil)
	require.Error(t, err)

	var perr *providers.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	assert.False(t, perr.IsRetryable())
	assert.Len(t, mock.Requests(), 1)
}

func TestProvider_StreamChatServerErrorIsRetryable(t *testing.T) {
	mock := test.NewMockOpenAIServer(t)
	mock.SetFailures(1, http.StatusServiceUnavailable)
	provider := newTestProvider(t, mock)

	_, err := provider.StreamChat(context.Background(), &providers.ChatRequest{UserPrompt: "x"}, nil)
	var perr *providers.Error
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.IsRetryable())
}
