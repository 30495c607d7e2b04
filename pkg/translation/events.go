package translation

import (
	"time"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/document"
)

// EventType 翻译事件类型
type EventType string

const (
	EventChunkStart    EventType = "chunk_start"
	EventToken         EventType = "token"
	EventChunkComplete EventType = "chunk_complete"
	EventError         EventType = "error"
	EventRetry         EventType = "retry"
	EventComplete      EventType = "complete"
)

// Event 翻译过程中产生的事件。
// 同一分块的事件全部发出后才会发出下一分块的 chunk_start。
type Event struct {
	Type        EventType `json:"type"`
	ChunkID     string    `json:"chunkId,omitempty"`
	Index       *int      `json:"index,omitempty"`
	Token       string    `json:"token,omitempty"`
	Translation string    `json:"translation,omitempty"`
	TokensUsed  int       `json:"tokensUsed,omitempty"`
	Error       string    `json:"error,omitempty"`
	Attempt     int       `json:"attempt,omitempty"`
	Delay       int64     `json:"delayMs,omitempty"`
	JobID       string    `json:"jobId,omitempty"`
	TotalChunks *int      `json:"totalChunks,omitempty"`

	// Chunk 仅 chunk_complete 携带，为完整的译文记录
	Chunk *document.TranslatedChunk `json:"-"`
}

// EventFunc 事件回调
type EventFunc func(Event)

func chunkStartEvent(chunkID string, index int) Event {
	return Event{Type: EventChunkStart, ChunkID: chunkID, Index: &index}
}

func tokenEvent(chunkID, token string) Event {
	return Event{Type: EventToken, ChunkID: chunkID, Token: token}
}

func chunkCompleteEvent(tc document.TranslatedChunk) Event {
	return Event{
		Type:        EventChunkComplete,
		ChunkID:     tc.ChunkID,
		Translation: tc.TranslatedText,
		TokensUsed:  tc.TokensUsed,
		Chunk:       &tc,
	}
}

func retryEvent(chunkID string, attempt int, err error, delay time.Duration) Event {
	return Event{Type: EventRetry, ChunkID: chunkID, Attempt: attempt, Error: err.Error(), Delay: delay.Milliseconds()}
}

func errorEvent(chunkID, msg string) Event {
	return Event{Type: EventError, ChunkID: chunkID, Error: msg}
}

// CompleteEvent 全部分块处理结束
func CompleteEvent(jobID string, totalChunks int) Event {
	return Event{Type: EventComplete, JobID: jobID, TotalChunks: &totalChunks}
}
