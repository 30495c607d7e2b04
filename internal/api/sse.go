package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/chunking"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

// eventStream 把翻译事件写成 SSE。第一个事件到达时才写响应头，
// 这样在开始前出现的错误仍能以 JSON 返回。
type eventStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	log     *zap.Logger
	started bool
	broken  bool
}

func newEventStream(w http.ResponseWriter, log *zap.Logger) *eventStream {
	return &eventStream{w: w, rc: http.NewResponseController(w), log: log}
}

func (s *eventStream) start() {
	s.started = true
	// 翻译耗时可能超过服务器写超时
	_ = s.rc.SetWriteDeadline(time.Time{})

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

func (s *eventStream) send(e translation.Event) {
	if s.broken {
		return
	}
	if !s.started {
		s.start()
	}

	data, err := json.Marshal(e)
	if err != nil {
		s.log.Warn("failed to encode event", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		s.broken = true
		s.log.Debug("client disconnected", zap.Error(err))
		return
	}
	_ = s.rc.Flush()
}

func (s *Server) defaultPromptOptions() chunking.PromptOptions {
	return chunking.PromptOptions{
		FormalTone:         s.cfg.Translation.FormalTone,
		PreserveFormatting: s.cfg.Translation.PreserveFormatting,
	}
}
