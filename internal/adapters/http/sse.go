package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// sseStream writes reasoning-loop events and answer deltas to one
// client connection as server-sent events. Named events carry the loop
// payloads; deltas reuse the chat-completions chunk shape so existing
// SSE clients can render the answer incrementally.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher

	chunksSent int
	done       bool
}

func newSSEStream(w http.ResponseWriter) (*sseStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming is not supported by response writer")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseStream{w: w, flusher: flusher}, nil
}

func (s *sseStream) Event(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseStream) Delta(chunk string) error {
	payload, err := json.Marshal(deltaChunk{
		Choices: []deltaChoice{{Delta: deltaContent{Content: chunk}}},
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.chunksSent++
	s.flusher.Flush()
	return nil
}

func (s *sseStream) Done() error {
	if s.done {
		return nil
	}
	s.done = true
	if _, err := io.WriteString(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

type deltaChunk struct {
	Choices []deltaChoice `json:"choices"`
}

type deltaChoice struct {
	Delta deltaContent `json:"delta"`
}

type deltaContent struct {
	Content string `json:"content"`
}
