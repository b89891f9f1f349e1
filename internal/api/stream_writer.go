package api

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/llmchat/internal/chat"
)

// streamEvent is one SSE frame of a chat turn.
type streamEvent struct {
	Type           string            `json:"type"`
	SequenceNumber int               `json:"sequence_number"`
	Delta          string            `json:"delta,omitempty"`
	Retract        int               `json:"retract,omitempty"`
	Append         string            `json:"append,omitempty"`
	Message        string            `json:"message,omitempty"`
	FinishReason   chat.FinishReason `json:"finish_reason,omitempty"`
	Stats          *chat.Stats       `json:"stats,omitempty"`
	Error          *APIError         `json:"error,omitempty"`
}

// SSEStreamWriter writes chat deltas as server-sent events.
type SSEStreamWriter struct {
	w       io.Writer
	flusher func()
	seq     int
}

func NewSSEStreamWriter(c *echo.Context) (*SSEStreamWriter, error) {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	return &SSEStreamWriter{w: res, flusher: flusher.Flush, seq: 1}, nil
}

// Delta emits a non-empty delta. Empty deltas are skipped.
func (s *SSEStreamWriter) Delta(d chat.Delta) error {
	if d.Empty() {
		return nil
	}
	return s.send(streamEvent{
		Type:    "delta",
		Delta:   d.String(),
		Retract: d.Retracted(),
		Append:  d.Append,
	})
}

func (s *SSEStreamWriter) Done(message string, reason chat.FinishReason, stats chat.Stats) error {
	return s.send(streamEvent{
		Type:         "done",
		Message:      message,
		FinishReason: reason,
		Stats:        &stats,
	})
}

func (s *SSEStreamWriter) Failed(err error) error {
	_, typ := classify(err)
	return s.send(streamEvent{
		Type:  "error",
		Error: &APIError{Message: err.Error(), Type: typ},
	})
}

func (s *SSEStreamWriter) send(ev streamEvent) error {
	ev.SequenceNumber = s.seq
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.seq++
	if s.flusher != nil {
		s.flusher()
	}
	return nil
}
