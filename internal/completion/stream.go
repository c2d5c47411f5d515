package completion

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// decodeFunc interprets the payload of one SSE data line. It returns the
// text carried by the line, whether the line marks the end of the
// completion, and any error the provider reported in-band.
type decodeFunc func(data string) (text string, done bool, err error)

// Stream is an open streaming completion. It satisfies slidestream.Source:
// Next returns text deltas in order and io.EOF after the provider's end
// marker.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	decode  decodeFunc
	stats   *LLMStats
	log     *slog.Logger

	started    time.Time
	firstDelta time.Duration
	done       bool
	err        error
	closeOnce  sync.Once
}

// Next blocks until the next non-empty delta, the end of the completion, or
// ctx is done. Cancelling ctx closes the response body so a blocked read
// returns promptly.
func (s *Stream) Next(ctx context.Context) (string, error) {
	if s.done {
		return "", io.EOF
	}
	if s.err != nil {
		return "", s.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stop := context.AfterFunc(ctx, func() { s.body.Close() })
	defer stop()

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		text, done, err := s.decode(data)
		if err != nil {
			return "", s.fail(err)
		}
		if done {
			s.finish()
			return "", io.EOF
		}
		if text == "" {
			continue
		}
		if s.firstDelta == 0 {
			s.firstDelta = max(time.Since(s.started), time.Nanosecond)
		}
		return text, nil
	}

	if err := ctx.Err(); err != nil {
		// Cancelled by the caller, not a provider failure.
		s.err = err
		return "", err
	}
	if err := s.scanner.Err(); err != nil {
		return "", s.fail(fmt.Errorf("read completion stream: %w", err))
	}
	return "", s.fail(fmt.Errorf("completion stream ended without end marker: %w", io.ErrUnexpectedEOF))
}

func (s *Stream) finish() {
	s.done = true
	s.stats.RecordStream(s.firstDelta, time.Since(s.started))
	s.log.Debug("completion stream finished", "first_delta", s.firstDelta, "duration", time.Since(s.started))
}

func (s *Stream) fail(err error) error {
	s.err = err
	s.stats.RecordFailure()
	return err
}

// Close releases the response body. It is safe to call more than once.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.body.Close() })
	return err
}

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text,omitempty"`
	} `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func decodeAnthropic(data string) (string, bool, error) {
	var evt anthropicEvent
	if err := json.Unmarshal([]byte(data), &evt); err != nil {
		return "", false, fmt.Errorf("decode stream event: %w", err)
	}
	if evt.Error != nil {
		return "", false, fmt.Errorf("completion error: %s: %s", evt.Error.Type, evt.Error.Message)
	}
	switch evt.Type {
	case "message_stop":
		return "", true, nil
	case "content_block_delta":
		if evt.Delta != nil && evt.Delta.Type == "text_delta" {
			return evt.Delta.Text, false, nil
		}
	}
	return "", false, nil
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func decodeOpenAI(data string) (string, bool, error) {
	if data == "[DONE]" {
		return "", true, nil
	}
	var chunk chatChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		return "", false, fmt.Errorf("decode stream chunk: %w", err)
	}
	if chunk.Error != nil {
		return "", false, fmt.Errorf("completion error: %s: %s", chunk.Error.Type, chunk.Error.Message)
	}
	if len(chunk.Choices) == 0 {
		return "", false, nil
	}
	content := chunk.Choices[0].Delta.Content
	if content == "" {
		content = chunk.Choices[0].Message.Content
	}
	return content, false, nil
}
