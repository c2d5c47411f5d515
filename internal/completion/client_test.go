package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgallion1/slidegen/internal/slidestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSE(w http.ResponseWriter, lines ...string) {
	for _, l := range lines {
		fmt.Fprintf(w, "%s\n", l)
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func anthropicDelta(text string) string {
	b, _ := json.Marshal(map[string]any{
		"type":  "content_block_delta",
		"index": 0,
		"delta": map[string]string{"type": "text_delta", "text": text},
	})
	return "event: content_block_delta\ndata: " + string(b) + "\n"
}

func openAIDelta(text string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"delta": map[string]string{"content": text}}},
	})
	return "data: " + string(b) + "\n"
}

func drain(t *testing.T, s *Stream) ([]string, error) {
	t.Helper()
	var out []string
	for {
		d, err := s.Next(context.Background())
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, d)
	}
}

func TestStreamAnthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "claude-test", req.Model)
		assert.Equal(t, "be brief", req.System)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "make slides", req.Messages[0].Content)

		w.Header().Set("Content-Type", "text/event-stream")
		writeSSE(w,
			`event: message_start`,
			`data: {"type":"message_start","message":{"id":"msg_1"}}`,
			``,
			`event: ping`,
			`data: {"type":"ping"}`,
			``,
			anthropicDelta(`[{"ti`),
			anthropicDelta(`tle":"Intro"}]`),
			`event: content_block_stop`,
			`data: {"type":"content_block_stop","index":0}`,
			``,
			`event: message_stop`,
			`data: {"type":"message_stop"}`,
			``,
		)
	}))
	defer srv.Close()

	stats := NewLLMStats(time.Hour)
	c := NewClient(Config{BaseURL: srv.URL, APIKey: "sk-ant", Model: "claude-test"}, stats, nil)
	defer c.Close()

	s, err := c.Stream(context.Background(), Request{System: "be brief", Prompt: "make slides"})
	require.NoError(t, err)
	defer s.Close()

	deltas, err := drain(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{`[{"ti`, `tle":"Intro"}]`}, deltas)
	assert.Equal(t, 1, stats.Snapshot().Count)

	// Further calls keep reporting end of stream.
	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-oai", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		writeSSE(w,
			`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
			``,
			openAIDelta(`[{"title":`),
			openAIDelta(`"A"}]`),
			`data: [DONE]`,
			``,
		)
	}))
	defer srv.Close()

	c := NewClient(Config{Provider: ProviderOpenAI, BaseURL: srv.URL + "/", APIKey: "sk-oai", Model: "gpt"}, nil, nil)
	s, err := c.Stream(context.Background(), Request{System: "sys", Prompt: "p"})
	require.NoError(t, err)
	defer s.Close()

	deltas, err := drain(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{`[{"title":`, `"A"}]`}, deltas)
}

func TestStreamStatusError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"nope"}}`, tt.status)
			}))
			defer srv.Close()

			stats := NewLLMStats(time.Hour)
			c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m"}, stats, nil)
			_, err := c.Stream(context.Background(), Request{Prompt: "p"})

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.StatusCode)
			assert.Equal(t, tt.retryable, se.Retryable())
			assert.Contains(t, se.Message, "nope")
			assert.Equal(t, 1, stats.Snapshot().Failures)
		})
	}
}

func TestStreamInBandError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			anthropicDelta(`[{"title":"half`),
			`event: error`,
			`data: {"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			``,
		)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m"}, nil, nil)
	s, err := c.Stream(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	defer s.Close()

	deltas, err := drain(t, s)
	assert.Equal(t, []string{`[{"title":"half`}, deltas)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded_error")
	assert.Equal(t, 1, c.Stats().Snapshot().Failures)
}

func TestStreamMissingEndMarker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, anthropicDelta(`[{"title":"cut`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m"}, nil, nil)
	s, err := c.Stream(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	defer s.Close()

	_, err = drain(t, s)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestStreamCancelUnblocksNext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, anthropicDelta(`[{"title":"wait`))
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m"}, nil, nil)
	s, err := c.Stream(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	d, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, `[{"title":"wait`, d)

	errc := make(chan error, 1)
	go func() {
		_, err := s.Next(ctx)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Next did not return after cancel")
	}

	// Cancellation is the caller's doing and is not a provider failure.
	snap := c.Stats().Snapshot()
	assert.Zero(t, snap.Failures)
	assert.Zero(t, snap.Count)
}

func TestStreamCancelledBeforeHeadersNotAFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m"}, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Stream(ctx, Request{Prompt: "p"})
	require.Error(t, err)
	assert.Zero(t, c.Stats().Snapshot().Failures)
}

func TestStreamTimeoutCoversHeadersOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w, anthropicDelta(`[{"title":"slow"}`))
		// A paced consumer reads long after the headers arrived.
		time.Sleep(300 * time.Millisecond)
		writeSSE(w, anthropicDelta(`]`), "data: {\"type\":\"message_stop\"}\n")
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m", Timeout: 100 * time.Millisecond}, nil, nil)
	s, err := c.Stream(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	defer s.Close()

	deltas, err := drain(t, s)
	require.NoError(t, err)
	assert.Equal(t, []string{`[{"title":"slow"}`, `]`}, deltas)
}

func TestStreamHeaderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m", Timeout: 50 * time.Millisecond}, nil, nil)
	_, err := c.Stream(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout awaiting response headers")
	assert.Equal(t, 1, c.Stats().Snapshot().Failures)
}

func TestStreamFeedsParser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			anthropicDelta("Here are your slides:\n```json\n[\n  {\"type\": \"Title"),
			anthropicDelta("Slide\", \"title\": \"Volcan"),
			anthropicDelta("oes\"},\n  {\"type\": \"QuizSlide\", \"question\": \"Hot?\"}\n]\n```"),
			`data: {"type":"message_stop"}`,
		)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: "m"}, nil, nil)
	s, err := c.Stream(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)

	var last slidestream.Event
	res, err := slidestream.Run(context.Background(), s, slidestream.SinkFunc(func(_ context.Context, ev slidestream.Event) error {
		last = ev
		return nil
	}), slidestream.Options{})
	require.NoError(t, err)
	assert.Equal(t, slidestream.OutcomeCompleted, res.Outcome)
	require.Len(t, res.Slides, 2)
	assert.Equal(t, "Volcanoes", res.Slides[0]["title"])
	assert.Equal(t, "QuizSlide", res.Slides[1].Type())
	assert.Equal(t, slidestream.EventComplete, last.Kind)
}

func TestDecodeAnthropicIgnoresOtherEvents(t *testing.T) {
	for _, data := range []string{
		`{"type":"message_start"}`,
		`{"type":"content_block_start","content_block":{"type":"text","text":""}}`,
		`{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{"}}`,
		`{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`,
	} {
		text, done, err := decodeAnthropic(data)
		require.NoError(t, err, data)
		assert.Empty(t, text, data)
		assert.False(t, done, data)
	}

	_, _, err := decodeAnthropic(`{not json`)
	assert.Error(t, err)
}

func TestUnknownProvider(t *testing.T) {
	c := NewClient(Config{Provider: "bard", BaseURL: "http://127.0.0.1:1"}, nil, nil)
	_, err := c.Stream(context.Background(), Request{Prompt: "p"})
	assert.ErrorContains(t, err, "unknown completion provider")
}
