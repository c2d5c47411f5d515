package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/slidegen/internal/api"
	"github.com/dgallion1/slidegen/internal/completion"
	"github.com/dgallion1/slidegen/internal/config"
	"github.com/dgallion1/slidegen/internal/generation"
	"github.com/dgallion1/slidegen/internal/metrics"
)

// stallingUpstream sends one Anthropic text delta and then holds the
// response open until the client goes away.
func stallingUpstream() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		b, _ := json.Marshal(map[string]any{
			"type":  "content_block_delta",
			"delta": map[string]string{"type": "text_delta", "text": `[{"title":"Half`},
		})
		fmt.Fprintf(w, "event: content_block_delta\ndata: %s\n\n", b)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
}

func TestServe_ShutdownEndsOpenStreams(t *testing.T) {
	up := stallingUpstream()
	defer up.Close()

	log := slog.New(slog.DiscardHandler)
	cfg := config.Config{
		APIKey:               "secret",
		Completion:           config.CompletionConfig{Provider: completion.ProviderAnthropic, BaseURL: up.URL, APIKey: "sk", Model: "m"},
		MaxConcurrentStreams: 2,
		MaxSlides:            10,
		MaxUploadBytes:       1 << 20,
	}
	client := completion.NewClient(completion.Config{
		Provider: cfg.Completion.Provider,
		BaseURL:  cfg.Completion.BaseURL,
		APIKey:   cfg.Completion.APIKey,
		Model:    cfg.Completion.Model,
	}, nil, log)
	defer client.Close()

	generations := generation.NewRegistry(cfg.MaxConcurrentStreams, time.Hour)
	generations.Start(context.Background(), time.Hour)
	httpServer := &http.Server{Handler: api.NewServer(client, generations, metrics.New(), log, cfg)}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	done := make(chan error, 1)
	go func() { done <- serve(ctx, httpServer, ln, generations, log) }()

	req, err := http.NewRequest(http.MethodPost, "http://"+ln.Addr().String()+"/api/slides/generate", strings.NewReader(`{"topic":"x"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get("X-Generation-ID")

	stop()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	frames := strings.Split(strings.TrimSuffix(string(body), "\n\n"), "\n\n")
	last := frames[len(frames)-1]
	assert.True(t, strings.HasPrefix(last, `data: {"type":"error","message":"generation cancelled`), last)
	assert.Equal(t, 1, strings.Count(string(body), `"type":"error"`))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after shutdown")
	}
	assert.Equal(t, generation.StatusCancelled, generations.Get(id).Snapshot().Status)
	assert.Zero(t, generations.Active())

	_, _, err = generations.Begin(context.Background(), "late", "completion")
	assert.ErrorIs(t, err, generation.ErrClosed)
}

func TestServe_ListenerFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ln.Close()

	generations := generation.NewRegistry(1, time.Hour)
	err = serve(context.Background(), &http.Server{Handler: http.NotFoundHandler()}, ln, generations, slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}
