package completion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"

	defaultAnthropicURL = "https://api.anthropic.com"
	defaultOpenAIURL    = "https://api.openai.com"
	anthropicVersion    = "2023-06-01"
)

type Config struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration // wait for response headers
}

// Request is one completion call.
type Request struct {
	System string
	Prompt string
}

// Client opens streaming completions against the Anthropic Messages API or
// an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	stats      *LLMStats
	log        *slog.Logger
}

func NewClient(cfg Config, stats *LLMStats, log *slog.Logger) *Client {
	if cfg.Provider == "" {
		cfg.Provider = ProviderAnthropic
	}
	if cfg.BaseURL == "" {
		if cfg.Provider == ProviderOpenAI {
			cfg.BaseURL = defaultOpenAIURL
		} else {
			cfg.BaseURL = defaultAnthropicURL
		}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if stats == nil {
		stats = NewLLMStats(time.Hour)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.Timeout
	return &Client{
		cfg:   cfg,
		stats: stats,
		log:   log,
		// Timeout bounds the wait for response headers only. The body is
		// read at the consumer's pace and ends when ctx is cancelled.
		httpClient: &http.Client{
			Transport: transport,
		},
	}
}

// Stats returns the latency window the client records into.
func (c *Client) Stats() *LLMStats { return c.stats }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
	Stream    bool      `json:"stream"`
}

type openAIRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens,omitempty"`
	Messages  []message `json:"messages"`
	Stream    bool      `json:"stream"`
}

// Stream starts a streaming completion. The returned Stream yields text
// deltas until the provider's end marker and must be closed by the caller.
// A non-200 response is returned as a *StatusError before any delta.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	httpReq, decode, err := c.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() == nil {
			c.stats.RecordFailure()
		}
		return nil, fmt.Errorf("completion api: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		c.stats.RecordFailure()
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: string(body)}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	c.log.Debug("completion stream opened", "provider", c.cfg.Provider, "model", c.cfg.Model)
	return &Stream{
		body:    resp.Body,
		scanner: scanner,
		decode:  decode,
		stats:   c.stats,
		log:     c.log,
		started: started,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, decodeFunc, error) {
	var (
		url    string
		body   any
		decode decodeFunc
	)
	switch c.cfg.Provider {
	case ProviderAnthropic:
		url = c.cfg.BaseURL + "/v1/messages"
		body = anthropicRequest{
			Model:     c.cfg.Model,
			MaxTokens: c.cfg.MaxTokens,
			System:    req.System,
			Messages:  []message{{Role: "user", Content: req.Prompt}},
			Stream:    true,
		}
		decode = decodeAnthropic
	case ProviderOpenAI:
		url = c.cfg.BaseURL + "/v1/chat/completions"
		msgs := make([]message, 0, 2)
		if req.System != "" {
			msgs = append(msgs, message{Role: "system", Content: req.System})
		}
		msgs = append(msgs, message{Role: "user", Content: req.Prompt})
		body = openAIRequest{
			Model:     c.cfg.Model,
			MaxTokens: c.cfg.MaxTokens,
			Messages:  msgs,
			Stream:    true,
		}
		decode = decodeOpenAI
	default:
		return nil, nil, fmt.Errorf("unknown completion provider %q", c.cfg.Provider)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.cfg.Provider == ProviderAnthropic {
		httpReq.Header.Set("x-api-key", c.cfg.APIKey)
		httpReq.Header.Set("anthropic-version", anthropicVersion)
	} else {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	return httpReq, decode, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// StatusError is a non-200 response from the completion API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion api status %d: %s", e.StatusCode, truncate(e.Message, 200))
}

// Retryable reports whether the failure is transient (rate limit or server
// error).
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
