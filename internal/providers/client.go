package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Endpoint paths on the SaaS backend, which proxies every third-party
// provider.
const (
	pathFalGenerate       = "/api/fal/generate"
	pathFalElevenTTS      = "/api/fal/eleven/tts"
	pathMiniMaxGenerate   = "/api/minimax/generate"
	pathMiniMaxMusic      = "/api/minimax/music"
	pathRunwayGenerate    = "/api/runway/generate"
	pathBFLGenerate       = "/api/bfl/generate"
	pathReplicateGenerate = "/api/replicate/generate"
)

// Generator is the adapter surface the engine and the wrapper dispatch
// against. Each call performs one generation and returns the normalized
// result, or an error whose message the queue can surface.
type Generator interface {
	FalGenerate(ctx context.Context, payload json.RawMessage) (*Result, error)
	FalElevenTTS(ctx context.Context, payload json.RawMessage) (*Result, error)
	MiniMaxGenerate(ctx context.Context, payload json.RawMessage) (*Result, error)
	MiniMaxMusic(ctx context.Context, payload json.RawMessage) (*Result, error)
	RunwayGenerate(ctx context.Context, payload json.RawMessage) (*Result, error)
	BFLGenerate(ctx context.Context, payload json.RawMessage) (*Result, error)
	ReplicateGenerate(ctx context.Context, payload json.RawMessage) (*Result, error)
}

// Config captures the runtime settings required to call the provider proxy.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Client calls the backend's provider proxy endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a provider client. A zero timeout disables the
// client-side deadline: an unresponsive provider then blocks its queue item
// until the call resolves.
func NewClient(cfg Config, opts ...Option) *Client {
	var timeout time.Duration
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// FalGenerate runs a generic FAL generation.
func (c *Client) FalGenerate(ctx context.Context, payload json.RawMessage) (*Result, error) {
	return c.generate(ctx, pathFalGenerate, payload)
}

// FalElevenTTS runs an ElevenLabs text-to-speech generation through FAL.
func (c *Client) FalElevenTTS(ctx context.Context, payload json.RawMessage) (*Result, error) {
	return c.generate(ctx, pathFalElevenTTS, payload)
}

// MiniMaxGenerate runs a generic MiniMax generation.
func (c *Client) MiniMaxGenerate(ctx context.Context, payload json.RawMessage) (*Result, error) {
	return c.generate(ctx, pathMiniMaxGenerate, payload)
}

// MiniMaxMusic runs a MiniMax music generation.
func (c *Client) MiniMaxMusic(ctx context.Context, payload json.RawMessage) (*Result, error) {
	return c.generate(ctx, pathMiniMaxMusic, payload)
}

// RunwayGenerate runs a Runway generation.
func (c *Client) RunwayGenerate(ctx context.Context, payload json.RawMessage) (*Result, error) {
	return c.generate(ctx, pathRunwayGenerate, payload)
}

// BFLGenerate runs a BFL generation.
func (c *Client) BFLGenerate(ctx context.Context, payload json.RawMessage) (*Result, error) {
	return c.generate(ctx, pathBFLGenerate, payload)
}

// ReplicateGenerate runs a generic Replicate generation.
func (c *Client) ReplicateGenerate(ctx context.Context, payload json.RawMessage) (*Result, error) {
	return c.generate(ctx, pathReplicateGenerate, payload)
}

func (c *Client) generate(ctx context.Context, path string, payload json.RawMessage) (*Result, error) {
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return nil, fmt.Errorf("provider request: build url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("provider request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("provider request: read body: %w", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errorFromResponse(resp.StatusCode, body)
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("provider request: decode response: %w", err)
	}
	result.Raw = body
	return &result, nil
}
