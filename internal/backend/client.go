package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"easel/internal/queue"
)

const defaultHTTPTimeout = 15 * time.Second

// Config captures the runtime settings required to talk to the queue backend.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Client wraps the credit/queue backend REST API. The backend is the source
// of truth for credit balances and job cost; the client only relays its
// decisions.
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

// NewClient constructs a backend client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
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

// StatusError reports a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned http %d", e.StatusCode)
}

// ErrRejected reports a 2xx response whose envelope carries a non-success
// status, e.g. insufficient credits at enqueue time.
var ErrRejected = errors.New("backend rejected request")

// EnqueueRequest is the body for POST /api/queue/add.
type EnqueueRequest struct {
	GenerationType string          `json:"generationType"`
	Provider       queue.Provider  `json:"provider"`
	Payload        json.RawMessage `json:"payload"`
	Metadata       queue.Metadata  `json:"metadata"`
}

// EnqueueResult carries the backend's admission decision: the assigned queue
// ID, the position, and the authoritative credit cost it reserved.
type EnqueueResult struct {
	QueueID       string `json:"queueId"`
	QueuePosition int    `json:"queuePosition"`
	CreditsCost   int    `json:"creditsCost"`
}

type envelope struct {
	ResponseStatus string          `json:"responseStatus"`
	Message        string          `json:"message"`
	Data           json.RawMessage `json:"data"`
}

// Enqueue admits a generation to the backend queue. The backend computes the
// credit cost and reserves it before responding.
func (c *Client) Enqueue(ctx context.Context, req EnqueueRequest) (EnqueueResult, error) {
	var result EnqueueResult
	env, err := c.do(ctx, http.MethodPost, "/api/queue/add", req, nil)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(env.Data, &result); err != nil {
		return result, fmt.Errorf("enqueue: decode data: %w", err)
	}
	if strings.TrimSpace(result.QueueID) == "" {
		return result, errors.New("enqueue: backend response missing queueId")
	}
	return result, nil
}

// ItemPayload fetches the authoritative payload for a queued item. Used only
// by the payload-repair path.
func (c *Client) ItemPayload(ctx context.Context, id string) (json.RawMessage, error) {
	env, err := c.do(ctx, http.MethodGet, "/api/queue/status/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	var data struct {
		Item struct {
			Payload json.RawMessage `json:"payload"`
		} `json:"item"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("item payload: decode data: %w", err)
	}
	if queue.EmptyPayload(data.Item.Payload) {
		return nil, errors.New("item payload: backend holds no payload")
	}
	return data.Item.Payload, nil
}

// Cancel asks the backend to cancel an item, which triggers a server-side
// refund.
func (c *Client) Cancel(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/queue/cancel/"+url.PathEscape(id), nil, nil)
	return err
}

// RefundCredits notifies the backend that a queued item failed so the
// reserved credits are returned. The request carries a client-generated
// request ID so the server can deduplicate; callers treat errors as
// log-only.
func (c *Client) RefundCredits(ctx context.Context, queueID string, creditsCost int) error {
	body := struct {
		QueueID     string `json:"queueId"`
		CreditsCost int    `json:"creditsCost"`
	}{QueueID: queueID, CreditsCost: creditsCost}

	headers := map[string]string{"X-Request-ID": uuid.NewString()}
	_, err := c.do(ctx, http.MethodPost, "/api/queue/refund-credits", body, headers)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string) (*envelope, error) {
	if c.cfg.BaseURL == "" {
		return nil, errors.New("backend request: base url required")
	}
	endpoint, err := url.JoinPath(c.cfg.BaseURL, path)
	if err != nil {
		return nil, fmt.Errorf("backend request: build url: %w", err)
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("backend request: encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("backend request: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend request: read body: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    env.Message,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("backend request: decode response: %w", decodeErr)
	}
	if env.ResponseStatus != "" && env.ResponseStatus != "success" {
		message := strings.TrimSpace(env.Message)
		if message == "" {
			message = "request was not successful"
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, message)
	}
	return &env, nil
}
