package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"easel/internal/api"
)

// daemonClient talks to the local easeld HTTP API.
type daemonClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func newDaemonClient(addr, token string) *daemonClient {
	addr = strings.TrimSpace(addr)
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &daemonClient{
		baseURL: strings.TrimRight(addr, "/"),
		token:   strings.TrimSpace(token),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *daemonClient) Status() (api.DaemonStatus, error) {
	var status api.DaemonStatus
	err := c.do(http.MethodGet, "/api/status", nil, &status)
	return status, err
}

func (c *daemonClient) QueueList(statuses []string) (api.QueueListResponse, error) {
	path := "/api/queue"
	if len(statuses) > 0 {
		values := url.Values{}
		for _, status := range statuses {
			values.Add("status", status)
		}
		path += "?" + values.Encode()
	}
	var resp api.QueueListResponse
	err := c.do(http.MethodGet, path, nil, &resp)
	return resp, err
}

func (c *daemonClient) QueueItem(id string) (api.QueueItemResponse, error) {
	var resp api.QueueItemResponse
	err := c.do(http.MethodGet, "/api/queue/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *daemonClient) Cancel(id string) error {
	return c.do(http.MethodPost, "/api/queue/"+url.PathEscape(id)+"/cancel", nil, nil)
}

func (c *daemonClient) Pause() error {
	return c.do(http.MethodPost, "/api/queue/pause", nil, nil)
}

func (c *daemonClient) Resume() error {
	return c.do(http.MethodPost, "/api/queue/resume", nil, nil)
}

func (c *daemonClient) ClearCompleted() (int64, error) {
	var resp struct {
		Cleared int64 `json:"cleared"`
	}
	err := c.do(http.MethodPost, "/api/queue/clear-completed", nil, &resp)
	return resp.Cleared, err
}

func (c *daemonClient) SetEnabled(enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	return c.do(http.MethodPost, "/api/queue/enabled", body, nil)
}

// Generate submits a generation request. The second return value reports
// whether the request was queued rather than executed directly.
func (c *daemonClient) Generate(req any) (json.RawMessage, bool, error) {
	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, false, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(encoded))
	if err != nil {
		return nil, false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, false, wrapDialError(err, c.baseURL)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, false, apiError(resp.StatusCode, raw)
	}
	return raw, resp.StatusCode == http.StatusAccepted, nil
}

func (c *daemonClient) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return wrapDialError(err, c.baseURL)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return apiError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *daemonClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func apiError(statusCode int, raw []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		return errors.New(payload.Error)
	}
	return fmt.Errorf("daemon returned http %d", statusCode)
}

func wrapDialError(err error, base string) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon at %s: connection refused; is easeld running?", base)
	}
	return err
}
