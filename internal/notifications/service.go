package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"easel/internal/config"
)

const userAgent = "Easel/0.1.0"

const promptPreviewLimit = 120

// Service defines the notification surface exposed to the engine.
type Service interface {
	NotifyGenerationComplete(ctx context.Context, outputs int, prompt string) error
	NotifyGenerationFailed(ctx context.Context, message, prompt string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		completions: cfg.Notifications.Completions,
		failures:    cfg.Notifications.Failures,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	completions bool
	failures    bool
}

func (n *ntfyService) NotifyGenerationComplete(ctx context.Context, outputs int, prompt string) error {
	if !n.completions {
		return nil
	}
	noun := "outputs"
	if outputs == 1 {
		noun = "output"
	}
	message := fmt.Sprintf("Generation complete: %d %s ready", outputs, noun)
	if preview := previewPrompt(prompt); preview != "" {
		message = fmt.Sprintf("%s\nPrompt: %s", message, preview)
	}
	data := payload{
		title:   "Easel - Generation Complete",
		message: message,
		tags:    []string{"easel", "generation", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGenerationFailed(ctx context.Context, message, prompt string) error {
	if !n.failures {
		return nil
	}
	message = strings.TrimSpace(message)
	if message == "" {
		message = "generation failed"
	}
	body := fmt.Sprintf("Generation failed: %s", message)
	if preview := previewPrompt(prompt); preview != "" {
		body = fmt.Sprintf("%s\nPrompt: %s", body, preview)
	}
	data := payload{
		title:    "Easel - Generation Failed",
		message:  body,
		tags:     []string{"easel", "generation", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Easel - Test",
		message:  "Notification system test",
		tags:     []string{"easel", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func previewPrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if len(prompt) > promptPreviewLimit {
		return prompt[:promptPreviewLimit] + "..."
	}
	return prompt
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyGenerationComplete(context.Context, int, string) error  { return nil }
func (noopService) NotifyGenerationFailed(context.Context, string, string) error { return nil }
func (noopService) TestNotification(context.Context) error                       { return nil }
