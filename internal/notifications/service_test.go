package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"easel/internal/config"
	"easel/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyGenerationComplete(context.Background(), 4, "a red fox"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsMessages(t *testing.T) {
	tests := []struct {
		name           string
		send           func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "completion with prompt",
			send: func(svc notifications.Service) error {
				return svc.NotifyGenerationComplete(context.Background(), 4, "a red fox in snow")
			},
			expectTitle:   "Easel - Generation Complete",
			expectMessage: "Generation complete: 4 outputs ready\nPrompt: a red fox in snow",
			expectTags:    "easel,generation,completed",
		},
		{
			name: "single output",
			send: func(svc notifications.Service) error {
				return svc.NotifyGenerationComplete(context.Background(), 1, "")
			},
			expectTitle:   "Easel - Generation Complete",
			expectMessage: "Generation complete: 1 output ready",
			expectTags:    "easel,generation,completed",
		},
		{
			name: "failure",
			send: func(svc notifications.Service) error {
				return svc.NotifyGenerationFailed(context.Background(), "insufficient credits", "a castle")
			},
			expectTitle:    "Easel - Generation Failed",
			expectMessage:  "Generation failed: insufficient credits\nPrompt: a castle",
			expectTags:     "easel,generation,failed",
			expectPriority: "high",
		},
		{
			name: "failure without message",
			send: func(svc notifications.Service) error {
				return svc.NotifyGenerationFailed(context.Background(), "  ", "")
			},
			expectTitle:    "Easel - Generation Failed",
			expectMessage:  "Generation failed: generation failed",
			expectTags:     "easel,generation,failed",
			expectPriority: "high",
		},
		{
			name: "test notification",
			send: func(svc notifications.Service) error {
				return svc.TestNotification(context.Background())
			},
			expectTitle:    "Easel - Test",
			expectMessage:  "Notification system test",
			expectTags:     "easel,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Fatalf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Fatalf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5
			cfg.Notifications.Completions = true
			cfg.Notifications.Failures = true

			svc := notifications.NewService(&cfg)
			if err := tc.send(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsEventToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("unexpected call for disabled event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Completions = false
	cfg.Notifications.Failures = false

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyGenerationComplete(context.Background(), 2, "ignored"); err != nil {
		t.Fatalf("expected nil for disabled completion event, got %v", err)
	}
	if err := svc.NotifyGenerationFailed(context.Background(), "boom", "ignored"); err != nil {
		t.Fatalf("expected nil for disabled failure event, got %v", err)
	}
}
