package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"easel/internal/providers"
)

func TestGeneratorRoutesAndDecodes(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		gotBody = body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"images": [{"url": "https://cdn.example.com/a.png"}, {"url": "https://cdn.example.com/b.png"}],
			"historyId": "hist-42",
			"seed": 1234
		}`))
	}))
	defer server.Close()

	client := providers.NewClient(providers.Config{BaseURL: server.URL, APIKey: "secret"})
	payload := json.RawMessage(`{"prompt":"a red fox","num_images":2}`)

	result, err := client.FalGenerate(context.Background(), payload)
	if err != nil {
		t.Fatalf("FalGenerate: %v", err)
	}
	if gotPath != "/api/fal/generate" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if string(gotBody) != string(payload) {
		t.Fatalf("payload was altered in transit: %s", gotBody)
	}
	if len(result.Images) != 2 || result.Images[0].URL != "https://cdn.example.com/a.png" {
		t.Fatalf("unexpected images: %+v", result.Images)
	}
	if result.HistoryID != "hist-42" {
		t.Fatalf("unexpected history id: %q", result.HistoryID)
	}
	if len(result.Raw) == 0 {
		t.Fatal("expected raw response to be preserved")
	}
}

func TestGeneratorEndpointPaths(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := providers.NewClient(providers.Config{BaseURL: server.URL})
	payload := json.RawMessage(`{"prompt":"x"}`)
	ctx := context.Background()

	calls := []struct {
		call func() (*providers.Result, error)
		path string
	}{
		{func() (*providers.Result, error) { return client.FalGenerate(ctx, payload) }, "/api/fal/generate"},
		{func() (*providers.Result, error) { return client.FalElevenTTS(ctx, payload) }, "/api/fal/eleven/tts"},
		{func() (*providers.Result, error) { return client.MiniMaxGenerate(ctx, payload) }, "/api/minimax/generate"},
		{func() (*providers.Result, error) { return client.MiniMaxMusic(ctx, payload) }, "/api/minimax/music"},
		{func() (*providers.Result, error) { return client.RunwayGenerate(ctx, payload) }, "/api/runway/generate"},
		{func() (*providers.Result, error) { return client.BFLGenerate(ctx, payload) }, "/api/bfl/generate"},
		{func() (*providers.Result, error) { return client.ReplicateGenerate(ctx, payload) }, "/api/replicate/generate"},
	}
	for i, call := range calls {
		if _, err := call.call(); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if paths[i] != call.path {
			t.Fatalf("call %d: expected path %s, got %s", i, call.path, paths[i])
		}
	}
}

func TestGeneratorSurfacesProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"message":"prompt violates policy"}}`))
	}))
	defer server.Close()

	client := providers.NewClient(providers.Config{BaseURL: server.URL})
	_, err := client.RunwayGenerate(context.Background(), json.RawMessage(`{"prompt":"x"}`))

	var providerErr *providers.Error
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected providers.Error, got %v", err)
	}
	if providerErr.Kind != providers.KindValidation {
		t.Fatalf("expected validation kind, got %s", providerErr.Kind)
	}
	if providerErr.Message != "prompt violates policy" {
		t.Fatalf("unexpected message: %q", providerErr.Message)
	}
	if providerErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status: %d", providerErr.StatusCode)
	}
}

func TestResultOutputCount(t *testing.T) {
	withImages := &providers.Result{Images: []providers.Image{{URL: "a"}, {URL: "b"}}}
	if got := withImages.OutputCount(5); got != 2 {
		t.Fatalf("OutputCount = %d, want 2", got)
	}
	withCount := &providers.Result{ImageCount: 3}
	if got := withCount.OutputCount(5); got != 3 {
		t.Fatalf("OutputCount = %d, want 3", got)
	}
	empty := &providers.Result{}
	if got := empty.OutputCount(4); got != 4 {
		t.Fatalf("OutputCount = %d, want 4", got)
	}
	if got := empty.OutputCount(0); got != 1 {
		t.Fatalf("OutputCount = %d, want 1", got)
	}
}
