package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"easel/internal/backend"
	"easel/internal/providers"
	"easel/internal/queue"
	"easel/internal/testsupport"
)

// routeRecorder remembers which adapter method dispatch picked.
type routeRecorder struct {
	method string
}

func (r *routeRecorder) hit(method string) (*providers.Result, error) {
	r.method = method
	return &providers.Result{}, nil
}

func (r *routeRecorder) FalGenerate(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return r.hit("FalGenerate")
}

func (r *routeRecorder) FalElevenTTS(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return r.hit("FalElevenTTS")
}

func (r *routeRecorder) MiniMaxGenerate(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return r.hit("MiniMaxGenerate")
}

func (r *routeRecorder) MiniMaxMusic(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return r.hit("MiniMaxMusic")
}

func (r *routeRecorder) RunwayGenerate(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return r.hit("RunwayGenerate")
}

func (r *routeRecorder) BFLGenerate(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return r.hit("BFLGenerate")
}

func (r *routeRecorder) ReplicateGenerate(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return r.hit("ReplicateGenerate")
}

type stubBackend struct {
	payload    json.RawMessage
	payloadErr error
}

func (s *stubBackend) Enqueue(ctx context.Context, req backend.EnqueueRequest) (backend.EnqueueResult, error) {
	return backend.EnqueueResult{}, errors.New("not implemented")
}

func (s *stubBackend) ItemPayload(ctx context.Context, id string) (json.RawMessage, error) {
	if s.payloadErr != nil {
		return nil, s.payloadErr
	}
	return s.payload, nil
}

func (s *stubBackend) Cancel(ctx context.Context, id string) error { return nil }

func (s *stubBackend) RefundCredits(ctx context.Context, queueID string, creditsCost int) error {
	return nil
}

func TestDispatchRouting(t *testing.T) {
	tests := []struct {
		name           string
		provider       queue.Provider
		generationType string
		model          string
		want           string
	}{
		{"fal image", queue.ProviderFal, "image", "flux-pro", "FalGenerate"},
		{"fal video", queue.ProviderFal, "video", "kling", "FalGenerate"},
		{"fal tts elevenlabs", queue.ProviderFal, "tts", "elevenlabs-turbo-v2", "FalElevenTTS"},
		{"fal text-to-speech elevenlabs", queue.ProviderFal, "text-to-speech", "elevenlabs-turbo-v2", "FalElevenTTS"},
		{"fal speech tts model", queue.ProviderFal, "speech", "some-tts-voice", "FalElevenTTS"},
		{"fal text-to-music falls to minimax", queue.ProviderFal, "text-to-music", "minimax-music-v1", "MiniMaxMusic"},
		{"fal music falls to minimax", queue.ProviderFal, "music", "minimax-music-v1", "MiniMaxMusic"},
		{"minimax music", queue.ProviderMiniMax, "text-to-music", "music-01", "MiniMaxMusic"},
		{"minimax image", queue.ProviderMiniMax, "image", "image-01", "MiniMaxGenerate"},
		{"runway", queue.ProviderRunway, "video", "gen4", "RunwayGenerate"},
		{"bfl", queue.ProviderBFL, "image", "flux-1.1", "BFLGenerate"},
		{"replicate", queue.ProviderReplicate, "image", "sdxl", "ReplicateGenerate"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &routeRecorder{}
			e := &Engine{gen: rec}
			item := &queue.Item{
				Provider:       tc.provider,
				GenerationType: tc.generationType,
			}
			payload, err := json.Marshal(map[string]string{"model": tc.model, "prompt": "x"})
			if err != nil {
				t.Fatalf("marshal payload: %v", err)
			}
			if _, err := e.dispatch(context.Background(), item, payload); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if rec.method != tc.want {
				t.Fatalf("routed to %s, want %s", rec.method, tc.want)
			}
		})
	}
}

func TestDispatchReadsModelFromPayloadNotMetadata(t *testing.T) {
	rec := &routeRecorder{}
	e := &Engine{gen: rec}
	// Metadata is display-only; a stale metadata model must not steer the
	// audio split away from what the payload says.
	item := &queue.Item{
		Provider:       queue.ProviderFal,
		GenerationType: "text-to-speech",
		Metadata:       queue.Metadata{Model: "minimax-music-v1"},
	}
	payload := json.RawMessage(`{"model":"elevenlabs-turbo-v2","text":"hello"}`)
	if _, err := e.dispatch(context.Background(), item, payload); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if rec.method != "FalElevenTTS" {
		t.Fatalf("routed to %s, want FalElevenTTS", rec.method)
	}
}

func TestDispatchUnknownProvider(t *testing.T) {
	e := &Engine{gen: &routeRecorder{}}
	item := &queue.Item{Provider: queue.Provider("mystery"), GenerationType: "image"}
	_, err := e.dispatch(context.Background(), item, json.RawMessage(`{"prompt":"x"}`))
	var perr *providers.Error
	if !errors.As(err, &perr) || perr.Kind != providers.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEnsurePayloadRepairsFromBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedItem(t, store, queue.ProviderFal, "image")

	repaired := json.RawMessage(`{"model":"flux-pro","prompt":"recovered"}`)
	e := New(cfg, store, &stubBackend{payload: repaired}, &routeRecorder{}, nil, nil)
	defer e.Close()

	// Simulate a row whose payload was lost locally.
	item := *seeded
	item.Payload = nil
	got, err := e.ensurePayload(context.Background(), &item)
	if err != nil {
		t.Fatalf("ensurePayload: %v", err)
	}
	if string(got) != string(repaired) {
		t.Fatalf("unexpected repaired payload: %s", got)
	}

	persisted, err := store.GetByID(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if string(persisted.Payload) != string(repaired) {
		t.Fatalf("repaired payload not persisted: %s", persisted.Payload)
	}
}

func TestEnsurePayloadFailsWhenBackendCannotHelp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedItem(t, store, queue.ProviderFal, "image")

	e := New(cfg, store, &stubBackend{payloadErr: errors.New("not found")}, &routeRecorder{}, nil, nil)
	defer e.Close()

	item := *seeded
	item.Payload = nil
	_, err := e.ensurePayload(context.Background(), &item)
	var perr *providers.Error
	if !errors.As(err, &perr) || perr.Kind != providers.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEnsurePayloadLeavesHealthyPayloadAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	seeded := testsupport.SeedItem(t, store, queue.ProviderFal, "image")

	be := &stubBackend{payloadErr: errors.New("must not be called")}
	e := New(cfg, store, be, &routeRecorder{}, nil, nil)
	defer e.Close()

	got, err := e.ensurePayload(context.Background(), seeded)
	if err != nil {
		t.Fatalf("ensurePayload: %v", err)
	}
	if string(got) != string(seeded.Payload) {
		t.Fatalf("payload changed unexpectedly: %s", got)
	}
}
