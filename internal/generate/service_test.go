package generate_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"easel/internal/engine"
	"easel/internal/generate"
	"easel/internal/providers"
	"easel/internal/queue"
)

type fakeEnqueuer struct {
	enabled bool
	err     error
	inputs  []engine.EnqueueInput
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, in engine.EnqueueInput) (*queue.Item, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &queue.Item{
		ID:            "q-42",
		QueuePosition: 3,
		Status:        queue.StatusQueued,
		Provider:      in.Provider,
	}, nil
}

func (f *fakeEnqueuer) Enabled() bool { return f.enabled }

type directRecorder struct {
	method string
	err    error
}

func (d *directRecorder) hit(method string) (*providers.Result, error) {
	d.method = method
	if d.err != nil {
		return nil, d.err
	}
	return &providers.Result{Raw: json.RawMessage(`{"ok":true}`)}, nil
}

func (d *directRecorder) FalGenerate(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return d.hit("FalGenerate")
}

func (d *directRecorder) FalElevenTTS(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return d.hit("FalElevenTTS")
}

func (d *directRecorder) MiniMaxGenerate(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return d.hit("MiniMaxGenerate")
}

func (d *directRecorder) MiniMaxMusic(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return d.hit("MiniMaxMusic")
}

func (d *directRecorder) RunwayGenerate(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return d.hit("RunwayGenerate")
}

func (d *directRecorder) BFLGenerate(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return d.hit("BFLGenerate")
}

func (d *directRecorder) ReplicateGenerate(ctx context.Context, payload json.RawMessage) (*providers.Result, error) {
	return d.hit("ReplicateGenerate")
}

var testPayload = json.RawMessage(`{"model":"flux-pro","prompt":"a lighthouse"}`)

func TestQueuedWhenEngineEnabled(t *testing.T) {
	enq := &fakeEnqueuer{enabled: true}
	gen := &directRecorder{}
	svc := generate.NewService(enq, gen, nil)

	var queuedID string
	outcome, err := svc.WithFal(context.Background(), "image", testPayload, queue.Metadata{}, generate.Options{
		OnQueued: func(id string) { queuedID = id },
	})
	if err != nil {
		t.Fatalf("WithFal: %v", err)
	}
	if outcome.Queued == nil || outcome.Result != nil {
		t.Fatalf("expected queued outcome, got %+v", outcome)
	}
	if outcome.Queued.QueueID != "q-42" || outcome.Queued.Position != 3 {
		t.Fatalf("unexpected queued info: %+v", outcome.Queued)
	}
	if queuedID != "q-42" {
		t.Fatalf("OnQueued got %q", queuedID)
	}
	if gen.method != "" {
		t.Fatalf("direct call should not run when queued, hit %s", gen.method)
	}
	if len(enq.inputs) != 1 || enq.inputs[0].Provider != queue.ProviderFal || enq.inputs[0].GenerationType != "image" {
		t.Fatalf("unexpected enqueue input: %+v", enq.inputs)
	}
}

func TestFallsBackToDirectOnAdmissionFailure(t *testing.T) {
	enq := &fakeEnqueuer{enabled: true, err: errors.New("backend unreachable")}
	gen := &directRecorder{}
	svc := generate.NewService(enq, gen, nil)

	started := false
	outcome, err := svc.WithFal(context.Background(), "image", testPayload, queue.Metadata{}, generate.Options{
		OnStarted: func() { started = true },
	})
	if err != nil {
		t.Fatalf("WithFal: %v", err)
	}
	if outcome.Result == nil || outcome.Queued != nil {
		t.Fatalf("expected direct outcome after fallback, got %+v", outcome)
	}
	if !started {
		t.Fatal("expected OnStarted before the direct call")
	}
	if gen.method != "FalGenerate" {
		t.Fatalf("expected direct fal call, hit %q", gen.method)
	}
}

func TestUseQueueFalseSkipsEnqueuer(t *testing.T) {
	enq := &fakeEnqueuer{enabled: true}
	gen := &directRecorder{}
	svc := generate.NewService(enq, gen, nil)

	useQueue := false
	outcome, err := svc.WithRunway(context.Background(), "video", testPayload, queue.Metadata{}, generate.Options{
		UseQueue: &useQueue,
	})
	if err != nil {
		t.Fatalf("WithRunway: %v", err)
	}
	if outcome.Result == nil {
		t.Fatal("expected direct outcome")
	}
	if len(enq.inputs) != 0 {
		t.Fatalf("enqueuer must not be consulted, got %d calls", len(enq.inputs))
	}
	if gen.method != "RunwayGenerate" {
		t.Fatalf("hit %q", gen.method)
	}
}

func TestUseQueueTrueOverridesDisabledEngine(t *testing.T) {
	enq := &fakeEnqueuer{enabled: false}
	gen := &directRecorder{}
	svc := generate.NewService(enq, gen, nil)

	useQueue := true
	outcome, err := svc.WithBFL(context.Background(), "image", testPayload, queue.Metadata{}, generate.Options{
		UseQueue: &useQueue,
	})
	if err != nil {
		t.Fatalf("WithBFL: %v", err)
	}
	if outcome.Queued == nil {
		t.Fatalf("expected queued outcome, got %+v", outcome)
	}
}

func TestDisabledEngineGoesDirect(t *testing.T) {
	enq := &fakeEnqueuer{enabled: false}
	gen := &directRecorder{}
	svc := generate.NewService(enq, gen, nil)

	outcome, err := svc.WithReplicate(context.Background(), "image", testPayload, queue.Metadata{}, generate.Options{})
	if err != nil {
		t.Fatalf("WithReplicate: %v", err)
	}
	if outcome.Result == nil {
		t.Fatal("expected direct outcome when queue is disabled")
	}
	if len(enq.inputs) != 0 {
		t.Fatal("enqueuer must not be consulted when disabled")
	}
}

func TestDirectErrorSurfaces(t *testing.T) {
	enq := &fakeEnqueuer{enabled: false}
	gen := &directRecorder{err: &providers.Error{Kind: providers.KindHTTP, Message: "rate limited", StatusCode: 429}}
	svc := generate.NewService(enq, gen, nil)

	_, err := svc.WithMiniMax(context.Background(), "image", testPayload, queue.Metadata{}, generate.Options{})
	var perr *providers.Error
	if !errors.As(err, &perr) || perr.StatusCode != 429 {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestSpecializedEntryPointsPickGenerationTypes(t *testing.T) {
	enq := &fakeEnqueuer{enabled: true}
	svc := generate.NewService(enq, &directRecorder{}, nil)

	if _, err := svc.TTSWithFal(context.Background(), testPayload, queue.Metadata{}, generate.Options{}); err != nil {
		t.Fatalf("TTSWithFal: %v", err)
	}
	if _, err := svc.MusicWithMiniMax(context.Background(), testPayload, queue.Metadata{}, generate.Options{}); err != nil {
		t.Fatalf("MusicWithMiniMax: %v", err)
	}

	if len(enq.inputs) != 2 {
		t.Fatalf("expected two enqueues, got %d", len(enq.inputs))
	}
	if enq.inputs[0].GenerationType != "tts" || enq.inputs[0].Provider != queue.ProviderFal {
		t.Fatalf("unexpected tts input: %+v", enq.inputs[0])
	}
	if enq.inputs[1].GenerationType != "text-to-music" || enq.inputs[1].Provider != queue.ProviderMiniMax {
		t.Fatalf("unexpected music input: %+v", enq.inputs[1])
	}
}
