package generate

import (
	"context"
	"encoding/json"
	"log/slog"

	"easel/internal/engine"
	"easel/internal/logging"
	"easel/internal/providers"
	"easel/internal/queue"
)

// Enqueuer is the queue admission surface the wrapper needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, in engine.EnqueueInput) (*queue.Item, error)
	Enabled() bool
}

// Options tunes a single wrapped generation call.
type Options struct {
	// UseQueue overrides the engine-level toggle when non-nil.
	UseQueue *bool
	// OnQueued fires with the assigned queue ID when the request was
	// admitted to the queue instead of running directly.
	OnQueued func(queueID string)
	// OnStarted fires right before a direct provider call.
	OnStarted func()
}

// Queued describes a request that was accepted into the queue.
type Queued struct {
	QueueID  string `json:"queueId"`
	Status   string `json:"status"`
	Message  string `json:"message"`
	Position int    `json:"queuePosition"`
}

// Outcome is the result of a wrapped call: exactly one of Queued or Result
// is set.
type Outcome struct {
	Queued *Queued
	Result *providers.Result
}

// Service routes generation requests through the queue when it is enabled,
// degrading to a direct provider call when admission fails.
type Service struct {
	enqueuer Enqueuer
	gen      providers.Generator
	logger   *slog.Logger
}

// NewService wires the wrapper.
func NewService(enqueuer Enqueuer, gen providers.Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		enqueuer: enqueuer,
		gen:      gen,
		logger:   logging.NewComponentLogger(logger, "generate"),
	}
}

// WithFal runs an image or video generation through the fal proxy.
func (s *Service) WithFal(ctx context.Context, generationType string, payload json.RawMessage, meta queue.Metadata, opts Options) (*Outcome, error) {
	return s.run(ctx, generationType, queue.ProviderFal, payload, meta, s.gen.FalGenerate, opts)
}

// TTSWithFal runs a text-to-speech generation through the fal ElevenLabs
// proxy.
func (s *Service) TTSWithFal(ctx context.Context, payload json.RawMessage, meta queue.Metadata, opts Options) (*Outcome, error) {
	return s.run(ctx, "tts", queue.ProviderFal, payload, meta, s.gen.FalElevenTTS, opts)
}

// WithMiniMax runs an image or video generation through the MiniMax proxy.
func (s *Service) WithMiniMax(ctx context.Context, generationType string, payload json.RawMessage, meta queue.Metadata, opts Options) (*Outcome, error) {
	return s.run(ctx, generationType, queue.ProviderMiniMax, payload, meta, s.gen.MiniMaxGenerate, opts)
}

// MusicWithMiniMax runs a music generation through the MiniMax music proxy.
func (s *Service) MusicWithMiniMax(ctx context.Context, payload json.RawMessage, meta queue.Metadata, opts Options) (*Outcome, error) {
	return s.run(ctx, "text-to-music", queue.ProviderMiniMax, payload, meta, s.gen.MiniMaxMusic, opts)
}

// WithRunway runs a generation through the Runway proxy.
func (s *Service) WithRunway(ctx context.Context, generationType string, payload json.RawMessage, meta queue.Metadata, opts Options) (*Outcome, error) {
	return s.run(ctx, generationType, queue.ProviderRunway, payload, meta, s.gen.RunwayGenerate, opts)
}

// WithBFL runs a generation through the Black Forest Labs proxy.
func (s *Service) WithBFL(ctx context.Context, generationType string, payload json.RawMessage, meta queue.Metadata, opts Options) (*Outcome, error) {
	return s.run(ctx, generationType, queue.ProviderBFL, payload, meta, s.gen.BFLGenerate, opts)
}

// WithReplicate runs a generation through the Replicate proxy.
func (s *Service) WithReplicate(ctx context.Context, generationType string, payload json.RawMessage, meta queue.Metadata, opts Options) (*Outcome, error) {
	return s.run(ctx, generationType, queue.ProviderReplicate, payload, meta, s.gen.ReplicateGenerate, opts)
}

type directCall func(ctx context.Context, payload json.RawMessage) (*providers.Result, error)

func (s *Service) run(ctx context.Context, generationType string, provider queue.Provider, payload json.RawMessage, meta queue.Metadata, direct directCall, opts Options) (*Outcome, error) {
	if s.shouldQueue(opts) {
		item, err := s.enqueuer.Enqueue(ctx, engine.EnqueueInput{
			GenerationType: generationType,
			Provider:       provider,
			Payload:        payload,
			Metadata:       meta,
		})
		if err == nil {
			if opts.OnQueued != nil {
				opts.OnQueued(item.ID)
			}
			return &Outcome{Queued: &Queued{
				QueueID:  item.ID,
				Status:   string(queue.StatusQueued),
				Message:  "generation added to queue",
				Position: item.QueuePosition,
			}}, nil
		}
		s.logger.Warn("queue admission failed, falling back to direct call",
			logging.String(logging.FieldProvider, string(provider)),
			logging.String(logging.FieldGenerationType, generationType),
			logging.Error(err))
	}

	if opts.OnStarted != nil {
		opts.OnStarted()
	}
	result, err := direct(ctx, payload)
	if err != nil {
		return nil, err
	}
	return &Outcome{Result: result}, nil
}

func (s *Service) shouldQueue(opts Options) bool {
	if opts.UseQueue != nil {
		return *opts.UseQueue
	}
	return s.enqueuer.Enabled()
}
