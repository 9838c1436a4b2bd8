package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"easel/internal/backend"
	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/providers"
	"easel/internal/queue"
)

// Backend is the slice of the credit/queue backend the engine depends on.
type Backend interface {
	Enqueue(ctx context.Context, req backend.EnqueueRequest) (backend.EnqueueResult, error)
	ItemPayload(ctx context.Context, id string) (json.RawMessage, error)
	Cancel(ctx context.Context, id string) error
	RefundCredits(ctx context.Context, queueID string, creditsCost int) error
}

// Notifier receives lifecycle events for completed and failed generations.
type Notifier interface {
	NotifyGenerationComplete(ctx context.Context, outputs int, prompt string) error
	NotifyGenerationFailed(ctx context.Context, message, prompt string) error
}

// Engine owns the queue processing loop. At most one item is in the
// processing state at any time; everything else waits in insertion order.
type Engine struct {
	store    *queue.Store
	backend  Backend
	gen      providers.Generator
	notifier Notifier
	logger   *slog.Logger

	pollInterval   time.Duration
	interItemDelay time.Duration
	completedTTL   time.Duration
	failedTTL      time.Duration

	mu        sync.Mutex
	enabled   bool
	paused    bool
	currentID string
	timers    map[string]*time.Timer
	closed    bool

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// Option adjusts engine timing, used by tests to shrink the cleanup windows.
type Option func(*Engine)

// WithInterItemDelay overrides the pause between consecutive items.
func WithInterItemDelay(d time.Duration) Option {
	return func(e *Engine) { e.interItemDelay = d }
}

// WithRetention overrides how long completed and failed items linger before
// auto-removal.
func WithRetention(completed, failed time.Duration) Option {
	return func(e *Engine) {
		e.completedTTL = completed
		e.failedTTL = failed
	}
}

// WithPollInterval overrides the safety poll that catches missed wakeups.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

// New constructs the engine. Start must be called before items are processed.
func New(cfg *config.Config, store *queue.Store, be Backend, gen providers.Generator, notifier Notifier, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	e := &Engine{
		store:          store,
		backend:        be,
		gen:            gen,
		notifier:       notifier,
		logger:         logging.NewComponentLogger(logger, "engine"),
		pollInterval:   time.Duration(cfg.Queue.PollIntervalSeconds) * time.Second,
		interItemDelay: time.Duration(cfg.Queue.InterItemDelayMillis) * time.Millisecond,
		completedTTL:   time.Duration(cfg.Queue.CompletedRetentionSeconds) * time.Second,
		failedTTL:      time.Duration(cfg.Queue.FailedRetentionSeconds) * time.Second,
		enabled:        cfg.Queue.Enabled,
		timers:         make(map[string]*time.Timer),
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
	if e.pollInterval <= 0 {
		e.pollInterval = 5 * time.Second
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the processing loop. It returns immediately; the loop stops
// when ctx is cancelled or Close is called.
func (e *Engine) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
	go e.run(runCtx)
	e.Kick()
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		case <-ticker.C:
		}
		e.drain(ctx)
	}
}

// drain processes queued items until the queue is empty, the engine is
// paused or disabled, or the context ends. Items run strictly one at a time.
func (e *Engine) drain(ctx context.Context) {
	for {
		if ctx.Err() != nil || e.halted() {
			return
		}
		item, err := e.store.NextQueued(ctx)
		if err != nil {
			e.logger.Error("failed to read queue head", logging.Error(err))
			return
		}
		if item == nil {
			return
		}
		e.processItem(ctx, item)

		select {
		case <-ctx.Done():
			return
		case <-time.After(e.interItemDelay):
		}
	}
}

// Kick nudges the loop without blocking; redundant kicks coalesce.
func (e *Engine) Kick() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Pause stops picking up new items. The item currently processing, if any,
// runs to completion.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
	e.logger.Info("queue processing paused")
}

// Resume re-enables processing and wakes the loop.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	e.logger.Info("queue processing resumed")
	e.Kick()
}

// halted reports whether the loop must stop picking up items: processing is
// paused or the queue is disabled outright.
func (e *Engine) halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused || !e.enabled
}

// SetEnabled toggles the queue as a whole: admission of new generations and
// processing of items already queued. Re-enabling wakes the loop so held
// items resume from the queue head.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	e.enabled = enabled
	e.mu.Unlock()
	e.logger.Info("queue toggled", logging.Bool("enabled", enabled))
	if enabled {
		e.Kick()
	}
}

// Enabled reports whether new generations are routed through the queue.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// Close stops the loop and cancels pending auto-removal timers. Safe to call
// once after Start.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	cancel := e.cancel
	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
	}
	e.mu.Unlock()
	if cancel != nil {
		cancel()
		<-e.done
	}
}

func (e *Engine) setCurrent(id string) {
	e.mu.Lock()
	e.currentID = id
	e.mu.Unlock()
}

// Snapshot reports loop state alongside per-status counts.
type Snapshot struct {
	Enabled   bool
	Paused    bool
	CurrentID string
	Counts    map[queue.Status]int
}

// Status returns a point-in-time view of the engine and queue.
func (e *Engine) Status(ctx context.Context) (Snapshot, error) {
	counts, err := e.store.Stats(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	e.mu.Lock()
	snap := Snapshot{
		Enabled:   e.enabled,
		Paused:    e.paused,
		CurrentID: e.currentID,
		Counts:    counts,
	}
	e.mu.Unlock()
	return snap, nil
}
