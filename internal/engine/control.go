package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"easel/internal/backend"
	"easel/internal/logging"
	"easel/internal/queue"
)

// EnqueueInput describes one generation request to admit into the queue.
type EnqueueInput struct {
	GenerationType string
	Provider       queue.Provider
	Payload        json.RawMessage
	Metadata       queue.Metadata
}

// Enqueue admits a generation: the backend reserves credits and assigns the
// queue ID, then the item is persisted locally with a defensive copy of the
// payload. The loop is woken after a successful insert.
func (e *Engine) Enqueue(ctx context.Context, in EnqueueInput) (*queue.Item, error) {
	if queue.EmptyPayload(in.Payload) {
		return nil, errors.New("enqueue: payload must be a non-empty object")
	}
	provider, ok := queue.ParseProvider(string(in.Provider))
	if !ok {
		return nil, fmt.Errorf("enqueue: unknown provider %q", in.Provider)
	}

	metadata := queue.DeriveMetadata(in.Payload).Merge(in.Metadata)

	admitted, err := e.backend.Enqueue(ctx, backend.EnqueueRequest{
		GenerationType: in.GenerationType,
		Provider:       provider,
		Payload:        in.Payload,
		Metadata:       metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	item := &queue.Item{
		ID:              admitted.QueueID,
		QueuePosition:   admitted.QueuePosition,
		GenerationType:  in.GenerationType,
		Provider:        provider,
		Payload:         queue.ClonePayload(in.Payload),
		CreditsCost:     admitted.CreditsCost,
		CreditsDeducted: true,
		Metadata:        metadata,
	}
	stored, err := e.store.Insert(ctx, item)
	if err != nil {
		// The backend reserved credits for an item we cannot track, so
		// hand them back before surfacing the error.
		e.refund(ctx, item)
		return nil, fmt.Errorf("enqueue: persist item: %w", err)
	}

	e.logger.Info("generation queued",
		logging.String(logging.FieldQueueID, stored.ID),
		logging.String(logging.FieldProvider, string(stored.Provider)),
		logging.String(logging.FieldGenerationType, stored.GenerationType),
		logging.Int(logging.FieldCredits, stored.CreditsCost),
		logging.Int("position", stored.QueuePosition))

	e.Kick()
	return stored, nil
}

// CancelItem cancels a queued or processing item. Cancellation is advisory:
// an in-flight provider call is not interrupted, but its outcome is dropped.
// Backend errors are logged and local state still wins.
func (e *Engine) CancelItem(ctx context.Context, id string) error {
	item, err := e.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return queue.ErrNotFound
	}
	if item.Status.Terminal() {
		return fmt.Errorf("cancel %s: item already %s: %w", id, item.Status, queue.ErrInvalidTransition)
	}

	if err := e.backend.Cancel(ctx, id); err != nil {
		e.logger.Warn("backend cancel failed, cancelling locally anyway",
			logging.String(logging.FieldQueueID, id),
			logging.Error(err))
	}
	if err := e.store.MarkCancelled(ctx, id); err != nil {
		return fmt.Errorf("cancel %s: %w", id, err)
	}

	e.logger.Info("generation cancelled",
		logging.String(logging.FieldQueueID, id),
		logging.String(logging.FieldStatus, string(item.Status)))

	if item.Status == queue.StatusQueued {
		// Never started, no result to inspect: drop it immediately.
		if err := e.store.Remove(ctx, id); err != nil {
			e.logger.Warn("failed to remove cancelled item",
				logging.String(logging.FieldQueueID, id),
				logging.Error(err))
		}
		return nil
	}
	e.scheduleRemoval(id, queue.StatusCancelled, e.failedTTL)
	return nil
}

// ClearCompleted drops all completed items at once.
func (e *Engine) ClearCompleted(ctx context.Context) (int64, error) {
	cleared, err := e.store.ClearCompleted(ctx)
	if err != nil {
		return 0, err
	}
	if cleared > 0 {
		e.logger.Info("cleared completed items", logging.Int64("count", cleared))
	}
	return cleared, nil
}

// RestoreOnLoad reconciles persisted state after a restart: items stuck in
// processing return to the queue head and terminal leftovers whose grace
// timers died with the process are pruned.
func (e *Engine) RestoreOnLoad(ctx context.Context) error {
	reset, err := e.store.ResetStuckProcessing(ctx)
	if err != nil {
		return fmt.Errorf("restore: reset processing: %w", err)
	}
	pruned, err := e.store.PruneTerminal(ctx)
	if err != nil {
		return fmt.Errorf("restore: prune terminal: %w", err)
	}
	if reset > 0 || pruned > 0 {
		e.logger.Info("restored queue state",
			logging.Int64("requeued", reset),
			logging.Int64("pruned", pruned))
	}

	counts, err := e.store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("restore: stats: %w", err)
	}
	if counts[queue.StatusQueued] > 0 {
		e.Kick()
	}
	return nil
}
