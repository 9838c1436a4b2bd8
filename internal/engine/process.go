package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"easel/internal/logging"
	"easel/internal/providers"
	"easel/internal/queue"
)

func (e *Engine) processItem(ctx context.Context, item *queue.Item) {
	if err := e.store.MarkProcessing(ctx, item.ID); err != nil {
		// The item left the queued state between fetch and claim,
		// typically a cancellation racing the loop.
		if errors.Is(err, queue.ErrInvalidTransition) {
			e.logger.Debug("skipping item no longer queued", logging.String(logging.FieldQueueID, item.ID))
			return
		}
		e.logger.Error("failed to claim queue item",
			logging.String(logging.FieldQueueID, item.ID),
			logging.Error(err))
		return
	}
	e.setCurrent(item.ID)
	defer e.setCurrent("")

	e.logger.Info("processing generation",
		logging.String(logging.FieldQueueID, item.ID),
		logging.String(logging.FieldProvider, string(item.Provider)),
		logging.String(logging.FieldGenerationType, item.GenerationType),
		logging.String(logging.FieldModel, item.Metadata.Model))

	payload, err := e.ensurePayload(ctx, item)
	if err != nil {
		e.handleFailure(ctx, item, err)
		return
	}

	result, err := e.dispatch(ctx, item, payload)
	if err != nil {
		e.handleFailure(ctx, item, err)
		return
	}
	e.handleSuccess(ctx, item, result)
}

// ensurePayload returns the stored payload, falling back to one backend
// fetch when the local copy is empty. The repair is attempted exactly once
// per processing pass.
func (e *Engine) ensurePayload(ctx context.Context, item *queue.Item) (json.RawMessage, error) {
	if !queue.EmptyPayload(item.Payload) {
		return item.Payload, nil
	}
	e.logger.Warn("stored payload is empty, fetching from backend",
		logging.String(logging.FieldQueueID, item.ID))
	repaired, err := e.backend.ItemPayload(ctx, item.ID)
	if err != nil {
		return nil, &providers.Error{
			Kind:    providers.KindValidation,
			Message: "generation payload is missing and could not be recovered",
		}
	}
	if err := e.store.UpdatePayload(ctx, item.ID, repaired); err != nil {
		e.logger.Warn("failed to persist recovered payload",
			logging.String(logging.FieldQueueID, item.ID),
			logging.Error(err))
	}
	item.Payload = repaired
	return repaired, nil
}

// dispatch routes the item to a provider adapter. Audio requests on fal are
// split by the payload's model: ElevenLabs-family models use the fal TTS
// proxy, everything else goes through MiniMax music.
func (e *Engine) dispatch(ctx context.Context, item *queue.Item, payload json.RawMessage) (*providers.Result, error) {
	switch item.Provider {
	case queue.ProviderFal:
		if isAudioType(item.GenerationType) {
			model := strings.ToLower(payloadModel(payload))
			if strings.Contains(model, "elevenlabs") || strings.Contains(model, "tts") {
				return e.gen.FalElevenTTS(ctx, payload)
			}
			return e.gen.MiniMaxMusic(ctx, payload)
		}
		return e.gen.FalGenerate(ctx, payload)
	case queue.ProviderMiniMax:
		if item.GenerationType == "text-to-music" {
			return e.gen.MiniMaxMusic(ctx, payload)
		}
		return e.gen.MiniMaxGenerate(ctx, payload)
	case queue.ProviderRunway:
		return e.gen.RunwayGenerate(ctx, payload)
	case queue.ProviderBFL:
		return e.gen.BFLGenerate(ctx, payload)
	case queue.ProviderReplicate:
		return e.gen.ReplicateGenerate(ctx, payload)
	default:
		return nil, &providers.Error{
			Kind:    providers.KindValidation,
			Message: fmt.Sprintf("unknown provider %q", item.Provider),
		}
	}
}

func isAudioType(generationType string) bool {
	switch generationType {
	case "text-to-music", "music", "text-to-speech", "speech", "tts":
		return true
	default:
		return false
	}
}

// payloadModel pulls the model field out of a generation payload. Dispatch
// must key on the payload itself; metadata is display-only.
func payloadModel(payload json.RawMessage) string {
	var fields struct {
		Model string `json:"model"`
	}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return ""
	}
	return fields.Model
}

func (e *Engine) handleSuccess(ctx context.Context, item *queue.Item, result *providers.Result) {
	raw := result.Raw
	if len(raw) == 0 {
		encoded, err := json.Marshal(result)
		if err == nil {
			raw = encoded
		}
	}
	if err := e.store.MarkCompleted(ctx, item.ID, raw, result.HistoryID); err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			// Cancelled while the provider call was in flight; drop the
			// result and leave credit settlement to the cancel path.
			e.logger.Info("dropping result for cancelled item",
				logging.String(logging.FieldQueueID, item.ID))
			return
		}
		e.logger.Error("failed to record completion",
			logging.String(logging.FieldQueueID, item.ID),
			logging.Error(err))
		return
	}

	outputs := result.OutputCount(item.Metadata.ImageCount)
	e.logger.Info("generation completed",
		logging.String(logging.FieldQueueID, item.ID),
		logging.String(logging.FieldProvider, string(item.Provider)),
		logging.Int("outputs", outputs))

	if e.notifier != nil {
		if err := e.notifier.NotifyGenerationComplete(ctx, outputs, item.Metadata.Prompt); err != nil {
			e.logger.Warn("completion notification failed", logging.Error(err))
		}
	}
	e.scheduleRemoval(item.ID, queue.StatusCompleted, e.completedTTL)
}

func (e *Engine) handleFailure(ctx context.Context, item *queue.Item, cause error) {
	message := providers.MessageFromError(cause)
	if err := e.store.MarkFailed(ctx, item.ID, message); err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			// Already cancelled; the backend cancel path settles credits.
			e.logger.Info("dropping failure for cancelled item",
				logging.String(logging.FieldQueueID, item.ID))
			return
		}
		e.logger.Error("failed to record failure",
			logging.String(logging.FieldQueueID, item.ID),
			logging.Error(err))
		return
	}

	e.logger.Error("generation failed",
		logging.String(logging.FieldQueueID, item.ID),
		logging.String(logging.FieldProvider, string(item.Provider)),
		logging.String("reason", message))

	if e.notifier != nil {
		if err := e.notifier.NotifyGenerationFailed(ctx, message, item.Metadata.Prompt); err != nil {
			e.logger.Warn("failure notification failed", logging.Error(err))
		}
	}
	e.refund(ctx, item)
	e.scheduleRemoval(item.ID, queue.StatusFailed, e.failedTTL)
}

// refund returns reserved credits for a failed item. Called at most once per
// failure; errors are logged and never retried, the backend deduplicates by
// request ID.
func (e *Engine) refund(ctx context.Context, item *queue.Item) {
	if !item.CreditsDeducted || item.CreditsCost <= 0 {
		return
	}
	if err := e.backend.RefundCredits(ctx, item.ID, item.CreditsCost); err != nil {
		e.logger.Error("credit refund failed",
			logging.String(logging.FieldQueueID, item.ID),
			logging.Int(logging.FieldCredits, item.CreditsCost),
			logging.Error(err))
		return
	}
	e.logger.Info("credits refunded",
		logging.String(logging.FieldQueueID, item.ID),
		logging.Int(logging.FieldCredits, item.CreditsCost))
}

// scheduleRemoval arms a grace timer that removes the item once the window
// passes, but only if it still holds the expected status.
func (e *Engine) scheduleRemoval(id string, status queue.Status, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if existing, ok := e.timers[id]; ok {
		existing.Stop()
	}
	e.timers[id] = time.AfterFunc(ttl, func() {
		e.mu.Lock()
		delete(e.timers, id)
		e.mu.Unlock()

		removed, err := e.store.RemoveIfStatus(context.Background(), id, status)
		if err != nil {
			e.logger.Warn("auto-removal failed",
				logging.String(logging.FieldQueueID, id),
				logging.Error(err))
			return
		}
		if removed {
			e.logger.Debug("auto-removed finished item",
				logging.String(logging.FieldQueueID, id),
				logging.String(logging.FieldStatus, string(status)))
		}
	})
	e.mu.Unlock()
}
