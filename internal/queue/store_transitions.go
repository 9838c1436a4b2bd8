package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// MarkProcessing transitions an item from queued to processing and stamps
// started_at. Returns ErrInvalidTransition when the item is not queued, which
// keeps the single-flight loop from double-dispatching an item.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, started_at = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing,
		now,
		id,
		StatusQueued,
	)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return requireTransition(res.RowsAffected())
}

// MarkCompleted transitions an item from processing to completed with its
// result and history ID.
func (s *Store) MarkCompleted(ctx context.Context, id string, result json.RawMessage, historyID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, result_json = ?, history_id = ?, completed_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted,
		nullableJSON(result),
		nullableString(historyID),
		now,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return requireTransition(res.RowsAffected())
}

// MarkFailed transitions an item from processing to failed with the resolved
// error message.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, error_message = ?, completed_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed,
		message,
		now,
		id,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return requireTransition(res.RowsAffected())
}

// MarkCancelled transitions a queued or processing item to cancelled. The
// transition is forced locally even when the backend cancel call failed, so
// the transition itself has no backend precondition.
func (s *Store) MarkCancelled(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, completed_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusCancelled,
		now,
		id,
		StatusQueued,
		StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	return requireTransition(res.RowsAffected())
}

// UpdatePayload replaces an item's payload. Used by the repair path after the
// authoritative payload is re-fetched from the backend.
func (s *Store) UpdatePayload(ctx context.Context, id string, payload json.RawMessage) error {
	if EmptyPayload(payload) {
		return fmt.Errorf("update payload: payload must be a non-empty object")
	}
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items SET payload = ? WHERE id = ?`,
		string(payload),
		id,
	); err != nil {
		return fmt.Errorf("update payload: %w", err)
	}
	return nil
}

// ResetStuckProcessing moves items left in processing back to queued. Run on
// restore so work interrupted by a shutdown is picked up again.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET status = ?, started_at = NULL WHERE status = ?`,
		StatusQueued,
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck processing: %w", err)
	}
	return res.RowsAffected()
}

func requireTransition(affected int64, err error) error {
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrInvalidTransition
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableJSON(value json.RawMessage) any {
	if len(value) == 0 {
		return nil
	}
	return string(value)
}
