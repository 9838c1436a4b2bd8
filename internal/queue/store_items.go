package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const itemColumns = `id, generation_type, provider, payload, credits_cost, credits_deducted,
    metadata_json, status, result_json, history_id, error_message,
    created_at, started_at, completed_at`

// Insert adds a new item in status queued. The item's ID must be the
// backend-assigned queue ID and the payload must already be cloned by the
// caller; the store persists byte-for-byte what it is given.
func (s *Store) Insert(ctx context.Context, item *Item) (*Item, error) {
	if item == nil {
		return nil, errors.New("insert queue item: nil item")
	}
	if strings.TrimSpace(item.ID) == "" {
		return nil, errors.New("insert queue item: id required")
	}
	if EmptyPayload(item.Payload) {
		return nil, errors.New("insert queue item: payload must be a non-empty object")
	}

	metadataJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	now := time.Now().UTC()
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            id, generation_type, provider, payload, credits_cost, credits_deducted,
            metadata_json, status, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.GenerationType,
		string(item.Provider),
		string(item.Payload),
		item.CreditsCost,
		boolToInt(item.CreditsDeducted),
		string(metadataJSON),
		StatusQueued,
		now.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert queue item: %w", err)
	}

	return s.GetByID(ctx, item.ID)
}

// GetByID fetches a single item, or nil when it does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Item, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM queue_items WHERE id = ?`,
		id,
	)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

// NextQueued returns the oldest item still in status queued, or nil when the
// queue is drained. FIFO order is insertion order.
func (s *Store) NextQueued(ctx context.Context) (*Item, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+itemColumns+` FROM queue_items WHERE status = ? ORDER BY seq ASC LIMIT 1`,
		StatusQueued,
	)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next queued item: %w", err)
	}
	return item, nil
}

// List returns items in insertion order, optionally filtered by status.
// QueuePosition is assigned from the returned ordering.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		item.QueuePosition = len(items) + 1
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return items, nil
}

// Stats returns item counts keyed by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT status, COUNT(1) FROM queue_items GROUP BY status`,
	)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int, len(allStatuses))
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue stats: %w", err)
		}
		if parsed, ok := ParseStatus(status); ok {
			stats[parsed] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue stats: %w", err)
	}
	return stats, nil
}

// Remove deletes an item regardless of status.
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`DELETE FROM queue_items WHERE id = ?`,
		id,
	); err != nil {
		return fmt.Errorf("remove queue item: %w", err)
	}
	return nil
}

// RemoveIfStatus deletes an item only when it still holds the given status.
// Cleanup timers use this so an item whose status changed during the grace
// delay is left alone.
func (s *Store) RemoveIfStatus(ctx context.Context, id string, status Status) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM queue_items WHERE id = ? AND status = ?`,
		id,
		string(status),
	)
	if err != nil {
		return false, fmt.Errorf("remove queue item by status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove queue item rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes all items in status completed.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM queue_items WHERE status = ?`,
		StatusCompleted,
	)
	if err != nil {
		return 0, fmt.Errorf("clear completed items: %w", err)
	}
	return res.RowsAffected()
}

// PruneTerminal removes all terminal items. Used on restore so the persisted
// queue only carries active work forward across restarts.
func (s *Store) PruneTerminal(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM queue_items WHERE status IN (?, ?, ?)`,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
	)
	if err != nil {
		return 0, fmt.Errorf("prune terminal items: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*Item, error) {
	var (
		item            Item
		provider        string
		status          string
		payload         string
		creditsDeducted int
		metadataJSON    sql.NullString
		resultJSON      sql.NullString
		historyID       sql.NullString
		errorMessage    sql.NullString
		createdAt       string
		startedAt       sql.NullString
		completedAt     sql.NullString
	)

	if err := row.Scan(
		&item.ID,
		&item.GenerationType,
		&provider,
		&payload,
		&item.CreditsCost,
		&creditsDeducted,
		&metadataJSON,
		&status,
		&resultJSON,
		&historyID,
		&errorMessage,
		&createdAt,
		&startedAt,
		&completedAt,
	); err != nil {
		return nil, err
	}

	item.Provider = Provider(provider)
	item.Payload = json.RawMessage(payload)
	item.CreditsDeducted = creditsDeducted != 0
	if parsed, ok := ParseStatus(status); ok {
		item.Status = parsed
	} else {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &item.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if resultJSON.Valid && resultJSON.String != "" {
		item.Result = json.RawMessage(resultJSON.String)
	}
	item.HistoryID = historyID.String
	item.ErrorMessage = errorMessage.String

	parsedCreated, err := parseTimestamp(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	item.CreatedAt = parsedCreated
	if startedAt.Valid {
		parsed, err := parseTimestamp(startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		item.StartedAt = &parsed
	}
	if completedAt.Valid {
		parsed, err := parseTimestamp(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		item.CompletedAt = &parsed
	}

	return &item, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed, nil
	}
	return time.Parse(time.RFC3339, value)
}
