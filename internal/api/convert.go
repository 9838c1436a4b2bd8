package api

import (
	"time"

	"easel/internal/engine"
	"easel/internal/queue"
)

// FromQueueItem converts a queue record to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}

	dto := QueueItem{
		ID:             item.ID,
		QueuePosition:  item.QueuePosition,
		GenerationType: item.GenerationType,
		Provider:       string(item.Provider),
		Model:          item.Metadata.Model,
		Prompt:         item.Metadata.Prompt,
		Status:         string(item.Status),
		CreditsCost:    item.CreditsCost,
		ErrorMessage:   item.ErrorMessage,
		HistoryID:      item.HistoryID,
		Result:         item.Result,
	}
	if !item.CreatedAt.IsZero() {
		dto.CreatedAt = FormatTime(item.CreatedAt)
	}
	if item.StartedAt != nil {
		dto.StartedAt = FormatTime(*item.StartedAt)
	}
	if item.CompletedAt != nil {
		dto.CompletedAt = FormatTime(*item.CompletedAt)
	}
	return dto
}

// FromQueueItems converts a slice of queue records into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

// FromSnapshot converts an engine snapshot to its API representation.
func FromSnapshot(snap engine.Snapshot) EngineStatus {
	return EngineStatus{
		Enabled:      snap.Enabled,
		Paused:       snap.Paused,
		ProcessingID: snap.CurrentID,
		QueueStats:   MergeQueueStats(snap.Counts),
	}
}

// MergeQueueStats produces a string-keyed representation of queue stats.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
