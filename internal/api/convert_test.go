package api_test

import (
	"encoding/json"
	"testing"
	"time"

	"easel/internal/api"
	"easel/internal/engine"
	"easel/internal/queue"
)

func TestFromQueueItem(t *testing.T) {
	started := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	item := &queue.Item{
		ID:             "q-1",
		QueuePosition:  2,
		GenerationType: "image",
		Provider:       queue.ProviderFal,
		Status:         queue.StatusProcessing,
		CreditsCost:    5,
		Metadata:       queue.Metadata{Model: "flux-pro", Prompt: "a fox"},
		Result:         json.RawMessage(`{"ok":true}`),
		CreatedAt:      started.Add(-time.Minute),
		StartedAt:      &started,
	}

	dto := api.FromQueueItem(item)
	if dto.ID != "q-1" || dto.Provider != "fal" || dto.Status != "processing" {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.Model != "flux-pro" || dto.Prompt != "a fox" {
		t.Fatalf("metadata not flattened: %+v", dto)
	}
	if dto.StartedAt == "" || dto.CompletedAt != "" {
		t.Fatalf("timestamps wrong: started=%q completed=%q", dto.StartedAt, dto.CompletedAt)
	}
	if api.ParseQueueTime(dto.CreatedAt).IsZero() {
		t.Fatalf("created timestamp not parseable: %q", dto.CreatedAt)
	}
}

func TestFromQueueItemNil(t *testing.T) {
	if dto := api.FromQueueItem(nil); dto.ID != "" {
		t.Fatalf("nil item should map to zero dto, got %+v", dto)
	}
}

func TestSortQueueItemsNewestFirst(t *testing.T) {
	now := time.Now().UTC()
	items := []api.QueueItem{
		{ID: "a", CreatedAt: api.FormatTime(now.Add(-2 * time.Minute))},
		{ID: "b", CreatedAt: api.FormatTime(now)},
		{ID: "c", CreatedAt: api.FormatTime(now.Add(-time.Minute))},
	}
	sorted := api.SortQueueItemsNewestFirst(items)
	if sorted[0].ID != "b" || sorted[1].ID != "c" || sorted[2].ID != "a" {
		t.Fatalf("unexpected order: %s %s %s", sorted[0].ID, sorted[1].ID, sorted[2].ID)
	}
	// Input order untouched.
	if items[0].ID != "a" {
		t.Fatal("sort mutated its input")
	}
}

func TestFromSnapshot(t *testing.T) {
	status := api.FromSnapshot(engine.Snapshot{
		Enabled:   true,
		CurrentID: "q-9",
		Counts: map[queue.Status]int{
			queue.StatusQueued:     3,
			queue.StatusProcessing: 1,
		},
	})
	if !status.Enabled || status.Paused || status.ProcessingID != "q-9" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.QueueStats["queued"] != 3 || status.QueueStats["processing"] != 1 {
		t.Fatalf("unexpected stats: %+v", status.QueueStats)
	}
}
