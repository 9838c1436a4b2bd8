package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"easel/internal/config"
	"easel/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

var seedCounter int

// SeedItem inserts a queued generation for tests using the provided store.
// The payload carries a model and prompt so derived metadata is populated.
func SeedItem(t testing.TB, store *queue.Store, provider queue.Provider, generationType string) *queue.Item {
	t.Helper()

	seedCounter++
	id := fmt.Sprintf("queue-%04d", seedCounter)
	payload := json.RawMessage(fmt.Sprintf(
		`{"model":"test-model","prompt":"test prompt %d","num_images":2}`, seedCounter))

	item, err := store.Insert(context.Background(), &queue.Item{
		ID:              id,
		GenerationType:  generationType,
		Provider:        provider,
		Payload:         payload,
		CreditsCost:     5,
		CreditsDeducted: true,
		Metadata:        queue.DeriveMetadata(payload),
	})
	if err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return item
}
