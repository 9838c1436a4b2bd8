package queue

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether the status ends an item's lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Provider identifies the backend-routed generation service for an item.
type Provider string

const (
	ProviderFal       Provider = "fal"
	ProviderMiniMax   Provider = "minimax"
	ProviderRunway    Provider = "runway"
	ProviderBFL       Provider = "bfl"
	ProviderReplicate Provider = "replicate"
)

var knownProviders = map[Provider]struct{}{
	ProviderFal:       {},
	ProviderMiniMax:   {},
	ProviderRunway:    {},
	ProviderBFL:       {},
	ProviderReplicate: {},
}

// ParseProvider normalizes a provider string and reports whether it is known.
func ParseProvider(value string) (Provider, bool) {
	normalized := Provider(strings.ToLower(strings.TrimSpace(value)))
	_, ok := knownProviders[normalized]
	return normalized, ok
}

// Item represents one generation request tracked by the queue.
type Item struct {
	ID              string
	QueuePosition   int
	GenerationType  string
	Provider        Provider
	Payload         json.RawMessage
	CreditsCost     int
	CreditsDeducted bool
	Metadata        Metadata
	Status          Status
	Result          json.RawMessage
	HistoryID       string
	ErrorMessage    string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// IsTerminal reports whether the item reached a terminal status.
func (i Item) IsTerminal() bool {
	return i.Status.Terminal()
}

// IsActive reports whether the item is still queued or in flight.
func (i Item) IsActive() bool {
	return i.Status == StatusQueued || i.Status == StatusProcessing
}

// ClonePayload returns a copy of raw that does not alias the caller's bytes.
// Enqueued payloads are cloned so later mutation of the original buffer cannot
// corrupt queued state.
func ClonePayload(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

// EmptyPayload reports whether raw is missing, null, not an object, or an
// object with no keys. Items with empty payloads cannot be dispatched.
func EmptyPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return true
	}
	return len(decoded) == 0
}
