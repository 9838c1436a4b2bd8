package providers

import (
	"errors"
	"fmt"
	"testing"
)

func TestExtractMessage(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"nil", nil, "generation failed"},
		{"plain string", "model is overloaded", "model is overloaded"},
		{"error value", errors.New("dial timeout"), "dial timeout"},
		{
			"message field",
			map[string]any{"message": "invalid prompt"},
			"invalid prompt",
		},
		{
			"http response wrapper with message",
			map[string]any{"response": map[string]any{"data": map[string]any{"message": "quota exceeded"}}},
			"quota exceeded",
		},
		{
			"http response wrapper with error",
			map[string]any{"response": map[string]any{"data": map[string]any{"error": "bad model"}}},
			"bad model",
		},
		{
			"nested error string",
			map[string]any{"error": "upstream rejected"},
			"upstream rejected",
		},
		{
			"nested error object",
			map[string]any{"error": map[string]any{"message": "content policy"}},
			"content policy",
		},
		{
			"nested payload object",
			map[string]any{"payload": map[string]any{"message": "missing field"}},
			"missing field",
		},
		{
			"unrecognized map serializes",
			map[string]any{"code": float64(42)},
			`{"code":42}`,
		},
		{
			"number serializes",
			float64(7),
			"7",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractMessage(tc.value); got != tc.want {
				t.Fatalf("ExtractMessage(%v) = %q, want %q", tc.value, got, tc.want)
			}
		})
	}
}

func TestExtractMessageNeverPanicsOnCycles(t *testing.T) {
	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	got := ExtractMessage(cyclic)
	want := fmt.Sprintf("unserializable error value (%T)", cyclic)
	if got != want {
		t.Fatalf("ExtractMessage(cyclic) = %q, want %q", got, want)
	}
}

func TestMessageFromErrorPrefersProviderError(t *testing.T) {
	inner := &Error{Kind: KindValidation, Message: "prompt too long"}
	wrapped := fmt.Errorf("dispatch: %w", inner)
	if got := MessageFromError(wrapped); got != "prompt too long" {
		t.Fatalf("MessageFromError = %q", got)
	}
	if got := MessageFromError(errors.New("plain failure")); got != "plain failure" {
		t.Fatalf("MessageFromError = %q", got)
	}
	if got := MessageFromError(nil); got != "generation failed" {
		t.Fatalf("MessageFromError(nil) = %q", got)
	}
}

func TestErrorFromResponseClassifiesKind(t *testing.T) {
	validation := errorFromResponse(422, []byte(`{"message":"bad size"}`))
	if validation.Kind != KindValidation || validation.Message != "bad size" || validation.StatusCode != 422 {
		t.Fatalf("unexpected validation error: %+v", validation)
	}

	httpErr := errorFromResponse(503, []byte("upstream down"))
	if httpErr.Kind != KindHTTP || httpErr.Message != "upstream down" {
		t.Fatalf("unexpected http error: %+v", httpErr)
	}

	empty := errorFromResponse(500, nil)
	if empty.Message != "provider returned http 500" {
		t.Fatalf("unexpected fallback message: %q", empty.Message)
	}
}
