package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a provider failure by the shape it arrived in.
type Kind string

const (
	KindString     Kind = "string"
	KindHTTP       Kind = "http"
	KindValidation Kind = "validation"
	KindUnknown    Kind = "unknown"
)

// Error is the normalized provider failure. Message is always resolved to
// something human-readable; Raw keeps the original body for logging.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Raw        json.RawMessage
}

func (e *Error) Error() string {
	if e == nil {
		return "generation failed"
	}
	return e.Message
}

func newError(kind Kind, message string) *Error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "generation failed"
	}
	return &Error{Kind: kind, Message: message}
}

// errorFromResponse builds an Error from a non-2xx provider response body.
func errorFromResponse(statusCode int, body []byte) *Error {
	kind := KindHTTP
	if statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity {
		kind = KindValidation
	}

	message := ""
	var decoded any
	if err := json.Unmarshal(body, &decoded); err == nil {
		message = ExtractMessage(decoded)
	} else {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = fmt.Sprintf("provider returned http %d", statusCode)
	}

	providerErr := newError(kind, message)
	providerErr.StatusCode = statusCode
	providerErr.Raw = append(json.RawMessage(nil), body...)
	return providerErr
}

// MessageFromError resolves an error chain to a display message, preferring
// the normalized provider message when one is present.
func MessageFromError(err error) string {
	if err == nil {
		return "generation failed"
	}
	var providerErr *Error
	if errors.As(err, &providerErr) {
		return providerErr.Message
	}
	if message := strings.TrimSpace(err.Error()); message != "" {
		return message
	}
	return "generation failed"
}

// ExtractMessage resolves an arbitrary decoded error value to a human-readable
// string. The probing order mirrors the shapes providers and the backend are
// known to reject with: plain string, message field, HTTP response wrapper,
// nested error, nested payload, then serialization fallbacks. It never panics,
// even for unserializable input.
func ExtractMessage(value any) string {
	switch typed := value.(type) {
	case nil:
		return "generation failed"
	case string:
		return typed
	case error:
		return typed.Error()
	case map[string]any:
		if message := mapMessage(typed); message != "" {
			return message
		}
	}

	if encoded, err := json.Marshal(value); err == nil {
		return string(encoded)
	}
	return fmt.Sprintf("unserializable error value (%T)", value)
}

func mapMessage(m map[string]any) string {
	if message, ok := m["message"].(string); ok && message != "" {
		return message
	}
	if response, ok := m["response"].(map[string]any); ok {
		if data, ok := response["data"].(map[string]any); ok {
			if message, ok := data["message"].(string); ok && message != "" {
				return message
			}
			if message, ok := data["error"].(string); ok && message != "" {
				return message
			}
		}
	}
	if message := nestedMessage(m["error"]); message != "" {
		return message
	}
	if message := nestedMessage(m["payload"]); message != "" {
		return message
	}
	return ""
}

func nestedMessage(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case map[string]any:
		if message, ok := typed["message"].(string); ok {
			return message
		}
	}
	return ""
}
