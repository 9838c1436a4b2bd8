// Package api defines wire-format types and converters for the daemon HTTP
// API. It translates internal queue models into transport-friendly DTOs so
// consumers never couple to internal types.
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers. Internal
// enums (queue.Status, queue.Provider) are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds. Results are passed through as
// json.RawMessage to avoid double-encoding provider payloads.
package api
