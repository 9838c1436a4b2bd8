// Package providers implements the generation provider adapters. Every
// provider is proxied through the SaaS backend (POST /api/<provider>/...), so
// the adapters share one HTTP client and differ only in endpoint and result
// interpretation. Provider failures are normalized into a tagged Error so the
// engine can resolve a human-readable message without probing ad-hoc shapes.
package providers
