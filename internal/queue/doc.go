// Package queue defines the generation queue item model and its SQLite-backed
// store. Items move queued -> processing -> completed/failed/cancelled; the
// store keeps them in strict insertion order so the engine can pick the next
// queued item FIFO.
package queue
