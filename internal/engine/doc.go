// Package engine drives queued generations: it admits items through the
// credit backend, processes them strictly one at a time in insertion order,
// and settles credits when a generation fails.
package engine
