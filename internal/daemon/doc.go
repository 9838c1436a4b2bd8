// Package daemon hosts the long-running easel process: it owns the queue
// engine lifecycle, enforces single-instance execution with a file lock, and
// serves the local HTTP API the CLI talks to.
package daemon
