package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"easel/internal/config"
	"easel/internal/engine"
	"easel/internal/generate"
	"easel/internal/logging"
	"easel/internal/queue"
)

// Daemon coordinates the queue engine and HTTP API, and enforces
// single-instance execution via a file lock.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *queue.Store
	engine  *engine.Engine
	wrapper *generate.Service
	api     *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	QueueDBPath  string
	LockFilePath string
	Engine       engine.Snapshot
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, eng *engine.Engine, wrapper *generate.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || eng == nil || wrapper == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, engine, wrapper, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "easeld.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		engine:   eng,
		wrapper:  wrapper,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	srv, err := newAPIServer(cfg, d, d.logger)
	if err != nil {
		return nil, err
	}
	d.api = srv
	return d, nil
}

// Start acquires the daemon lock, reconciles persisted queue state, launches
// the engine, and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another easel daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.engine.RestoreOnLoad(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("restore queue: %w", err)
	}
	d.engine.Start(runCtx)

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.engine.Close()
			cancel()
			_ = d.lock.Unlock()
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("easel daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.api != nil {
		d.api.stop()
	}
	d.engine.Close()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("easel daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports current runtime information.
func (d *Daemon) Status(ctx context.Context) Status {
	snap, err := d.engine.Status(ctx)
	if err != nil {
		d.logger.Warn("failed to read engine status", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Engine:       snap,
	}
}
