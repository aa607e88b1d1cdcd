package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hackathon-leaderboard/internal/config"
)

// StandingsRepublisher writes the authoritative standings to the mirror
type StandingsRepublisher interface {
	RepublishStandings(ctx context.Context) error
}

// MirrorWorker periodically republishes the full standings so the mirror
// recovers from missed write-through updates (for example after a Redis
// restart).
type MirrorWorker struct {
	board   StandingsRepublisher
	config  *config.MirrorConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewMirrorWorker creates a new mirror worker
func NewMirrorWorker(board StandingsRepublisher, cfg *config.MirrorConfig, logger *slog.Logger) *MirrorWorker {
	return &MirrorWorker{
		board:  board,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start publishes once and then begins the background loop
func (w *MirrorWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("mirror worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background loop
func (w *MirrorWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("mirror worker stopped")
	return nil
}

// run is the main worker loop
func (w *MirrorWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce publishes the current standings
func (w *MirrorWorker) RunOnce(ctx context.Context) error {
	startTime := time.Now()

	if err := w.board.RepublishStandings(ctx); err != nil {
		w.logger.Error("failed to republish standings", "error", err)
		return err
	}

	w.logger.Debug("standings republished", "duration", time.Since(startTime))
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *MirrorWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
