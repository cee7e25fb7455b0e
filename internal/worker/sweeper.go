package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically runs ProcessPending until stopped.
type Sweeper struct {
	worker   *SyncWorker
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSweeper(w *SyncWorker, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{worker: w, interval: interval}
}

// Start begins the sweep loop. Returns an error if already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.runLoop(ctx, s.stopCh, s.doneCh)

	slog.InfoContext(ctx, "Pending sweep started", "interval", s.interval)
	return nil
}

// Stop signals the loop and waits for the current pass to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Pending sweep stopped")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Pending sweep stop timed out")
		return ctx.Err()
	}
}

func (s *Sweeper) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.worker.ProcessPending(ctx); err != nil {
				slog.ErrorContext(ctx, "Pending sweep failed", "error", err)
			}
		}
	}
}
