// Package cleanup provides a background retention sweeper for the per-PDF
// memory store.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/config"
	"github.com/pranshu-dhingra/bfsi-qa-core/pkg/memory"
)

// Service periodically prunes memory entries older than the configured
// retention window from every memory file on disk. All operations are
// idempotent and safe to run repeatedly.
type Service struct {
	config *config.Retention
	store  *memory.Store

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service over store, governed by cfg.
func NewService(cfg *config.Retention, store *memory.Store) *Service {
	return &Service{config: cfg, store: store}
}

// Start launches the background sweep loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started",
		"max_entry_age", s.config.MaxEntryAge,
		"sweep_interval", s.config.SweepInterval)
}

// Stop signals the sweep loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll()

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll()
		}
	}
}

// runAll sweeps every memory file on disk, removing entries older than the
// retention window.
func (s *Service) runAll() {
	cutoff := time.Now().Add(-s.config.MaxEntryAge).Unix()

	total := 0
	for _, file := range s.store.ListAll() {
		removed, err := s.store.PruneFile(file, cutoff)
		if err != nil {
			slog.Error("retention: prune failed", "file", file, "error", err)
			continue
		}
		total += removed
	}

	if total > 0 {
		slog.Info("retention: pruned stale memory entries", "count", total)
	}
}
