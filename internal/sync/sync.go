package sync

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jarvis-tasks/jarvis/internal/store"
)

const maxParallelWrites = 4

// Destination receives each board export.
type Destination interface {
	Write(ctx context.Context, data []byte) error
	// Name identifies the destination in logs.
	Name() string
}

// Scheduler exports the board on a fixed interval and hands the payload to
// every destination. A failing destination does not stop the others.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start runs one sync right away and then one per tick, until Stop or until
// parent is cancelled.
func (s *Scheduler) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the loop and waits for an in-flight sync.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.SyncOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}

// SyncOnce exports once and writes the payload to every destination in
// parallel. It returns the number of destinations that failed.
func (s *Scheduler) SyncOnce(ctx context.Context) int {
	start := time.Now()
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		s.logger.Error("sync export failed", "err", err)
		return len(s.destinations)
	}
	data := buf.Bytes()

	// A plain Group: one destination failing must not cancel the rest.
	var (
		g      errgroup.Group
		failed atomic.Int32
	)
	g.SetLimit(maxParallelWrites)
	for _, dest := range s.destinations {
		g.Go(func() error {
			if err := dest.Write(ctx, data); err != nil {
				failed.Add(1)
				s.logger.Error("sync destination write failed", "destination", dest.Name(), "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(failed.Load())
	s.logger.Info("sync completed",
		"destinations", len(s.destinations),
		"failed", n,
		"bytes", len(data),
		"duration", time.Since(start))
	return n
}
