// Package sync keeps the local view of the ledger current: a reader that
// rebuilds the cache, a scheduler that drives it, and destinations the
// resulting snapshots are written to.
package sync

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/tix/internal/events"
	"github.com/alfredjeanlab/tix/internal/model"
)

// Destination receives every snapshot produced by a successful resync.
type Destination interface {
	Write(ctx context.Context, snap model.Snapshot) error
}

// NetworkChecker rebinds the ledger when the provider switched networks.
type NetworkChecker interface {
	CheckNetwork(ctx context.Context) (bool, error)
}

// Outcome reports one scheduled resync.
type Outcome struct {
	Snapshot model.Snapshot
	Err      error
	At       time.Time
}

// Scheduler runs resyncs at startup, on every tick, and whenever Trigger is
// called, then fans the snapshot out to the publisher and destinations.
type Scheduler struct {
	reader       *Reader
	network      NetworkChecker
	publisher    events.Publisher
	destinations []Destination
	interval     time.Duration
	onSync       func(Outcome)
	logger       *slog.Logger

	trigger chan struct{}
	mu      sync.Mutex // serializes resync passes
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithDestinations adds snapshot destinations.
func WithDestinations(dests ...Destination) SchedulerOption {
	return func(s *Scheduler) { s.destinations = append(s.destinations, dests...) }
}

// WithPublisher publishes events.TopicCacheSynced after each resync.
func WithPublisher(p events.Publisher) SchedulerOption {
	return func(s *Scheduler) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithNetworkChecker checks for a network switch before each resync.
func WithNetworkChecker(nc NetworkChecker) SchedulerOption {
	return func(s *Scheduler) { s.network = nc }
}

// WithOnSync registers a hook called after every resync attempt.
func WithOnSync(fn func(Outcome)) SchedulerOption {
	return func(s *Scheduler) { s.onSync = fn }
}

// NewScheduler creates a scheduler for reader. An interval of zero disables
// periodic resyncs; Trigger still works.
func NewScheduler(reader *Reader, interval time.Duration, logger *slog.Logger, opts ...SchedulerOption) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		reader:    reader,
		publisher: &events.NoopPublisher{},
		interval:  interval,
		logger:    logger,
		trigger:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the resync loop. It runs an initial resync immediately.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current resync (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Trigger requests a resync as soon as the loop is free. Requests made
// while one is already pending coalesce.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// SyncNow runs one resync pass on the caller's goroutine.
func (s *Scheduler) SyncNow(ctx context.Context) error {
	return s.syncOnce(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	s.syncOnce(ctx) //nolint:errcheck // logged and reported through onSync

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.syncOnce(ctx) //nolint:errcheck
		case <-s.trigger:
			s.syncOnce(ctx) //nolint:errcheck
		}
	}
}

func (s *Scheduler) syncOnce(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.network != nil {
		if _, err := s.network.CheckNetwork(ctx); err != nil {
			s.logger.Warn("network check failed", "err", err)
		}
	}

	err := s.reader.Resync(ctx)
	out := Outcome{Err: err, At: time.Now()}
	switch {
	case errors.Is(err, model.ErrNotReady):
		s.logger.Debug("skipping resync, session not ready")
	case err != nil:
		s.logger.Error("resync failed", "err", err)
	default:
		out.Snapshot = s.reader.Cache().Snapshot()
		s.fanOut(ctx, out.Snapshot)
	}
	if s.onSync != nil {
		s.onSync(out)
	}
	return err
}

func (s *Scheduler) fanOut(ctx context.Context, snap model.Snapshot) {
	if err := s.publisher.Publish(ctx, events.TopicCacheSynced, events.CacheSynced{
		NetworkID:  snap.NetworkID,
		Contract:   snap.Contract,
		Account:    snap.Account,
		Generation: snap.Generation,
		Events:     len(snap.Events),
		Holdings:   len(snap.Holdings),
		SyncedAt:   snap.HoldingsSyncedAt,
	}); err != nil {
		s.logger.Warn("publishing sync notification failed", "err", err)
	}

	for i, dest := range s.destinations {
		if err := dest.Write(ctx, snap); err != nil {
			s.logger.Error("snapshot destination write failed", "destination", i, "err", err)
		}
	}

	s.logger.Info("resync completed",
		"events", len(snap.Events), "holdings", len(snap.Holdings),
		"account", snap.Account.Hex(), "destinations", len(s.destinations))
}
