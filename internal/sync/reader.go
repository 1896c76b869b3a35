package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/tix/internal/ledger"
	"github.com/alfredjeanlab/tix/internal/model"
	"github.com/alfredjeanlab/tix/internal/session"
)

// StateSource supplies the session state a resync runs under.
type StateSource interface {
	State() session.State
}

// Reader rebuilds the cache from the ledger. Each resync reads the full
// [0, nextId) range; there is no incremental path.
type Reader struct {
	session     StateSource
	cache       *Cache
	concurrency int
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger

	seq atomic.Uint64
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithConcurrency bounds the number of reads in flight per collection.
func WithConcurrency(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithMaxAttempts bounds how many times a resync restarts after the session
// changed underneath it.
func WithMaxAttempts(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithClock sets the clock used to stamp sync times.
func WithClock(now func() time.Time) ReaderOption {
	return func(r *Reader) { r.now = now }
}

// WithLogger sets the reader logger.
func WithLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewReader(sess StateSource, cache *Cache, opts ...ReaderOption) *Reader {
	r := &Reader{
		session:     sess,
		cache:       cache,
		concurrency: 16,
		maxAttempts: 3,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cache returns the cache the reader fills.
func (r *Reader) Cache() *Cache { return r.cache }

// Resync refreshes events and then holdings.
func (r *Reader) Resync(ctx context.Context) error {
	return r.ResyncEvents(ctx)
}

// ResyncEvents re-reads every event and replaces the cached events, then
// runs ResyncHoldings. On failure the cache is left as it was and the error
// is a *model.SyncError (or model.ErrNotReady).
func (r *Reader) ResyncEvents(ctx context.Context) error {
	err := r.retry(ctx, "events", func(ctx context.Context, seq uint64, st session.State) error {
		events, err := readEvents(ctx, st.Ledger, r.concurrency)
		if err != nil {
			return err
		}
		if !r.current(st) {
			return model.ErrSuperseded
		}
		if r.cache.replaceEvents(seq, st, events, r.now()) {
			r.logger.Debug("events synced", "count", len(events), "generation", st.Generation)
		}
		return nil
	})
	if err != nil {
		return err
	}
	return r.ResyncHoldings(ctx)
}

// ResyncHoldings re-reads the active account's holding for every event and
// replaces the cached holdings. It reads nextId itself, so the count may
// differ from the cached events when events were created in between.
func (r *Reader) ResyncHoldings(ctx context.Context) error {
	return r.retry(ctx, "holdings", func(ctx context.Context, seq uint64, st session.State) error {
		holdings, err := readHoldings(ctx, st.Ledger, st.Account, r.concurrency)
		if err != nil {
			return err
		}
		if !r.current(st) {
			return model.ErrSuperseded
		}
		if r.cache.replaceHoldings(seq, st, holdings, r.now()) {
			r.logger.Debug("holdings synced", "count", len(holdings), "account", st.Account.Hex())
		}
		return nil
	})
}

// retry runs one resync pass under the current session state, restarting
// when the session generation moved while reads were in flight.
func (r *Reader) retry(ctx context.Context, collection string, pass func(context.Context, uint64, session.State) error) error {
	for attempt := 1; ; attempt++ {
		st := r.session.State()
		if !st.Ready() {
			return model.ErrNotReady
		}
		seq := r.seq.Add(1)
		// A pass returns model.ErrSuperseded bare to ask for a restart.
		err := pass(ctx, seq, st)
		if err != model.ErrSuperseded {
			return err
		}
		if attempt >= r.maxAttempts {
			return &model.SyncError{Collection: collection, Index: -1, Err: model.ErrSuperseded}
		}
		r.logger.Info("session changed during resync, restarting",
			"collection", collection, "attempt", attempt, "generation", st.Generation)
	}
}

func (r *Reader) current(st session.State) bool {
	return r.session.State().Generation == st.Generation
}

// checkCount refuses a nextId too large to hold in memory.
func checkCount(n uint64) error {
	if n > ledger.MaxEvents {
		return fmt.Errorf("%w: nextId %d", ledger.ErrTooManyEvents, n)
	}
	return nil
}

func readEvents(ctx context.Context, l ledger.Reader, limit int) ([]model.Event, error) {
	n, err := l.NextID(ctx)
	if err != nil {
		return nil, &model.SyncError{Collection: "events", Index: -1, Err: err}
	}
	if err := checkCount(n); err != nil {
		return nil, &model.SyncError{Collection: "events", Index: -1, Err: err}
	}

	out := make([]model.Event, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := uint64(0); i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			ev, err := l.GetEvent(gctx, i)
			if err != nil {
				return &model.SyncError{Collection: "events", Index: int64(i), Err: err}
			}
			if ev.ID != i {
				return &model.SyncError{Collection: "events", Index: int64(i),
					Err: fmt.Errorf("record has id %d", ev.ID)}
			}
			out[i] = *ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &model.SyncError{Collection: "events", Index: -1, Err: err}
	}
	return out, nil
}

func readHoldings(ctx context.Context, l ledger.Reader, owner common.Address, limit int) ([]model.Holding, error) {
	n, err := l.NextID(ctx)
	if err != nil {
		return nil, &model.SyncError{Collection: "holdings", Index: -1, Err: err}
	}
	if err := checkCount(n); err != nil {
		return nil, &model.SyncError{Collection: "holdings", Index: -1, Err: err}
	}

	out := make([]model.Holding, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := uint64(0); i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			h, err := l.GetHolding(gctx, owner, i)
			if err != nil {
				return &model.SyncError{Collection: "holdings", Index: int64(i), Err: err}
			}
			if h.EventID != i {
				return &model.SyncError{Collection: "holdings", Index: int64(i),
					Err: fmt.Errorf("record has event id %d", h.EventID)}
			}
			out[i] = *h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &model.SyncError{Collection: "holdings", Index: -1, Err: err}
	}
	return out, nil
}
