package sync

import (
	"sync"
	"time"

	"github.com/alfredjeanlab/tix/internal/model"
	"github.com/alfredjeanlab/tix/internal/session"
)

// Cache holds the last successfully synced events and holdings. Each
// collection is replaced wholesale; a partial result never reaches it.
type Cache struct {
	mu          sync.RWMutex
	snap        model.Snapshot
	eventsSeq   uint64
	holdingsSeq uint64
}

func NewCache() *Cache {
	return &Cache{}
}

// Snapshot returns the current cache contents. The slices are shared with
// the cache and must not be modified.
func (c *Cache) Snapshot() model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Events returns the cached events, positioned by ID.
func (c *Cache) Events() []model.Event {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Events
}

// Holdings returns the cached holdings, positioned by event ID.
func (c *Cache) Holdings() []model.Holding {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Holdings
}

// replaceEvents installs events read under st by the resync numbered seq.
// A result from an older resync than the one already installed is dropped.
func (c *Cache) replaceEvents(seq uint64, st session.State, events []model.Event, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.eventsSeq {
		return false
	}
	c.eventsSeq = seq
	c.snap.NetworkID = st.NetworkID
	c.snap.Contract = st.Ledger.Address()
	c.snap.Generation = st.Generation
	c.snap.Events = events
	c.snap.EventsSyncedAt = at
	return true
}

// replaceHoldings installs holdings read for st.Account by the resync
// numbered seq.
func (c *Cache) replaceHoldings(seq uint64, st session.State, holdings []model.Holding, at time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq <= c.holdingsSeq {
		return false
	}
	c.holdingsSeq = seq
	c.snap.Account = st.Account
	c.snap.Generation = st.Generation
	c.snap.Holdings = holdings
	c.snap.HoldingsSyncedAt = at
	return true
}
