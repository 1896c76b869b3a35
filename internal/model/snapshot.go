package model

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is a consistent view of the locally cached ledger state.
// Events is exactly [0, nextId) as of EventsSyncedAt; Holdings is
// positioned by event ID and scoped to Account.
type Snapshot struct {
	NetworkID        uint64         `json:"network_id"`
	Contract         common.Address `json:"contract"`
	Account          common.Address `json:"account"`
	Generation       uint64         `json:"generation"`
	Events           []Event        `json:"events"`
	Holdings         []Holding      `json:"holdings"`
	EventsSyncedAt   time.Time      `json:"events_synced_at"`
	HoldingsSyncedAt time.Time      `json:"holdings_synced_at"`
}

// HoldingFor returns the cached holding for eventID, if one was synced.
func (s *Snapshot) HoldingFor(eventID uint64) (Holding, bool) {
	if eventID >= uint64(len(s.Holdings)) {
		return Holding{}, false
	}
	return s.Holdings[eventID], true
}
