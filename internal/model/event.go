package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Event is one ticketed event as recorded by the ledger contract. IDs are
// assigned by the contract, start at zero and are dense, so an event's
// position in a synced collection equals its ID.
//
// Big-integer fields are shared between copies and must be treated as
// immutable once the event has been handed out by the cache.
type Event struct {
	ID               uint64         `json:"id"`
	Admin            common.Address `json:"admin"`
	Name             string         `json:"name"`
	Date             *big.Int       `json:"date"` // unix seconds (uint256); the event ends at this instant
	Price            *big.Int       `json:"price"`
	TicketsRemaining *big.Int       `json:"tickets_remaining"`
	TicketsTotal     *big.Int       `json:"tickets_total"`
}

// Clone returns a deep copy of e.
func (e Event) Clone() Event {
	e.Date = cloneInt(e.Date)
	e.Price = cloneInt(e.Price)
	e.TicketsRemaining = cloneInt(e.TicketsRemaining)
	e.TicketsTotal = cloneInt(e.TicketsTotal)
	return e
}

// Holding is the number of tickets an account owns for one event.
type Holding struct {
	EventID  uint64         `json:"event_id"`
	Owner    common.Address `json:"owner"`
	Quantity *big.Int       `json:"quantity"`
}

// Clone returns a deep copy of h.
func (h Holding) Clone() Holding {
	h.Quantity = cloneInt(h.Quantity)
	return h
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
