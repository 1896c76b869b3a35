// Package store persists the last successfully synced ledger snapshot so it
// can be read back without reaching the ledger.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredjeanlab/tix/internal/model"
)

// ErrNotFound is returned when nothing was mirrored for the requested scope.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for mirrored ledger state. Events
// are scoped to (network, contract); holdings additionally to an owner.
type Store interface {
	ReplaceEvents(ctx context.Context, networkID uint64, contract common.Address, events []model.Event, syncedAt time.Time) error
	ListEvents(ctx context.Context, networkID uint64, contract common.Address) ([]model.Event, error)

	ReplaceHoldings(ctx context.Context, networkID uint64, contract, owner common.Address, holdings []model.Holding, syncedAt time.Time) error
	ListHoldings(ctx context.Context, networkID uint64, contract, owner common.Address) ([]model.Holding, error)

	// SyncTimes returns when events and holdings were last mirrored for the
	// scope, or ErrNotFound.
	SyncTimes(ctx context.Context, networkID uint64, contract, owner common.Address) (events, holdings time.Time, err error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}

// WriteSnapshot replaces the mirrored events and holdings with snap in one
// transaction.
func WriteSnapshot(ctx context.Context, s Store, snap model.Snapshot) error {
	return s.RunInTransaction(ctx, func(tx Store) error {
		if err := tx.ReplaceEvents(ctx, snap.NetworkID, snap.Contract, snap.Events, snap.EventsSyncedAt); err != nil {
			return fmt.Errorf("replace events: %w", err)
		}
		if err := tx.ReplaceHoldings(ctx, snap.NetworkID, snap.Contract, snap.Account, snap.Holdings, snap.HoldingsSyncedAt); err != nil {
			return fmt.Errorf("replace holdings: %w", err)
		}
		return nil
	})
}

// LoadSnapshot reads back the mirrored snapshot for one scope.
func LoadSnapshot(ctx context.Context, s Store, networkID uint64, contract, owner common.Address) (model.Snapshot, error) {
	eventsAt, holdingsAt, err := s.SyncTimes(ctx, networkID, contract, owner)
	if err != nil {
		return model.Snapshot{}, err
	}
	events, err := s.ListEvents(ctx, networkID, contract)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("list events: %w", err)
	}
	holdings, err := s.ListHoldings(ctx, networkID, contract, owner)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("list holdings: %w", err)
	}
	return model.Snapshot{
		NetworkID:        networkID,
		Contract:         contract,
		Account:          owner,
		Events:           events,
		Holdings:         holdings,
		EventsSyncedAt:   eventsAt,
		HoldingsSyncedAt: holdingsAt,
	}, nil
}
