package model

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNoProvider means no wallet/provider endpoint is configured.
	ErrNoProvider = errors.New("no wallet provider available")

	// ErrNotReady is returned by reads and writes attempted before the
	// session has an account, a network and a bound ledger.
	ErrNotReady = errors.New("session not ready")

	// ErrSuperseded is returned when a resync kept observing session
	// changes (account switch or rebind) and gave up.
	ErrSuperseded = errors.New("resync superseded by session change")

	// ErrInvalidUint is wrapped by a TransactionError when an argument or
	// value is nil, negative or wider than 256 bits. Nothing is sent.
	ErrInvalidUint = errors.New("not a valid uint256")

	// ErrReverted is wrapped by a TransactionError when the ledger mined
	// the transaction but rejected it.
	ErrReverted = errors.New("transaction reverted")
)

// ConnectionError means the provider could not be reached. It blocks
// readiness.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("connecting to provider: %v", e.Err)
	}
	return fmt.Sprintf("connecting to provider %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// NoDeploymentError means the active network has no known contract address.
type NoDeploymentError struct {
	NetworkID uint64
}

func (e *NoDeploymentError) Error() string {
	return fmt.Sprintf("no contract deployment for network %d", e.NetworkID)
}

// SyncError reports a failed read during a resync. Index is the event ID
// whose read failed, or -1 for the nextId read.
type SyncError struct {
	Collection string // "events" or "holdings"
	Index      int64
	Err        error
}

func (e *SyncError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("sync %s: %v", e.Collection, e.Err)
	}
	return fmt.Sprintf("sync %s[%d]: %v", e.Collection, e.Index, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// TransactionError reports a write the ledger refused, either at submission
// or when the mined receipt shows a revert. TxHash is zero when the
// transaction never reached the ledger.
type TransactionError struct {
	Method string
	TxHash common.Hash
	Err    error
}

func (e *TransactionError) Error() string {
	if e.TxHash == (common.Hash{}) {
		return fmt.Sprintf("%s: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("%s (tx %s): %v", e.Method, e.TxHash.Hex(), e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }
