// Package events carries tix notifications over NATS: wallet account
// changes in, cache and action outcomes out.
package events

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event topic constants
const (
	// Delivered by the wallet bridge; consumed by the session.
	TopicAccountsChanged = "tix.wallet.accounts_changed"

	// Emitted by the sync scheduler after each successful resync.
	TopicCacheSynced = "tix.cache.synced"

	// Emitted by the action submitter.
	TopicActionSubmitted = "tix.action.submitted"
	TopicActionFailed    = "tix.action.failed"

	// TopicAll matches every tix subject.
	TopicAll = "tix.>"
)

// AccountsChanged is the wallet's account-change notification. The first
// entry is the active account; an empty list means none.
type AccountsChanged struct {
	Accounts []common.Address `json:"accounts"`
}

type CacheSynced struct {
	NetworkID  uint64         `json:"network_id"`
	Contract   common.Address `json:"contract"`
	Account    common.Address `json:"account"`
	Generation uint64         `json:"generation"`
	Events     int            `json:"events"`
	Holdings   int            `json:"holdings"`
	SyncedAt   time.Time      `json:"synced_at"`
}

type ActionSubmitted struct {
	ActionID string         `json:"action_id"`
	Method   string         `json:"method"`
	Account  common.Address `json:"account"`
	TxHash   common.Hash    `json:"tx_hash"`
	Block    uint64         `json:"block"`
}

type ActionFailed struct {
	ActionID string         `json:"action_id"`
	Method   string         `json:"method"`
	Account  common.Address `json:"account"`
	TxHash   *common.Hash   `json:"tx_hash,omitempty"`
	Error    string         `json:"error"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subscriber delivers raw payloads for a subject. The wallet bridge uses it
// to receive AccountsChanged notifications.
type Subscriber interface {
	// Subscribe returns a channel of payloads for topic and a cancel func
	// that unsubscribes and closes the channel. Cancel is idempotent.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}

// NoopPublisher drops every event. It is the default when no NATS URL is
// configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, topic string, event any) error {
	return ctx.Err()
}

func (NoopPublisher) Close() error { return nil }
