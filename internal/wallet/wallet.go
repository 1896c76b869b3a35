// Package wallet is the account/network side of the provider: which
// accounts the wallet exposes, which network it is on, and notifications
// when the account selection changes.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alfredjeanlab/tix/internal/events"
	"github.com/alfredjeanlab/tix/internal/model"
)

// Provider exposes the wallet's accounts and the network it is connected to.
type Provider interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	NetworkID(ctx context.Context) (uint64, error)
}

// RPCProvider is a Provider backed by a node or wallet JSON-RPC endpoint.
type RPCProvider struct {
	endpoint string
	rpc      *rpc.Client
	eth      *ethclient.Client
}

// Compile-time check that RPCProvider implements Provider.
var _ Provider = (*RPCProvider)(nil)

// Dial connects to the JSON-RPC endpoint at url. An empty url yields a
// *model.ConnectionError wrapping model.ErrNoProvider.
func Dial(ctx context.Context, url string) (*RPCProvider, error) {
	if url == "" {
		return nil, &model.ConnectionError{Err: model.ErrNoProvider}
	}
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, &model.ConnectionError{Endpoint: url, Err: err}
	}
	return &RPCProvider{endpoint: url, rpc: rc, eth: ethclient.NewClient(rc)}, nil
}

// Accounts returns the accounts the wallet exposes, active account first.
func (p *RPCProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.rpc.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, &model.ConnectionError{Endpoint: p.endpoint, Err: fmt.Errorf("requesting accounts: %w", err)}
	}
	return accounts, nil
}

// NetworkID returns the provider's network identifier (net_version).
func (p *RPCProvider) NetworkID(ctx context.Context) (uint64, error) {
	id, err := p.eth.NetworkID(ctx)
	if err != nil {
		return 0, &model.ConnectionError{Endpoint: p.endpoint, Err: fmt.Errorf("reading network id: %w", err)}
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("network id %s out of range", id)
	}
	return id.Uint64(), nil
}

// Client returns the underlying RPC client, shared with ledger handles.
func (p *RPCProvider) Client() *rpc.Client { return p.rpc }

// Endpoint returns the URL the provider was dialed with.
func (p *RPCProvider) Endpoint() string { return p.endpoint }

func (p *RPCProvider) Close() {
	p.rpc.Close()
}

// Notifier delivers account-change notifications. Each value on the
// returned channel is the complete new account list. The cancel function
// stops delivery and closes the channel.
type Notifier interface {
	Subscribe() (<-chan []common.Address, func(), error)
}

// NATSNotifier decodes AccountsChanged payloads from an events.Subscriber.
type NATSNotifier struct {
	sub    events.Subscriber
	topic  string
	logger *slog.Logger
}

// Compile-time check that NATSNotifier implements Notifier.
var _ Notifier = (*NATSNotifier)(nil)

// NewNATSNotifier listens on events.TopicAccountsChanged.
func NewNATSNotifier(sub events.Subscriber, logger *slog.Logger) *NATSNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSNotifier{sub: sub, topic: events.TopicAccountsChanged, logger: logger}
}

func (n *NATSNotifier) Subscribe() (<-chan []common.Address, func(), error) {
	raw, cancelRaw, err := n.sub.Subscribe(n.topic)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan []common.Address, 8)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		for data := range raw {
			accounts, err := DecodeAccountsChanged(data)
			if err != nil {
				n.logger.Warn("dropping malformed account notification", "err", err)
				continue
			}
			select {
			case out <- accounts:
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			cancelRaw()
			wg.Wait()
		})
	}
	return out, cancel, nil
}

// DecodeAccountsChanged parses an events.AccountsChanged payload.
func DecodeAccountsChanged(data []byte) ([]common.Address, error) {
	var msg struct {
		Accounts *[]string `json:"accounts"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decoding account notification: %w", err)
	}
	if msg.Accounts == nil {
		return nil, errors.New("decoding account notification: missing accounts")
	}
	out := make([]common.Address, 0, len(*msg.Accounts))
	for _, s := range *msg.Accounts {
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("decoding account notification: invalid address %q", s)
		}
		out = append(out, common.HexToAddress(s))
	}
	return out, nil
}
