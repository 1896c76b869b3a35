// Package session holds the connection to the wallet and the ledger handle
// bound for the wallet's network. It is the single source of "who is
// acting, on which network, against which contract" for the rest of tix.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredjeanlab/tix/internal/ledger"
	"github.com/alfredjeanlab/tix/internal/model"
	"github.com/alfredjeanlab/tix/internal/wallet"
)

// State is a consistent copy of the session fields.
type State struct {
	Account    common.Address
	HasAccount bool
	NetworkID  uint64
	Ledger     ledger.Ledger

	// Generation increases every time the account or the bound ledger
	// changes. Work started under one generation is stale under another.
	Generation uint64
}

// Ready reports whether reads and writes may be attempted.
func (s State) Ready() bool {
	return s.HasAccount && s.Ledger != nil
}

// Session tracks the active account and bound ledger. It is safe for
// concurrent use.
type Session struct {
	provider wallet.Provider
	binder   ledger.Binder
	notifier wallet.Notifier
	logger   *slog.Logger

	mu        sync.RWMutex
	state     State
	listeners []func(State)

	subMu     sync.Mutex
	cancelSub func()
	wg        sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithNotifier subscribes the session to account-change notifications on
// the first successful Initialize.
func WithNotifier(n wallet.Notifier) Option {
	return func(s *Session) { s.notifier = n }
}

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a session. A nil provider is allowed; Initialize then fails
// with a ConnectionError.
func New(provider wallet.Provider, binder ledger.Binder, opts ...Option) *Session {
	s := &Session{
		provider: provider,
		binder:   binder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize requests the wallet's accounts, resolves the network and binds
// the ledger for it. A network without a deployment returns a
// *model.NoDeploymentError and leaves the session not ready; the account and
// network are still recorded.
func (s *Session) Initialize(ctx context.Context) error {
	if s.provider == nil {
		return &model.ConnectionError{Err: model.ErrNoProvider}
	}

	accounts, err := s.provider.Accounts(ctx)
	if err != nil {
		return asConnectionError(err)
	}
	networkID, err := s.provider.NetworkID(ctx)
	if err != nil {
		return asConnectionError(err)
	}
	l, bindErr := s.binder.Bind(networkID)
	if bindErr != nil {
		l = nil
	}

	s.mu.Lock()
	s.state.Account, s.state.HasAccount = firstAccount(accounts)
	s.state.NetworkID = networkID
	s.state.Ledger = l
	s.state.Generation++
	st, listeners := s.state, s.snapshotListeners()
	s.mu.Unlock()

	s.logger.Info("session initialized",
		"network", networkID, "account", st.Account.Hex(), "has_account", st.HasAccount,
		"ready", st.Ready(), "generation", st.Generation)
	notify(listeners, st)

	if err := s.subscribe(); err != nil {
		return err
	}
	return bindErr
}

// OnAccountsChanged replaces the active account with accounts[0], or clears
// it when accounts is empty.
func (s *Session) OnAccountsChanged(accounts []common.Address) {
	s.mu.Lock()
	s.state.Account, s.state.HasAccount = firstAccount(accounts)
	s.state.Generation++
	st, listeners := s.state, s.snapshotListeners()
	s.mu.Unlock()

	s.logger.Info("active account changed",
		"account", st.Account.Hex(), "has_account", st.HasAccount, "generation", st.Generation)
	notify(listeners, st)
}

// CheckNetwork re-reads the network ID and rebinds the ledger when it
// changed. It reports whether a rebind happened.
func (s *Session) CheckNetwork(ctx context.Context) (bool, error) {
	if s.provider == nil {
		return false, &model.ConnectionError{Err: model.ErrNoProvider}
	}
	networkID, err := s.provider.NetworkID(ctx)
	if err != nil {
		return false, asConnectionError(err)
	}

	s.mu.RLock()
	same := networkID == s.state.NetworkID
	s.mu.RUnlock()
	if same {
		return false, nil
	}

	l, bindErr := s.binder.Bind(networkID)
	if bindErr != nil {
		l = nil
	}

	s.mu.Lock()
	s.state.NetworkID = networkID
	s.state.Ledger = l
	s.state.Generation++
	st, listeners := s.state, s.snapshotListeners()
	s.mu.Unlock()

	s.logger.Info("network changed", "network", networkID, "ready", st.Ready(), "generation", st.Generation)
	notify(listeners, st)
	return true, bindErr
}

// IsReady reports whether the session has an account and a bound ledger.
func (s *Session) IsReady() bool {
	return s.State().Ready()
}

// State returns a copy of the current session fields.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Generation returns the current generation.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Generation
}

// OnChange registers fn to be called with the new state after every account
// or ledger change. fn runs on the goroutine that made the change and must
// not block.
func (s *Session) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Teardown cancels the account-change subscription and waits for its
// goroutine to exit. It is safe to call more than once.
func (s *Session) Teardown() {
	s.subMu.Lock()
	cancel := s.cancelSub
	s.cancelSub = nil
	s.subMu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// subscribe registers the standing account-change subscription once.
func (s *Session) subscribe() error {
	if s.notifier == nil {
		return nil
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.cancelSub != nil {
		return nil
	}

	ch, cancel, err := s.notifier.Subscribe()
	if err != nil {
		return &model.ConnectionError{Err: err}
	}
	s.cancelSub = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for accounts := range ch {
			s.OnAccountsChanged(accounts)
		}
		s.logger.Debug("account subscription ended")
	}()
	return nil
}

// snapshotListeners copies the listener list. Callers hold s.mu.
func (s *Session) snapshotListeners() []func(State) {
	return slices.Clone(s.listeners)
}

func notify(listeners []func(State), st State) {
	for _, fn := range listeners {
		fn(st)
	}
}

func firstAccount(accounts []common.Address) (common.Address, bool) {
	if len(accounts) == 0 {
		return common.Address{}, false
	}
	return accounts[0], true
}

func asConnectionError(err error) error {
	var connErr *model.ConnectionError
	if errors.As(err, &connErr) {
		return err
	}
	return &model.ConnectionError{Err: err}
}
