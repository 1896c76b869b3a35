package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alfredjeanlab/tix/internal/actions"
	"github.com/alfredjeanlab/tix/internal/events"
	"github.com/alfredjeanlab/tix/internal/ledger"
	"github.com/alfredjeanlab/tix/internal/model"
	"github.com/alfredjeanlab/tix/internal/session"
	tixsync "github.com/alfredjeanlab/tix/internal/sync"
	"github.com/alfredjeanlab/tix/internal/wallet"
)

// app holds the components every ledger command runs on.
type app struct {
	provider   *wallet.RPCProvider
	publisher  events.Publisher
	subscriber *events.NATSSubscriber
	session    *session.Session
	reader     *tixsync.Reader
	submitter  *actions.Submitter
}

// openApp connects to the provider and initializes the session. A network
// without a deployment is not fatal here; the returned app reports it
// through session readiness and initErr.
func openApp(ctx context.Context) (a *app, initErr error, err error) {
	provider, err := wallet.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, nil, err
	}
	a = &app{provider: provider, publisher: &events.NoopPublisher{}}

	binder, err := newBinder(provider)
	if err != nil {
		a.close()
		return nil, nil, err
	}

	sessOpts := []session.Option{session.WithLogger(logger)}
	if cfg.NATSURL != "" {
		pub, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			a.close()
			return nil, nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		a.publisher = pub

		sub, err := events.NewNATSSubscriber(cfg.NATSURL)
		if err != nil {
			a.close()
			return nil, nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		a.subscriber = sub
		sessOpts = append(sessOpts, session.WithNotifier(wallet.NewNATSNotifier(sub, logger)))
	}

	a.session = session.New(provider, binder, sessOpts...)
	a.reader = tixsync.NewReader(a.session, tixsync.NewCache(),
		tixsync.WithConcurrency(cfg.ReadConcurrency),
		tixsync.WithLogger(logger),
	)
	a.submitter = actions.NewSubmitter(a.session, a.reader,
		actions.WithPublisher(a.publisher),
		actions.WithLogger(logger),
	)

	initErr = a.session.Initialize(ctx)
	var noDeploy *model.NoDeploymentError
	if initErr != nil && !errors.As(initErr, &noDeploy) {
		a.close()
		return nil, nil, initErr
	}
	return a, initErr, nil
}

// openReadyApp is openApp for commands that need a bound ledger and an
// active account.
func openReadyApp(ctx context.Context) (*app, error) {
	a, initErr, err := openApp(ctx)
	if err != nil {
		return nil, err
	}
	if initErr != nil {
		a.close()
		return nil, initErr
	}
	if !a.session.IsReady() {
		a.close()
		return nil, fmt.Errorf("no active account: %w", model.ErrNotReady)
	}
	return a, nil
}

func (a *app) close() {
	if a.session != nil {
		a.session.Teardown()
	}
	if a.subscriber != nil {
		_ = a.subscriber.Close()
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			logger.Warn("closing publisher", "err", err)
		}
	}
	if a.provider != nil {
		a.provider.Close()
	}
}

// newBinder binds ledgers over the provider's RPC client. A configured
// contract address is used on every network; otherwise the address comes
// from the deployment registry.
func newBinder(provider *wallet.RPCProvider) (ledger.Binder, error) {
	opts := []ledger.Option{
		ledger.WithReceiptPoll(cfg.ReceiptPoll),
		ledger.WithLogger(logger),
	}
	if cfg.ContractAddress != (common.Address{}) {
		addr := cfg.ContractAddress
		return ledger.BinderFunc(func(uint64) (ledger.Ledger, error) {
			return ledger.NewEthLedger(provider.Client(), addr, opts...), nil
		}), nil
	}

	deployments, err := loadDeployments()
	if err != nil {
		return nil, err
	}
	return ledger.NewBinder(provider.Client(), deployments, opts...), nil
}

// loadDeployments builds the deployment registry from the configured
// artifact and TOML file. Entries in the TOML file win.
func loadDeployments() (ledger.Deployments, error) {
	deployments := ledger.Deployments{}

	if cfg.ArtifactPath != "" {
		art, err := ledger.LoadArtifact(cfg.ArtifactPath)
		if err != nil {
			return nil, fmt.Errorf("loading artifact: %w", err)
		}
		d, err := art.Deployments()
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", cfg.ArtifactPath, err)
		}
		deployments = deployments.Merge(d)
	}

	if cfg.DeploymentsPath != "" {
		d, err := ledger.LoadDeploymentsFile(cfg.DeploymentsPath)
		if err != nil {
			return nil, err
		}
		deployments = deployments.Merge(d)
	}
	return deployments, nil
}
