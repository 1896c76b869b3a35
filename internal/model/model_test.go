package model

import (
	"errors"
	"io"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestErrorsUnwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	for _, tc := range []struct {
		name string
		err  error
		want string
	}{
		{"Connection", &ConnectionError{Endpoint: "http://node:8545", Err: cause}, "connecting to provider http://node:8545"},
		{"ConnectionNoEndpoint", &ConnectionError{Err: ErrNoProvider}, "connecting to provider: no wallet provider"},
		{"SyncNextID", &SyncError{Collection: "events", Index: -1, Err: cause}, "sync events: "},
		{"SyncIndex", &SyncError{Collection: "holdings", Index: 3, Err: cause}, "sync holdings[3]: "},
		{"TxNoHash", &TransactionError{Method: "buyTicket", Err: cause}, "buyTicket: "},
		{"TxHash", &TransactionError{Method: "buyTicket", TxHash: common.HexToHash("0x01"), Err: cause}, "buyTicket (tx 0x0000"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if !strings.Contains(tc.err.Error(), tc.want) {
				t.Errorf("Error() = %q, want it to contain %q", tc.err.Error(), tc.want)
			}
			if tc.name == "ConnectionNoEndpoint" {
				if !errors.Is(tc.err, ErrNoProvider) {
					t.Error("errors.Is(err, ErrNoProvider) = false")
				}
				return
			}
			if !errors.Is(tc.err, cause) {
				t.Errorf("errors.Is(%T, cause) = false", tc.err)
			}
		})
	}
}

func TestNoDeploymentError(t *testing.T) {
	var err error = &NoDeploymentError{NetworkID: 3}
	var nd *NoDeploymentError
	if !errors.As(err, &nd) || nd.NetworkID != 3 {
		t.Fatalf("errors.As failed for %v", err)
	}
	if err.Error() != "no contract deployment for network 3" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestEventClone(t *testing.T) {
	ev := Event{ID: 1, Name: "gig", Price: big.NewInt(100), TicketsRemaining: big.NewInt(5), TicketsTotal: big.NewInt(5)}
	cp := ev.Clone()
	cp.Price.SetInt64(1)
	cp.TicketsRemaining.SetInt64(0)
	if ev.Price.Int64() != 100 || ev.TicketsRemaining.Int64() != 5 {
		t.Fatalf("Clone shares big.Int values with the original: %+v", ev)
	}

	var empty Event
	if got := empty.Clone(); got.Price != nil {
		t.Errorf("Clone of nil price = %v, want nil", got.Price)
	}
}

func TestSnapshotHoldingFor(t *testing.T) {
	snap := Snapshot{Holdings: []Holding{
		{EventID: 0, Quantity: big.NewInt(0)},
		{EventID: 1, Quantity: big.NewInt(2)},
	}}
	h, ok := snap.HoldingFor(1)
	if !ok || h.Quantity.Int64() != 2 {
		t.Errorf("HoldingFor(1) = %+v, %v", h, ok)
	}
	if _, ok := snap.HoldingFor(2); ok {
		t.Error("HoldingFor(2) ok = true, want false")
	}
}
