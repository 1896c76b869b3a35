package server

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/alfredjeanlab/tix/internal/ledger/ledgertest"
	"github.com/alfredjeanlab/tix/internal/session"
	tixsync "github.com/alfredjeanlab/tix/internal/sync"
)

// startHealthServer serves h on a loopback listener and returns a connected client.
func startHealthServer(t *testing.T, h *Health) healthpb.HealthClient {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := NewGRPCServer(h)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func readyState() session.State {
	return session.State{
		Account:    common.HexToAddress("0x0b0b"),
		HasAccount: true,
		NetworkID:  5,
		Ledger:     ledgertest.New(),
		Generation: 1,
	}
}

func TestHealth_StartsNotServing(t *testing.T) {
	client := startHealthServer(t, NewHealth(nil))

	for _, svc := range []string{"", SyncService} {
		if got := check(t, client, svc); got != healthpb.HealthCheckResponse_NOT_SERVING {
			t.Errorf("service %q = %v, want NOT_SERVING", svc, got)
		}
	}
}

func TestHealth_ObserveSession(t *testing.T) {
	h := NewHealth(nil)
	client := startHealthServer(t, h)

	h.ObserveSession(readyState())
	if got := check(t, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("after ready session: %v, want SERVING", got)
	}

	h.ObserveSession(session.State{NetworkID: 5, Ledger: ledgertest.New(), Generation: 2})
	if got := check(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("after account removed: %v, want NOT_SERVING", got)
	}
}

func TestHealth_ObserveSync(t *testing.T) {
	h := NewHealth(nil)
	client := startHealthServer(t, h)

	h.ObserveSync(tixsync.Outcome{At: time.Now()})
	if got := check(t, client, SyncService); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("after successful sync: %v, want SERVING", got)
	}
	if err := h.LastSyncError(); err != nil {
		t.Fatalf("LastSyncError = %v, want nil", err)
	}

	syncErr := errors.New("node unreachable")
	h.ObserveSync(tixsync.Outcome{Err: syncErr, At: time.Now()})
	if got := check(t, client, SyncService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("after failed sync: %v, want NOT_SERVING", got)
	}
	if !errors.Is(h.LastSyncError(), syncErr) {
		t.Fatalf("LastSyncError = %v, want %v", h.LastSyncError(), syncErr)
	}
}

func TestHealth_ShutdownIgnoresLaterUpdates(t *testing.T) {
	h := NewHealth(nil)
	client := startHealthServer(t, h)

	h.ObserveSession(readyState())
	h.Shutdown()
	h.ObserveSession(readyState())
	h.ObserveSync(tixsync.Outcome{})

	for _, svc := range []string{"", SyncService} {
		if got := check(t, client, svc); got != healthpb.HealthCheckResponse_NOT_SERVING {
			t.Errorf("service %q = %v, want NOT_SERVING", svc, got)
		}
	}
}
