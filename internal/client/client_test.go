package client

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// startHealth serves a health server on loopback and returns it with its address.
func startHealth(t *testing.T) (*health.Server, string) {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return hs, lis.Addr().String()
}

func newClient(t *testing.T, addr string) *HealthClient {
	t.Helper()
	c, err := NewHealthClient(addr)
	if err != nil {
		t.Fatalf("NewHealthClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCheckAll(t *testing.T) {
	hs, addr := startHealth(t)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("tix.sync", healthpb.HealthCheckResponse_NOT_SERVING)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := newClient(t, addr).CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	want := []ServiceStatus{
		{Service: "session", Status: "SERVING"},
		{Service: "tix.sync", Status: "NOT_SERVING"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d statuses, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("status %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if !got[0].Serving() || got[1].Serving() {
		t.Errorf("Serving() = %v, %v", got[0].Serving(), got[1].Serving())
	}
}

func TestCheck_UnknownService(t *testing.T) {
	_, addr := startHealth(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := newClient(t, addr).Check(ctx, "tix.sync")
	if status.Code(err) != codes.NotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}
}
