// Package client queries a running `tix serve` over its gRPC health service.
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Services are the health services a tix server reports, overall first.
var Services = []string{"", "tix.sync"}

// ServiceStatus is the serving status of one health service.
type ServiceStatus struct {
	Service string `json:"service"`
	Status  string `json:"status"`
}

// Serving reports whether the service answered SERVING.
func (s ServiceStatus) Serving() bool {
	return s.Status == healthpb.HealthCheckResponse_SERVING.String()
}

// HealthClient is a gRPC health client for a tix server.
type HealthClient struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}

// NewHealthClient connects to the given gRPC address and returns a client.
func NewHealthClient(addr string) (*HealthClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &HealthClient{
		conn:   conn,
		client: healthpb.NewHealthClient(conn),
	}, nil
}

func (c *HealthClient) Close() error {
	return c.conn.Close()
}

// Check returns the status of one service. An unknown service is an error.
func (c *HealthClient) Check(ctx context.Context, service string) (ServiceStatus, error) {
	resp, err := c.client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return ServiceStatus{}, fmt.Errorf("checking %q: %w", displayName(service), err)
	}
	return ServiceStatus{Service: displayName(service), Status: resp.GetStatus().String()}, nil
}

// CheckAll checks every service in Services, stopping at the first error.
func (c *HealthClient) CheckAll(ctx context.Context) ([]ServiceStatus, error) {
	out := make([]ServiceStatus, 0, len(Services))
	for _, svc := range Services {
		st, err := c.Check(ctx, svc)
		if err != nil {
			return out, err
		}
		out = append(out, st)
	}
	return out, nil
}

func displayName(service string) string {
	if service == "" {
		return "session"
	}
	return service
}
