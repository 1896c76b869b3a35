// Package config loads tix settings from TIX_* environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Config struct {
	RPCURL  string // TIX_RPC_URL (default "http://localhost:8545")
	NATSURL string // TIX_NATS_URL (optional, empty = no notifications)

	// Deployment registry
	ArtifactPath    string         // TIX_ARTIFACT (Truffle build artifact)
	DeploymentsPath string         // TIX_DEPLOYMENTS (TOML [networks] table)
	ContractAddress common.Address // TIX_CONTRACT_ADDRESS (overrides the registry for every network)

	PollInterval    time.Duration // TIX_POLL_INTERVAL (default 15s; 0 = disabled)
	ReceiptPoll     time.Duration // TIX_RECEIPT_POLL (default 1s)
	ReadConcurrency int           // TIX_READ_CONCURRENCY (default 16)

	DatabaseURL string // TIX_DATABASE_URL (enables the Postgres mirror when set)

	// Snapshot export
	ExportS3Bucket   string // TIX_EXPORT_S3_BUCKET (enables S3 when set)
	ExportS3Endpoint string // TIX_EXPORT_S3_ENDPOINT (custom endpoint for MinIO)
	ExportS3Region   string // TIX_EXPORT_S3_REGION (default "us-east-1")
	ExportS3Key      string // TIX_EXPORT_S3_KEY (default "tix/snapshot.jsonl")

	HealthAddr string // TIX_HEALTH_ADDR (default ":9090")
}

func Load() (*Config, error) {
	c := &Config{
		RPCURL:           envOrDefault("TIX_RPC_URL", "http://localhost:8545"),
		NATSURL:          os.Getenv("TIX_NATS_URL"),
		ArtifactPath:     os.Getenv("TIX_ARTIFACT"),
		DeploymentsPath:  os.Getenv("TIX_DEPLOYMENTS"),
		DatabaseURL:      os.Getenv("TIX_DATABASE_URL"),
		ExportS3Bucket:   os.Getenv("TIX_EXPORT_S3_BUCKET"),
		ExportS3Endpoint: os.Getenv("TIX_EXPORT_S3_ENDPOINT"),
		ExportS3Region:   envOrDefault("TIX_EXPORT_S3_REGION", "us-east-1"),
		ExportS3Key:      envOrDefault("TIX_EXPORT_S3_KEY", "tix/snapshot.jsonl"),
		HealthAddr:       envOrDefault("TIX_HEALTH_ADDR", ":9090"),
	}

	if addr := os.Getenv("TIX_CONTRACT_ADDRESS"); addr != "" {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("TIX_CONTRACT_ADDRESS: invalid address %q", addr)
		}
		c.ContractAddress = common.HexToAddress(addr)
	}

	var err error
	if c.PollInterval, err = envDuration("TIX_POLL_INTERVAL", "15s"); err != nil {
		return nil, err
	}
	if c.ReceiptPoll, err = envDuration("TIX_RECEIPT_POLL", "1s"); err != nil {
		return nil, err
	}
	if c.ReceiptPoll <= 0 {
		return nil, fmt.Errorf("TIX_RECEIPT_POLL: must be positive, got %s", c.ReceiptPoll)
	}

	n, err := strconv.Atoi(envOrDefault("TIX_READ_CONCURRENCY", "16"))
	if err != nil {
		return nil, fmt.Errorf("TIX_READ_CONCURRENCY: %w", err)
	}
	if n < 1 {
		return nil, fmt.Errorf("TIX_READ_CONCURRENCY: must be at least 1, got %d", n)
	}
	c.ReadConcurrency = n

	return c, nil
}

func envDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative, got %s", key, d)
	}
	return d, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
