package main

import (
	"context"
	"net"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/tix/internal/server"
	"github.com/alfredjeanlab/tix/internal/session"
	"github.com/alfredjeanlab/tix/internal/store/postgres"
	tixsync "github.com/alfredjeanlab/tix/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Keep the cache in sync, export snapshots and serve gRPC health",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		exportFile, _ := cmd.Flags().GetString("export-file")
		ctx := cmd.Context()

		a, initErr, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()
		if initErr != nil {
			logger.Warn("session not ready", "err", initErr)
		}

		// Snapshot destinations.
		var dests []tixsync.Destination
		if cfg.ExportS3Bucket != "" {
			s3Dest, err := tixsync.NewS3Destination(ctx,
				cfg.ExportS3Bucket,
				cfg.ExportS3Key,
				cfg.ExportS3Region,
				cfg.ExportS3Endpoint,
			)
			if err != nil {
				logger.Error("failed to create S3 export destination", "err", err)
			} else {
				dests = append(dests, s3Dest)
				logger.Info("S3 export enabled", "bucket", cfg.ExportS3Bucket, "key", cfg.ExportS3Key)
			}
		}
		if exportFile != "" {
			dests = append(dests, tixsync.NewFileDestination(exportFile))
			logger.Info("file export enabled", "path", exportFile)
		}
		var mirror *postgres.PostgresStore
		if cfg.DatabaseURL != "" {
			mirror, err = postgres.New(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer mirror.Close()
			dests = append(dests, mirror)
			logger.Info("postgres mirror enabled")
		}

		health := server.NewHealth(logger)
		health.ObserveSession(a.session.State())

		sched := tixsync.NewScheduler(a.reader, cfg.PollInterval, logger,
			tixsync.WithDestinations(dests...),
			tixsync.WithPublisher(a.publisher),
			tixsync.WithNetworkChecker(a.session),
			tixsync.WithOnSync(health.ObserveSync),
		)
		a.session.OnChange(func(st session.State) {
			health.ObserveSession(st)
			sched.Trigger()
		})

		// Start gRPC listener.
		grpcServer := server.NewGRPCServer(health)
		lis, err := net.Listen("tcp", cfg.HealthAddr)
		if err != nil {
			return err
		}
		go func() {
			logger.Info("gRPC health listening", "addr", lis.Addr().String())
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		sched.Start()
		logger.Info("tix serve started",
			"poll_interval", cfg.PollInterval,
			"destinations", len(dests),
		)

		<-ctx.Done()
		logger.Info("shutting down", "cause", context.Cause(ctx))

		// Graceful shutdown.
		health.Shutdown()
		sched.Stop()
		logger.Info("sync scheduler stopped")

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("export-file", "", "also write each snapshot as JSONL to this path")
}
