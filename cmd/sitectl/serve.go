package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/alfredjeanlab/sitesync/internal/config"
	"github.com/alfredjeanlab/sitesync/internal/delivery"
	"github.com/alfredjeanlab/sitesync/internal/events"
	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/server"
	"github.com/alfredjeanlab/sitesync/internal/service"
	"github.com/alfredjeanlab/sitesync/internal/snapshot"
	"github.com/alfredjeanlab/sitesync/internal/store"
	"github.com/alfredjeanlab/sitesync/internal/store/memory"
	"github.com/alfredjeanlab/sitesync/internal/store/postgres"
	"github.com/alfredjeanlab/sitesync/internal/store/redis"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Run the site config origin (HTTP, gRPC, webhooks)",
	GroupID:           "system",
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
		slog.SetDefault(logger)
		return runOrigin(cfg, logger)
	},
}

func init() {
	serveCmd.Flags().String("env-file", ".env", "dotenv file loaded before reading SITECONF_* variables")
}

// backends holds the stores chosen from config.
type backends struct {
	config      store.ConfigStore
	subscribers store.SubscriberStore
	closers     []func() error
}

func (b *backends) Close(logger *slog.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.Error("error closing store", "err", err)
		}
	}
}

// openBackends selects Postgres or memory for the config and, when a Redis
// URL is set, Redis for subscribers.
func openBackends(ctx context.Context, cfg *config.Config, seed model.SiteConfig, logger *slog.Logger) (*backends, error) {
	b := &backends{}
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, seed)
		if err != nil {
			return nil, err
		}
		b.config, b.subscribers = pg, pg
		b.closers = append(b.closers, pg.Close)
		logger.Info("using postgres store")
	} else {
		mem := memory.New(seed)
		b.config, b.subscribers = mem, mem
		logger.Warn("using in-memory store; config resets on restart (SITECONF_DATABASE_URL not set)")
	}

	if cfg.RedisURL != "" {
		rs, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			b.Close(logger)
			return nil, err
		}
		b.subscribers = rs
		b.closers = append(b.closers, rs.Close)
		logger.Info("using redis subscriber registry")
	}
	return b, nil
}

func snapshotDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []snapshot.Destination {
	var dests []snapshot.Destination
	if cfg.SnapshotS3Bucket != "" {
		s3Dest, err := snapshot.NewS3Destination(ctx, snapshot.S3Options{
			Bucket:        cfg.SnapshotS3Bucket,
			Key:           cfg.SnapshotS3Key,
			Region:        cfg.SnapshotS3Region,
			Endpoint:      cfg.SnapshotS3Endpoint,
			HistoryPrefix: cfg.SnapshotS3History,
		})
		if err != nil {
			logger.Error("failed to create S3 snapshot destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("snapshot S3 destination enabled", "bucket", cfg.SnapshotS3Bucket, "key", cfg.SnapshotS3Key)
		}
	}
	if cfg.SnapshotGitRepo != "" {
		dests = append(dests, snapshot.NewGitDestination(snapshot.GitOptions{
			Repo:   cfg.SnapshotGitRepo,
			File:   cfg.SnapshotGitFile,
			Branch: cfg.SnapshotGitBranch,
			Author: cfg.SnapshotGitAuthor,
		}))
		logger.Info("snapshot git destination enabled", "repo", cfg.SnapshotGitRepo, "file", cfg.SnapshotGitFile)
	}
	return dests
}

func runOrigin(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	seed, err := config.LoadSiteDefaults(cfg.DefaultsFile)
	if err != nil {
		return err
	}
	if err := model.Validate(seed); err != nil {
		return fmt.Errorf("site defaults: %w", err)
	}

	stores, err := openBackends(ctx, cfg, seed, logger)
	if err != nil {
		return err
	}
	defer stores.Close(logger)

	publisher := events.Discard
	if cfg.NATSURL != "" {
		bus, err := events.Connect(cfg.NATSURL, "sitesync-origin", logger)
		if err != nil {
			return err
		}
		publisher = bus
		logger.Info("bus events enabled", "nats_url", cfg.NATSURL)
	} else {
		logger.Info("bus events disabled (SITECONF_NATS_URL not set)")
	}

	registry := delivery.NewRegistry(stores.subscribers, cfg.SubscriberTTL)
	tracker := delivery.NewTracker()
	tracker.StartReaper(registry, &delivery.ReaperConfig{SweepInterval: cfg.ReapInterval})
	dispatcher := delivery.NewDispatcher(registry, tracker, cfg.WebhookTimeout, logger)
	streams := server.NewStreams()
	fanout := delivery.NewFanout(dispatcher, publisher, logger, streams)

	svc := service.New(stores.config, fanout, service.Options{
		MaxAttempts: uint64(cfg.SaveRetries),
		Logger:      logger,
	})
	srv := server.New(svc, registry, tracker, streams)

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		grpcServer = server.NewGRPCServer(srv, logger)
		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.NewHTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "err", err)
		}
	}()

	var scheduler *snapshot.Scheduler
	if cfg.SnapshotInterval > 0 {
		if dests := snapshotDestinations(ctx, cfg, logger); len(dests) > 0 {
			scheduler = snapshot.NewScheduler(stores.config, dests, cfg.SnapshotInterval, logger)
			scheduler.Start()
			logger.Info("snapshot scheduler started", "interval", cfg.SnapshotInterval)
		}
	}

	logger.Info("sitesync origin started",
		"grpc_addr", cfg.GRPCAddr,
		"http_addr", cfg.HTTPAddr,
		"subscriber_ttl", cfg.SubscriberTTL,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	if scheduler != nil {
		scheduler.Stop()
		logger.Info("snapshot scheduler stopped")
	}

	streams.Close()
	if grpcServer != nil {
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "err", err)
	}
	logger.Info("HTTP server stopped")

	// In-flight webhooks are bounded by the delivery timeout.
	dispatcher.Wait()
	tracker.Stop()

	if err := publisher.Close(); err != nil {
		logger.Error("error closing publisher", "err", err)
	}
	logger.Info("shutdown complete")
	return nil
}
