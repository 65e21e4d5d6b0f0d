package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/alfredjeanlab/sitesync/internal/adapter"
	"github.com/alfredjeanlab/sitesync/internal/client"
	"github.com/alfredjeanlab/sitesync/internal/config"
	"github.com/alfredjeanlab/sitesync/internal/delivery"
	"github.com/alfredjeanlab/sitesync/internal/events"
	"github.com/alfredjeanlab/sitesync/internal/hooks"
)

func runAgent(ctx context.Context, cfg *config.AgentConfig, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	origin := client.NewHTTPClient(cfg.OriginURL)

	a := adapter.New(origin, adapter.Options{
		CacheDir: cfg.CacheDir,
		Secret:   cfg.WebhookSecret,
		Rebuild:  hooks.NewRunner(cfg.RebuildCmd, time.Duration(cfg.RebuildTimeout)*time.Second, "", logger),
		Logger:   logger,
	})

	initCtx, cancelInit := context.WithTimeout(ctx, 10*time.Second)
	state := a.Initialize(initCtx)
	cancelInit()
	logger.Info("site config initialized", "version", state.Version, "modules", len(state.ActiveModules))

	poller := delivery.NewPoller(origin, a, cfg.PollInterval, logger)
	a.SetObserver(poller)
	poller.Start()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newAgentHandler(a, cfg.WebhookPath),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("agent HTTP listening", "addr", cfg.ListenAddr, "webhook", cfg.WebhookPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("agent HTTP server error", "err", err)
		}
	}()

	subscriberID := register(ctx, origin, cfg, logger)

	busCtx, stopBus := context.WithCancel(ctx)
	busDone := make(chan struct{})
	if cfg.NATSURL != "" {
		go func() {
			defer close(busDone)
			consumeBus(busCtx, a, cfg.NATSURL, logger)
		}()
	} else {
		close(busDone)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig)
	case <-ctx.Done():
		logger.Info("shutting down", "reason", ctx.Err())
	}

	stopBus()
	<-busDone
	poller.Stop()

	if subscriberID != "" {
		unregCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := origin.Unsubscribe(unregCtx, subscriberID); err != nil {
			logger.Warn("webhook unsubscribe failed", "subscriber", subscriberID, "err", err)
		}
		cancel()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "err", err)
	}
	a.Wait()

	logger.Info("agent stopped")
	return nil
}

// newAgentHandler serves the webhook receiver and the applied state.
func newAgentHandler(a *adapter.Adapter, webhookPath string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(webhookPath, a.WebhookHandler())
	mux.Handle("GET /site-config.json", a.StateHandler())
	mux.Handle("GET /theme.css", a.StyleSheetHandler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

// register subscribes the agent's callback URL with the origin. It returns
// the subscriber id, or "" when webhooks are not configured or registration
// failed; polling still covers missed updates in that case.
func register(ctx context.Context, origin *client.HTTPClient, cfg *config.AgentConfig, logger *slog.Logger) string {
	callback := cfg.CallbackURL()
	if callback == "" {
		logger.Info("webhooks disabled (SITEAGENT_PUBLIC_URL not set)")
		return ""
	}
	regCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	sub, err := origin.Subscribe(regCtx, callback, cfg.WebhookSecret)
	if err != nil {
		logger.Warn("webhook registration failed", "callback", callback, "err", err)
		return ""
	}
	logger.Info("webhook registered", "subscriber", sub.SubscriberID, "callback", callback)
	return sub.SubscriberID
}

func consumeBus(ctx context.Context, a *adapter.Adapter, natsURL string, logger *slog.Logger) {
	bus, err := events.Connect(natsURL, "siteagent", logger,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats: disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats: reconnected")
		}),
	)
	if err != nil {
		logger.Warn("event bus unavailable", "nats_url", natsURL, "err", err)
		return
	}
	defer bus.Close()
	logger.Info("following event bus", "nats_url", natsURL)
	if err := a.Consume(ctx, bus); err != nil {
		logger.Warn("event bus consumer stopped", "err", err)
	}
}
