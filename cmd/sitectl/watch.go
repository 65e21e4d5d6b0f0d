package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/sitesync/internal/client"
	"github.com/alfredjeanlab/sitesync/internal/delivery"
	"github.com/alfredjeanlab/sitesync/internal/events"
	"github.com/alfredjeanlab/sitesync/internal/model"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream config change events",
	Long: `Watch prints change events as the origin publishes them.

By default events arrive over the origin's WebSocket stream. With --nats (or
a remote that has nats_url set) they are read from the event bus instead, and
with --poll the config is fetched on an interval and a line is printed each
time it changes.`,
	GroupID: "config",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kinds, _ := cmd.Flags().GetStringSlice("events")
		natsURL, _ := cmd.Flags().GetString("nats")
		interval, _ := cmd.Flags().GetDuration("poll")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		switch {
		case interval > 0:
			return watchPoll(ctx, out, reader, interval)
		case natsURL != "":
			return watchNATS(ctx, out, natsURL, kinds)
		default:
			return httpClient.Watch(ctx, kinds, func(ev model.Event) error {
				return emitEvent(out, ev)
			})
		}
	},
}

func emitEvent(w io.Writer, ev model.Event) error {
	if jsonOutput {
		return printJSON(w, ev)
	}
	printEvent(w, ev)
	return nil
}

// watchNATS reads events from the bus until ctx is done.
func watchNATS(ctx context.Context, w io.Writer, natsURL string, kinds []string) error {
	bus, err := events.Connect(natsURL, "sitectl-watch", slog.Default(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats: disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer bus.Close()

	ch, cancel, err := bus.Subscribe()
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if !matchKinds(kinds, ev.Kind) {
				continue
			}
			if err := emitEvent(w, ev); err != nil {
				return err
			}
		}
	}
}

// matchKinds reports whether kind passes the --events filter. Patterns are
// exact kinds or a prefix ending in "*".
func matchKinds(kinds []string, kind model.EventKind) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if prefix, ok := strings.CutSuffix(k, "*"); ok {
			if strings.HasPrefix(string(kind), prefix) {
				return true
			}
		} else if k == string(kind) {
			return true
		}
	}
	return false
}

// printApplier prints each snapshot the poller decides is new.
type printApplier struct {
	w   io.Writer
	now func() time.Time
}

func (p printApplier) Apply(snap model.Snapshot) (bool, error) {
	ev := model.ConfigUpdated(snap.Config, snap.Version, p.now())
	ev.Epoch = snap.Epoch
	return true, emitEvent(p.w, ev)
}

func watchPoll(ctx context.Context, w io.Writer, r client.ConfigReader, interval time.Duration) error {
	poller := delivery.NewPoller(r, printApplier{w: w, now: time.Now}, interval, slog.Default())
	poller.Start()
	<-ctx.Done()
	poller.Stop()
	return nil
}

func init() {
	var defaultNATS string
	if r, ok := activeRemote(); ok {
		defaultNATS = r.NATSURL
	}
	if s := os.Getenv("SITECTL_NATS_URL"); s != "" {
		defaultNATS = s
	}
	watchCmd.Flags().StringSlice("events", nil, "event kinds to show, e.g. theme.*,module.toggled")
	watchCmd.Flags().String("nats", defaultNATS, "read events from this NATS server")
	watchCmd.Flags().Duration("poll", 0, "poll the config on this interval instead of streaming")
}
