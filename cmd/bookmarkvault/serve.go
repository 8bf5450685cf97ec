package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	errs "bookmarkvault/pkg/errors"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/ui"
	"bookmarkvault/pkg/viewer"
)

var (
	// Serve command flags
	listenAddr   string
	syncInterval time.Duration
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Browse the archive in a local web viewer",
	Long: `Serve the archive over HTTP.

The viewer lists archived bookmarks newest first and serves each page with its
media. /healthz reports the archive size and /metrics exposes Prometheus
metrics. With --sync-interval a sync runs at start and then periodically in
the same process.`,
	Example: `  # Browse on the default address
  bookmarkvault serve

  # Keep the archive up to date every hour
  bookmarkvault serve --sync-interval 1h`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&listenAddr, "addr", "", "listen address (default 127.0.0.1:5000)")
	serveCmd.Flags().DurationVar(&syncInterval, "sync-interval", 0, "run a sync at this interval (0 = never)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(map[string]interface{}{
		"addr":          listenAddr,
		"sync-interval": syncInterval,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	var a *app
	if cfg.Server.SyncInterval > 0 {
		if a, err = newApp(ctx, cfg, log, store, nil); err != nil {
			store.Close()
			return err
		}
		defer a.Close()
	} else {
		defer store.Close()
	}

	srv := viewer.New(cfg, store, log)
	ui.PrintInfo("Viewer", "http://"+srv.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	if a != nil {
		g.Go(func() error {
			return syncLoop(gctx, a, cfg.Server.SyncInterval, log)
		})
	}

	return g.Wait()
}

// syncLoop runs a sync immediately and then every interval until ctx ends.
// Only fatal errors end the loop; anything else waits for the next tick.
func syncLoop(ctx context.Context, a *app, interval time.Duration, log logger.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := periodicSync(ctx, a, log); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func periodicSync(ctx context.Context, a *app, log logger.Logger) error {
	summary, err := a.sync(ctx)
	if ctx.Err() != nil {
		return nil
	}
	a.notifier.NotifyRun(summary, err)

	fields := map[string]interface{}{
		"committed": summary.Committed,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
	}
	switch {
	case err != nil && errs.IsFatal(err):
		log.ErrorWithFields("Periodic sync stopped: credentials rejected", fields)
		return err
	case err != nil:
		fields["error"] = err.Error()
		log.WarnWithFields("Periodic sync failed", fields)
	default:
		log.InfoWithFields("Periodic sync finished", fields)
	}
	return nil
}

