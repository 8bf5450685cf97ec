package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"bookmarkvault/pkg/syncer"
	"bookmarkvault/pkg/ui"
)

var (
	// Sync command flags
	resumeSync  bool
	pageSize    int
	maxPages    int
	concurrency int
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Archive new bookmarks",
	Long: `Fetch your bookmarks from the X API and archive every one that is not in
the archive yet.

Each new bookmark is rendered to <archive>/bookmark_<id>.html with its media
stored under <archive>/media. Bookmarks already in the manifest are skipped
without any network traffic for their media.

If the API rate limit is hit the sync pauses until the limit resets. If a run
is aborted, use --resume to continue from the page it stopped at.`,
	Example: `  # Archive new bookmarks with default settings
  bookmarkvault sync

  # Continue an interrupted run
  bookmarkvault sync --resume

  # Only look at the newest 2 pages of 50 bookmarks
  bookmarkvault sync --page-size 50 --max-pages 2`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&resumeSync, "resume", false, "resume from the last checkpoint")
	syncCmd.Flags().IntVar(&pageSize, "page-size", 0, "bookmarks per API page (1-100)")
	syncCmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 = all)")
	syncCmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel media downloads (4-8)")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(map[string]interface{}{
		"resume":      resumeSync,
		"page-size":   pageSize,
		"max-pages":   maxPages,
		"concurrency": concurrency,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := ui.NewProgress()
	a, err := newApp(ctx, cfg, log, nil, progress.Update)
	if err != nil {
		return err
	}
	defer a.Close()

	ui.PrintInfo("Archive", cfg.Archive.RootDir)
	ui.PrintInfo("Account", a.credential.Name)
	if cfg.Sync.Resume {
		ui.PrintInfo("Mode", "resume")
	}

	summary, runErr := a.sync(ctx)
	progress.Done()
	report(a, summary, runErr)
	return runErr
}

// report prints and announces the outcome of a run
func report(a *app, summary *syncer.Summary, runErr error) {
	ui.PrintSummary(summary, runErr)
	a.notifier.NotifyRun(summary, runErr)
	if runErr == nil && !summary.Complete {
		ui.PrintWarning("Stopped before the end of the feed; continue with", "bookmarkvault sync --resume")
	}
}
