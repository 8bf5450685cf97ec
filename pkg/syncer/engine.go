package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bookmarkvault/internal/downloader"
	"bookmarkvault/pkg/checkpoint"
	"bookmarkvault/pkg/config"
	errs "bookmarkvault/pkg/errors"
	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/manifest"
	"bookmarkvault/pkg/metrics"
	"bookmarkvault/pkg/models"
	"bookmarkvault/pkg/retry"
)

const (
	minConcurrency     = 4
	maxConcurrency     = 8
	defaultConcurrency = 6
)

// Source is a paginated feed of bookmarks
type Source interface {
	ListBookmarks(ctx context.Context, cursor string, pageSize int) (*models.Page, error)
}

// Renderer turns one bookmark and its resolved media into an archived artifact
// and returns the artifact path relative to the archive root
type Renderer interface {
	Render(ctx context.Context, record *models.BookmarkRecord, assets []models.MediaAsset, missing []models.MissingMedia) (string, error)
}

// Options carries everything an Engine needs
type Options struct {
	Config   *config.Config
	Logger   logger.Logger
	Source   Source
	Store    manifest.Store
	Fetcher  downloader.MediaFetcher
	Renderer Renderer

	// Retry is the shared policy. Built from Config.Retry when nil.
	Retry *retry.Policy
	// Sleep is used for rate limit pauses and retry backoff
	Sleep retry.SleepFunc
	Clock func() time.Time
	// Checkpoint is optional. Without it a run cannot be resumed.
	Checkpoint *checkpoint.Manager
	// OnProgress receives a snapshot of the run after every page
	OnProgress func(Summary)
}

// Engine pulls bookmarks from a Source and archives the ones the manifest
// does not know yet
type Engine struct {
	cfg        *config.Config
	logger     logger.Logger
	source     Source
	store      manifest.Store
	fetcher    downloader.MediaFetcher
	renderer   Renderer
	policy     *retry.Policy
	sleep      retry.SleepFunc
	now        func() time.Time
	checkpoint *checkpoint.Manager
	onProgress func(Summary)
}

// New validates opts and creates an Engine
func New(opts Options) (*Engine, error) {
	switch {
	case opts.Config == nil:
		return nil, fmt.Errorf("syncer: config is required")
	case opts.Source == nil:
		return nil, fmt.Errorf("syncer: source is required")
	case opts.Store == nil:
		return nil, fmt.Errorf("syncer: manifest store is required")
	case opts.Fetcher == nil:
		return nil, fmt.Errorf("syncer: media fetcher is required")
	case opts.Renderer == nil:
		return nil, fmt.Errorf("syncer: renderer is required")
	}

	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = retry.Wait
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	policy := opts.Retry
	if policy == nil {
		policy = retry.NewPolicy(&opts.Config.Retry, log)
	}
	policy = policy.WithRetryIf(retry.TransientOnly)
	policy.Sleep = sleep

	return &Engine{
		cfg:        opts.Config,
		logger:     log.WithField("component", "syncer"),
		source:     opts.Source,
		store:      opts.Store,
		fetcher:    opts.Fetcher,
		renderer:   opts.Renderer,
		policy:     policy,
		sleep:      sleep,
		now:        now,
		checkpoint: opts.Checkpoint,
		onProgress: opts.OnProgress,
	}, nil
}

// Run performs one sync pass. The returned Summary is never nil.
// Only authentication failures, exhausted source retries and cancellation
// end a run early; failures of single bookmarks are recorded in the Summary.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	start := e.now()
	summary := &Summary{RunID: uuid.NewString()}

	err := e.run(ctx, summary)

	summary.Duration = e.now().Sub(start)
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case summary.HasFailures():
		status = "partial"
	}
	metrics.RecordRun(status, summary.Duration.Seconds(), float64(e.now().Unix()), e.store.Len())

	fields := map[string]interface{}{
		"run_id":        summary.RunID,
		"pages":         summary.Pages,
		"discovered":    summary.Discovered,
		"committed":     summary.Committed,
		"skipped":       summary.Skipped,
		"failed":        summary.Failed,
		"media_fetched": summary.MediaFetched,
		"media_missing": summary.MediaMissing,
		"duration_ms":   summary.Duration.Milliseconds(),
	}
	if err != nil {
		e.logger.WithError(err).ErrorWithFields("Sync run aborted", fields)
		return summary, err
	}
	e.logger.InfoWithFields("Sync run finished", fields)
	return summary, nil
}

func (e *Engine) run(ctx context.Context, summary *Summary) error {
	cursor, cp := e.startCheckpoint(summary)

	pool := downloader.NewWorkerPool(clampConcurrency(e.cfg.Sync.Concurrency), e.fetcher, e.logger)
	pool.Start()
	defer pool.Stop()

	seen := make(map[string]struct{})
	pageSize := e.cfg.Sync.PageSize

	e.logger.InfoWithFields("Starting sync run", map[string]interface{}{
		"run_id":      summary.RunID,
		"cursor":      cursor,
		"page_size":   pageSize,
		"concurrency": pool.Size(),
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := e.fetchPage(ctx, cursor, pageSize, summary)
		if err != nil {
			return err
		}
		summary.Pages++
		metrics.PagesTotal.Inc()

		for i := range page.Items {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.processBookmark(ctx, pool, &page.Items[i], seen, summary); err != nil {
				return err
			}
		}

		logger.LogSyncProgress(e.logger, summary.Pages, summary.Discovered, summary.Committed, summary.Skipped, summary.Failed)
		if e.onProgress != nil {
			e.onProgress(*summary)
		}

		received := max(page.Received, len(page.Items))
		if dropped := received - len(page.Items); dropped > 0 {
			e.logger.WarnWithFields("Source dropped malformed bookmarks", map[string]interface{}{
				"cursor":  cursor,
				"dropped": dropped,
			})
		}
		if received == 0 || page.NextCursor == "" {
			summary.Complete = true
			break
		}
		cursor = page.NextCursor
		e.saveCheckpoint(cp, cursor, summary)

		if limit := e.cfg.Sync.MaxPages; limit > 0 && summary.Pages >= limit {
			e.logger.InfoWithFields("Page limit reached", map[string]interface{}{
				"max_pages":   limit,
				"next_cursor": cursor,
			})
			break
		}
	}

	if summary.Complete && e.checkpoint != nil {
		if err := e.checkpoint.Delete(); err != nil {
			e.logger.WithError(err).Warn("Failed to delete checkpoint")
		}
	}
	return nil
}

// fetchPage requests one page, pausing on rate limits and retrying transient
// failures. The cursor never advances here.
func (e *Engine) fetchPage(ctx context.Context, cursor string, pageSize int, summary *Summary) (*models.Page, error) {
	pauses := 0
	for {
		page, err := retry.DoWithResult(ctx, e.policy, func(ctx context.Context) (*models.Page, error) {
			return e.source.ListBookmarks(ctx, cursor, pageSize)
		})
		if err == nil {
			if page == nil {
				page = &models.Page{}
			}
			return page, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errs.IsFatal(err) {
			return nil, fmt.Errorf("bookmark source rejected credentials: %w", err)
		}

		retryAfter, limited := errs.RetryAfterOf(err)
		if !limited {
			return nil, fmt.Errorf("failed to fetch bookmark page: %w", err)
		}

		pauses++
		if pauses > e.cfg.Sync.MaxRateLimitWaits {
			return nil, fmt.Errorf("rate limited %d times in a row: %w", pauses, err)
		}

		wait := max(retryAfter, e.cfg.Sync.MinRateLimitWait)
		summary.RateLimitPauses++
		metrics.RateLimitPauses.Inc()
		logger.LogRateLimit(e.logger, "bookmarks", wait, cursor)

		if err := e.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// processBookmark drives one record to a terminal state. Only cancellation
// is returned as an error.
func (e *Engine) processBookmark(ctx context.Context, pool *downloader.WorkerPool, record *models.BookmarkRecord, seen map[string]struct{}, summary *Summary) error {
	id := record.ID
	state := StateDiscovered
	summary.Discovered++
	move := func(to State) {
		logger.LogTransition(e.logger, id, state, to)
		state = to
	}

	if _, dup := seen[id]; dup || e.store.Contains(id) {
		move(StateSkipped)
		summary.Skipped++
		metrics.RecordBookmark("skipped")
		return nil
	}
	seen[id] = struct{}{}

	move(StateMediaFetching)
	assets, missing, err := e.fetchMedia(ctx, pool, record, summary)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		move(StateMediaPartial)
	} else {
		move(StateMediaFetched)
	}

	move(StateRendering)
	artifact, err := e.renderer.Render(ctx, record, assets, missing)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.failBookmark(id, StageRender, err, summary)
		move(StateFailed)
		return nil
	}
	move(StateRendered)

	entry := models.ManifestEntry{ID: id, ArchivedAt: e.now().UTC(), ArtifactPath: artifact}
	if err := e.store.Record(ctx, entry); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		e.failBookmark(id, StageCommit, err, summary)
		move(StateFailed)
		return nil
	}
	move(StateCommitted)
	summary.Committed++
	metrics.RecordBookmark("committed")
	return nil
}

func (e *Engine) fetchMedia(ctx context.Context, pool *downloader.WorkerPool, record *models.BookmarkRecord, summary *Summary) ([]models.MediaAsset, []models.MissingMedia, error) {
	refs := record.MediaRefs
	avatar := e.cfg.Render.Avatars && record.Author.ProfileImageURL != ""
	if avatar {
		refs = append(refs[:len(refs):len(refs)], models.MediaRef{URL: record.Author.ProfileImageURL, Kind: models.MediaPhoto})
	}

	if len(refs) > 0 {
		e.logger.DebugWithFields("Fetching media", map[string]interface{}{
			"bookmark_id": record.ID,
			"refs":        len(refs),
			"queued":      pool.QueueLen(),
		})
	}

	var assets []models.MediaAsset
	var missing []models.MissingMedia
	for _, r := range pool.FetchAll(ctx, record.ID, refs) {
		isAvatar := avatar && r.Job.Index == len(record.MediaRefs)
		if r.Err != nil {
			if errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, nil, ctxErr
				}
			}
			if isAvatar {
				e.logger.WithError(r.Err).DebugWithFields("Avatar unavailable", map[string]interface{}{
					"bookmark_id": record.ID,
				})
				continue
			}
			missing = append(missing, models.MissingMedia{SourceURL: r.Job.Ref.URL, Reason: r.Err.Error()})
			summary.MediaMissing++
			continue
		}
		assets = append(assets, r.Asset)
		if !isAvatar {
			summary.MediaFetched++
		}
	}
	return assets, missing, nil
}

func (e *Engine) failBookmark(id string, stage Stage, err error, summary *Summary) {
	summary.fail(id, stage, err)
	metrics.RecordBookmark("failed")
	e.logger.WithError(err).ErrorWithFields("Failed to archive bookmark", map[string]interface{}{
		"bookmark_id": id,
		"stage":       string(stage),
		"error_type":  string(errs.TypeOf(err)),
	})
}

// startCheckpoint returns the cursor to start from and the checkpoint that
// tracks this run
func (e *Engine) startCheckpoint(summary *Summary) (string, *checkpoint.Checkpoint) {
	if e.checkpoint == nil {
		return "", nil
	}

	var cursor string
	if e.cfg.Sync.Resume {
		prev, err := e.checkpoint.Load()
		if err != nil {
			e.logger.WithError(err).Warn("Ignoring unreadable checkpoint")
		} else if prev != nil {
			cursor = prev.Cursor
			summary.ResumedFrom = cursor
			e.logger.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"previous_run": prev.RunID,
				"cursor":       prev.Cursor,
				"pages":        prev.Pages,
			})
		}
	} else if e.checkpoint.Exists() {
		e.logger.Info("Starting from the newest bookmark, previous checkpoint replaced")
	}

	cp, err := e.checkpoint.Create(summary.RunID)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to create checkpoint, run cannot be resumed")
		return cursor, nil
	}
	if cursor != "" {
		if err := e.checkpoint.UpdateProgress(cp, cursor, 0, 0); err != nil {
			e.logger.WithError(err).Warn("Failed to save checkpoint")
		}
	}
	return cursor, cp
}

func (e *Engine) saveCheckpoint(cp *checkpoint.Checkpoint, cursor string, summary *Summary) {
	if cp == nil {
		return
	}
	if err := e.checkpoint.UpdateProgress(cp, cursor, summary.Pages, summary.Committed); err != nil {
		e.logger.WithError(err).Warn("Failed to save checkpoint")
	}
}

func clampConcurrency(n int) int {
	switch {
	case n <= 0:
		return defaultConcurrency
	case n < minConcurrency:
		return minConcurrency
	case n > maxConcurrency:
		return maxConcurrency
	}
	return n
}
