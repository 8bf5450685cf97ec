package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/models"
)

// Job is a single media reference of one bookmark
type Job struct {
	BookmarkID string
	Ref        models.MediaRef
	Index      int
}

// Result is the outcome of a Job
type Result struct {
	Job      Job
	Asset    models.MediaAsset
	Err      error
	Duration time.Duration
}

// MediaFetcher resolves one media reference to a stored asset
type MediaFetcher interface {
	Fetch(ctx context.Context, bookmarkID string, ref models.MediaRef) (models.MediaAsset, error)
}

type task struct {
	ctx   context.Context
	job   Job
	reply chan<- Result
}

// WorkerPool bounds the number of media downloads in flight across all
// bookmarks of a sync run
type WorkerPool struct {
	numWorkers int
	tasks      chan task
	wg         sync.WaitGroup
	fetcher    MediaFetcher
	logger     logger.Logger

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a pool of numWorkers fetch workers
func NewWorkerPool(numWorkers int, fetcher MediaFetcher, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &WorkerPool{
		numWorkers: numWorkers,
		tasks:      make(chan task, numWorkers*2),
		fetcher:    fetcher,
		logger:     log.WithField("component", "media_pool"),
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop waits for queued jobs to drain and shuts the workers down.
// FetchAll calls made after Stop fail every job.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.tasks)
	wp.mu.Unlock()

	wp.wg.Wait()
	wp.logger.Debug("Worker pool stopped")
}

// FetchAll downloads every ref of one bookmark through the pool and returns
// one Result per ref, in ref order.
func (wp *WorkerPool) FetchAll(ctx context.Context, bookmarkID string, refs []models.MediaRef) []Result {
	results := make([]Result, len(refs))
	if len(refs) == 0 {
		return results
	}

	reply := make(chan Result, len(refs))
	submitted := 0
	for i, ref := range refs {
		job := Job{BookmarkID: bookmarkID, Ref: ref, Index: i}
		if err := wp.submit(ctx, task{ctx: ctx, job: job, reply: reply}); err != nil {
			results[i] = Result{Job: job, Err: err}
			continue
		}
		submitted++
	}

	for ; submitted > 0; submitted-- {
		r := <-reply
		results[r.Job.Index] = r
	}
	return results
}

func (wp *WorkerPool) submit(ctx context.Context, t task) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return fmt.Errorf("worker pool is shut down")
	}
	select {
	case wp.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for t := range wp.tasks {
		t.reply <- wp.process(t, id)
	}
}

func (wp *WorkerPool) process(t task, workerID int) Result {
	start := time.Now()
	result := Result{Job: t.job}

	if err := t.ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	wp.logger.DebugWithFields("Worker processing media", map[string]interface{}{
		"worker_id":   workerID,
		"bookmark_id": t.job.BookmarkID,
		"url":         t.job.Ref.URL,
	})

	result.Asset, result.Err = wp.fetcher.Fetch(t.ctx, t.job.BookmarkID, t.job.Ref)
	result.Duration = time.Since(start)
	return result
}

// Size returns the number of workers
func (wp *WorkerPool) Size() int {
	return wp.numWorkers
}

// QueueLen returns the number of jobs waiting for a worker
func (wp *WorkerPool) QueueLen() int {
	return len(wp.tasks)
}
