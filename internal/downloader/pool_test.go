package downloader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmarkvault/pkg/logger"
	"bookmarkvault/pkg/models"
)

type mockFetcher struct {
	delay    time.Duration
	failURLs map[string]error

	calls  int32
	active int32
	peak   int32
	peakMu sync.Mutex
}

func (m *mockFetcher) Fetch(ctx context.Context, bookmarkID string, ref models.MediaRef) (models.MediaAsset, error) {
	atomic.AddInt32(&m.calls, 1)
	n := atomic.AddInt32(&m.active, 1)
	defer atomic.AddInt32(&m.active, -1)

	m.peakMu.Lock()
	if n > m.peak {
		m.peak = n
	}
	m.peakMu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err, ok := m.failURLs[ref.URL]; ok {
		return models.MediaAsset{}, err
	}
	return models.MediaAsset{SourceURL: ref.URL, LocalPath: "media/" + bookmarkID + "_" + ref.Key}, nil
}

func refs(n int) []models.MediaRef {
	out := make([]models.MediaRef, n)
	for i := range out {
		out[i] = models.MediaRef{URL: fmt.Sprintf("https://pbs.example/%d.jpg", i), Key: fmt.Sprint(i)}
	}
	return out
}

func TestWorkerPool_FetchAllPreservesOrder(t *testing.T) {
	fetcher := &mockFetcher{delay: 5 * time.Millisecond}
	pool := NewWorkerPool(3, fetcher, logger.NewTestLogger())
	pool.Start()
	defer pool.Stop()

	in := refs(7)
	results := pool.FetchAll(context.Background(), "99", in)

	require.Len(t, results, len(in))
	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, i, r.Job.Index)
		assert.Equal(t, in[i].URL, r.Asset.SourceURL)
	}
	assert.Equal(t, int32(7), atomic.LoadInt32(&fetcher.calls))
}

func TestWorkerPool_ReportsPerRefErrors(t *testing.T) {
	in := refs(3)
	boom := errors.New("gone")
	fetcher := &mockFetcher{failURLs: map[string]error{in[1].URL: boom}}
	pool := NewWorkerPool(2, fetcher, logger.NewTestLogger())
	pool.Start()
	defer pool.Stop()

	results := pool.FetchAll(context.Background(), "5", in)

	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, boom)
	assert.NoError(t, results[2].Err)
}

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	fetcher := &mockFetcher{delay: 20 * time.Millisecond}
	pool := NewWorkerPool(2, fetcher, logger.NewTestLogger())
	pool.Start()
	defer pool.Stop()

	var wg sync.WaitGroup
	for b := 0; b < 4; b++ {
		wg.Add(1)
		go func(b int) {
			defer wg.Done()
			pool.FetchAll(context.Background(), fmt.Sprint(b), refs(3))
		}(b)
	}
	wg.Wait()

	assert.Equal(t, int32(12), atomic.LoadInt32(&fetcher.calls))
	assert.LessOrEqual(t, fetcher.peak, int32(2))
}

func TestWorkerPool_EmptyRefs(t *testing.T) {
	pool := NewWorkerPool(2, &mockFetcher{}, logger.NewTestLogger())
	pool.Start()
	defer pool.Stop()

	assert.Empty(t, pool.FetchAll(context.Background(), "1", nil))
}

func TestWorkerPool_CancelledContext(t *testing.T) {
	fetcher := &mockFetcher{}
	pool := NewWorkerPool(1, fetcher, logger.NewTestLogger())
	pool.Start()
	defer pool.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, r := range pool.FetchAll(ctx, "1", refs(4)) {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestWorkerPool_FetchAfterStop(t *testing.T) {
	pool := NewWorkerPool(2, &mockFetcher{}, logger.NewTestLogger())
	pool.Start()
	pool.Stop()
	pool.Stop()

	for _, r := range pool.FetchAll(context.Background(), "1", refs(2)) {
		assert.Error(t, r.Err)
	}
}

type gatedFetcher struct {
	release chan struct{}
}

func (g *gatedFetcher) Fetch(ctx context.Context, bookmarkID string, ref models.MediaRef) (models.MediaAsset, error) {
	<-g.release
	return models.MediaAsset{SourceURL: ref.URL}, nil
}

func TestWorkerPool_QueueLen(t *testing.T) {
	fetcher := &gatedFetcher{release: make(chan struct{})}
	pool := NewWorkerPool(1, fetcher, logger.NewTestLogger())
	pool.Start()
	defer pool.Stop()

	assert.Equal(t, 0, pool.QueueLen())

	done := make(chan []Result)
	go func() { done <- pool.FetchAll(context.Background(), "1", refs(3)) }()

	// one job is held by the worker, the other two wait in the queue
	assert.Eventually(t, func() bool { return pool.QueueLen() == 2 }, time.Second, time.Millisecond)

	close(fetcher.release)
	results := <-done
	require.Len(t, results, 3)
	assert.Equal(t, 0, pool.QueueLen())
}
