// Package metrics provides Prometheus metrics for bookmarkvault.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PagesTotal counts bookmark pages fetched from the source.
	PagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookmarkvault",
			Name:      "source_pages_total",
			Help:      "Total number of bookmark pages fetched",
		},
	)

	// BookmarksTotal counts bookmarks by terminal state.
	BookmarksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookmarkvault",
			Name:      "bookmarks_total",
			Help:      "Bookmarks processed, by outcome",
		},
		[]string{"outcome"},
	)

	// MediaTotal counts media references by outcome.
	MediaTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookmarkvault",
			Name:      "media_total",
			Help:      "Media references resolved, by outcome",
		},
		[]string{"outcome"},
	)

	// MediaBytes counts bytes written to the media directory.
	MediaBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookmarkvault",
			Name:      "media_bytes_total",
			Help:      "Bytes of media downloaded",
		},
	)

	// RateLimitPauses counts pauses imposed by the bookmark source.
	RateLimitPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookmarkvault",
			Name:      "rate_limit_pauses_total",
			Help:      "Times discovery paused for a rate limit",
		},
	)

	// RunDuration observes whole sync runs.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bookmarkvault",
			Name:      "sync_run_duration_seconds",
			Help:      "Duration of sync runs in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"status"},
	)

	// LastRunTimestamp is the unix time of the last finished sync run.
	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bookmarkvault",
			Name:      "last_sync_timestamp_seconds",
			Help:      "Unix time the last sync run finished",
		},
	)

	// ArchivedBookmarks reports the manifest size.
	ArchivedBookmarks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bookmarkvault",
			Name:      "archived_bookmarks",
			Help:      "Number of bookmarks in the manifest",
		},
	)
)

// RecordBookmark records one bookmark reaching a terminal state.
func RecordBookmark(outcome string) {
	BookmarksTotal.WithLabelValues(outcome).Inc()
}

// RecordMedia records one media reference resolving.
func RecordMedia(outcome string, size int64) {
	MediaTotal.WithLabelValues(outcome).Inc()
	if size > 0 {
		MediaBytes.Add(float64(size))
	}
}

// RecordRun records a finished sync run.
func RecordRun(status string, seconds float64, finishedUnix float64, archived int) {
	RunDuration.WithLabelValues(status).Observe(seconds)
	LastRunTimestamp.Set(finishedUnix)
	ArchivedBookmarks.Set(float64(archived))
}
