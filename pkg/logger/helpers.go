package logger

import (
	"fmt"
	"time"
)

// LogRequest logs one outbound HTTP request
func LogRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 500 || statusCode == 0:
		l.ErrorWithFields("HTTP request failed", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogMediaFetch logs the outcome of one media download
func LogMediaFetch(l Logger, bookmarkID, sourceURL, localPath string, reused bool, err error) {
	entry := l.WithFields(map[string]interface{}{
		"bookmark_id": bookmarkID,
		"source_url":  sourceURL,
	})

	switch {
	case err != nil:
		entry.WithError(err).Warn("Media fetch failed")
	case reused:
		entry.WithField("local_path", localPath).Debug("Media already archived")
	default:
		entry.WithField("local_path", localPath).Info("Media downloaded")
	}
}

// LogRateLimit logs a pause imposed by the remote API
func LogRateLimit(l Logger, endpoint string, retryAfter time.Duration, cursor string) {
	l.WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter.String(),
		"cursor":      cursor,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, pausing discovery")
}

// LogSyncProgress logs per-page progress of a sync run
func LogSyncProgress(l Logger, page, discovered, committed, skipped, failed int) {
	l.WithFields(map[string]interface{}{
		"page":       page,
		"discovered": discovered,
		"committed":  committed,
		"skipped":    skipped,
		"failed":     failed,
	}).Info("Sync progress")
}

// LogTransition logs a bookmark moving between pipeline states
func LogTransition(l Logger, bookmarkID string, from, to fmt.Stringer) {
	l.DebugWithFields("Bookmark state changed", map[string]interface{}{
		"bookmark_id": bookmarkID,
		"from":        from.String(),
		"to":          to.String(),
	})
}
