// Package logger provides the structured logging interface used across bookmarkvault.
//
// It wraps zerolog behind a small Logger interface so components receive their
// logger explicitly and tests can swap in a TestLogger that records messages.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("bookmark_id", id).Info("Committed")
//	log.InfoWithFields("Sync finished", map[string]interface{}{
//	    "committed": 12,
//	    "skipped":   88,
//	})
//
// Console output is colored and written to stderr. When a log file is configured
// every entry is also appended to it as JSON.
package logger
