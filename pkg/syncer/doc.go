// Package syncer archives X bookmarks.
//
// An Engine walks the bookmark feed page by page and moves every bookmark
// through a small state machine:
//
//	discovered -> skipped
//	discovered -> media_fetching -> media_fetched|media_partial
//	           -> rendering -> rendered -> committed
//	any stage after discovery -> failed
//
// Bookmarks already present in the manifest are skipped before any media or
// render work. Media downloads of all bookmarks share one bounded worker
// pool. A bookmark is only committed to the manifest after its artifact has
// been written, so an interrupted run simply redoes the uncommitted work the
// next time.
//
// Rate limits from the source pause the run and retry the same cursor.
// Transient source errors are retried with the shared retry policy.
// Authentication failures and exhausted retries end the run; failures of a
// single bookmark never do.
//
// Usage:
//
//	engine, err := syncer.New(syncer.Options{
//		Config:   cfg,
//		Logger:   log,
//		Source:   client,
//		Store:    store,
//		Fetcher:  fetcher,
//		Renderer: renderer,
//	})
//	if err != nil {
//		return err
//	}
//	summary, err := engine.Run(ctx)
package syncer
