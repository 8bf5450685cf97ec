// Package retry provides the exponential backoff policy shared by every
// network call in bookmarkvault.
//
// A Policy bounds the number of attempts, classifies errors through RetryIf
// and sleeps between attempts with an injectable SleepFunc:
//
//	policy := retry.NewPolicy(&cfg.Retry, log)
//	page, err := retry.DoWithResult(ctx, policy, func(ctx context.Context) (*models.Page, error) {
//		return client.ListBookmarks(ctx, cursor, 100)
//	})
//	if retry.IsExhausted(err) {
//		// every attempt failed with a transient error
//	}
//
// Rate limit errors that carry a RetryAfter stretch the delay to at least that value.
package retry
