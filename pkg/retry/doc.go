// Package retry runs operations under a bounded attempt budget with
// exponential backoff and jitter.
//
// Errors are classified by a RetryIf predicate, errors.IsRetryable by
// default, so only transient network and filesystem failures are repeated.
// HTTP status failures return immediately.
//
//	r := retry.NewRetrier(&retry.Config{
//	    MaxAttempts: 3,
//	    Backoff:     retry.NewExponentialBackoff(500*time.Millisecond, 10*time.Second),
//	})
//	err := r.Do(ctx, func() error { return fetchOnce(ctx, url) })
package retry
