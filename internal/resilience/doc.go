// Package resilience provides fault tolerance patterns for upstream calls.
// It includes circuit breakers and retry logic with exponential backoff so a
// flaky or down news API degrades into fast, bounded failures instead of
// piling up blocked requests.
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.FeedFetchConfig())
//	result, err := cb.Execute(func() (any, error) {
//	    return callUpstream()
//	})
//
//	err := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
//	    return performOperation()
//	})
package resilience
