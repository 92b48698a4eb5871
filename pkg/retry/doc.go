// Package retry provides exponential backoff and retry logic for handling
// transient failures when fetching listing pages from the collection API.
//
// Features:
//   - Multiple backoff strategies (exponential, linear, constant)
//   - Jitter to avoid thundering herd problems
//   - Context support for cancellation
//   - Error-type specific backoff strategies
//   - Configurable retry predicates
//
// Basic usage:
//
//	// Simple retry with defaults
//	err := retry.Do(func() error {
//		_, err := client.FetchPage(1)
//		return err
//	}, nil)
//
//	// Custom configuration
//	cfg := &retry.Config{
//		MaxAttempts: 5,
//		Backoff: &retry.ExponentialBackoff{
//			BaseDelay:    2 * time.Second,
//			MaxDelay:     30 * time.Second,
//			Multiplier:   2.0,
//			JitterFactor: 0.1,
//		},
//		RetryIf: retry.DefaultRetryIf,
//		Logger:  logger.GetLogger(),
//	}
//	page, err := retry.DoWithResult(func() (*loc.Page, error) {
//		return client.FetchPage(3)
//	}, cfg)
//
// Error Type Handling:
//
// Setting Config.ErrorBackoff switches the delay strategy per error type:
//   - Network errors: quick retries with exponential backoff
//   - Rate limit errors: much longer delays with gentler growth
//   - Server errors: moderate delays with exponential backoff
//   - Parsing and not-found errors: no retry (non-retryable)
package retry
