package directory

import "errors"

// Failure taxonomy for the ingestion pipeline and webhook handling. Callers
// classify with errors.Is; each sentinel maps to a distinct response at the
// HTTP boundary.
var (
	// ErrNoCategories means the taxonomy could not be loaded or is empty.
	// Fatal for the invocation since categorization requires it.
	ErrNoCategories = errors.New("category list is empty")

	// ErrNoPending is the idempotent "nothing to do" signal: no submission
	// is waiting in StatusPending.
	ErrNoPending = errors.New("no pending submissions")

	// ErrCrawlFailed covers any unsuccessful enrichment call: non-success
	// code, missing payload, network error, or timeout. The selected
	// submission stays pending and is retried on the next invocation.
	ErrCrawlFailed = errors.New("crawl failed")

	// ErrWriteFailed means a durable write after a successful crawl did not
	// complete. Surfaced to the operator, never swallowed.
	ErrWriteFailed = errors.New("write failed")

	// ErrInvalidSignature means a webhook payload failed verification and
	// was never trusted.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
