package directory

import (
	"context"
	"time"
)

// SubmissionStore persists submissions and their status.
type SubmissionStore interface {
	Create(ctx context.Context, sub Submission) (int64, error)
	// ListPending returns submissions with StatusPending ordered featured
	// first, then oldest first.
	ListPending(ctx context.Context) ([]Submission, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	// UpdateStatusByURL updates every submission with a matching URL and
	// returns the number of rows affected.
	UpdateStatusByURL(ctx context.Context, url string, status Status) (int64, error)
}

// CatalogStore persists published navigation entries.
type CatalogStore interface {
	Insert(ctx context.Context, entry CatalogEntry) error
	List(ctx context.Context) ([]CatalogEntry, error)
}

// CategoryStore exposes the read-only taxonomy.
type CategoryStore interface {
	List(ctx context.Context) ([]Category, error)
}

// Crawler invokes the external enrichment service for a single URL.
type Crawler interface {
	Crawl(ctx context.Context, req CrawlRequest) (CrawlResult, error)
}

// Publisher pushes publication events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Archive writes raw artifacts for later reconciliation and returns a URI.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
