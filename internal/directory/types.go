// Package directory defines core types shared across subsystems.
package directory

import "time"

// Status represents the lifecycle state of a submission.
type Status int

// Submission status values persisted in the submission store.
const (
	StatusPending   Status = 0
	StatusPublished Status = 1
)

// Submission is a user-proposed site awaiting crawl-and-publish.
type Submission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Status    Status    `json:"status"`
	IsFeature bool      `json:"is_feature"`
	CreatedAt time.Time `json:"created_at"`
}

// Category is a taxonomy label. The full category list is handed to the
// crawl service as its tag vocabulary and supplies the fallback label.
type Category struct {
	Name string `json:"name"`
}

// FallbackCategory is assigned when a crawl result carries no tags.
const FallbackCategory = "other"

// CatalogEntry is a published navigation record derived from a Submission
// plus crawl output.
type CatalogEntry struct {
	Name           string    `json:"name"`
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Detail         string    `json:"detail"`
	URL            string    `json:"url"`
	ImageURL       string    `json:"image_url,omitempty"`
	ThumbnailURL   string    `json:"thumbnail_url,omitempty"`
	CollectionTime time.Time `json:"collection_time"`
	CategoryName   string    `json:"category_name"`
	StarRating     int       `json:"star_rating"`
}

// CrawlRequest captures everything the pipeline hands to the crawl service.
type CrawlRequest struct {
	URL         string
	Tags        []string
	CallbackURL string
}

// CrawlResult is the enrichment payload returned for one URL. Any field may
// be empty even on a successful crawl; the pipeline applies defaults.
type CrawlResult struct {
	Name         string
	Title        string
	Description  string
	Detail       string
	URL          string
	ImageURL     string
	ThumbnailURL string
	Tags         []string
}

// PublishedEvent is emitted after a submission is converted into a catalog
// entry.
type PublishedEvent struct {
	SubmissionID int64     `json:"submission_id"`
	URL          string    `json:"url"`
	CategoryName string    `json:"category_name"`
	PublishedAt  time.Time `json:"published_at"`
}
