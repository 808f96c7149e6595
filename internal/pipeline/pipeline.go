// Package pipeline implements the crawl-and-publish ingestion workflow.
//
// Each invocation converts at most one pending submission into a published
// catalog entry. The pipeline is designed to be triggered repeatedly by a
// scheduler rather than batch-processing, so every run is a single complete
// attempt: select the head of the pending queue, call the enrichment
// service, then apply the two durable writes.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/navhub/navhub/internal/directory"
	"github.com/navhub/navhub/internal/telemetry"
)

// Topic used for publication events.
const publishedTopic = "catalog.published"

// Defaults substituted when the crawl result omits a text field. Empty text
// never reaches the catalog; absent images stay absent.
const (
	DefaultName    = "Unnamed"
	DefaultTitle   = "Untitled"
	DefaultContent = "No content available"
	DefaultDetail  = "No detail available"
)

// Config controls Pipeline behavior.
type Config struct {
	// CallbackURL is handed to the crawl service for asynchronous
	// notification. The synchronous response is the only thing this
	// pipeline consumes.
	CallbackURL string
}

// Result reports a completed invocation.
type Result struct {
	Submission directory.Submission
	Entry      directory.CatalogEntry
}

// Pipeline orchestrates submission selection, enrichment, and publication.
type Pipeline struct {
	submissions directory.SubmissionStore
	catalog     directory.CatalogStore
	categories  directory.CategoryStore
	crawler     directory.Crawler
	publisher   directory.Publisher
	archive     directory.Archive
	clock       directory.Clock
	cfg         Config
	logger      *zap.Logger
}

// New constructs a Pipeline. Publisher and archive are optional; when nil
// the corresponding side effects are skipped.
func New(
	submissions directory.SubmissionStore,
	catalog directory.CatalogStore,
	categories directory.CategoryStore,
	crawler directory.Crawler,
	publisher directory.Publisher,
	archive directory.Archive,
	clock directory.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		submissions: submissions,
		catalog:     catalog,
		categories:  categories,
		crawler:     crawler,
		publisher:   publisher,
		archive:     archive,
		clock:       clock,
		cfg:         cfg,
		logger:      logger,
	}
}

// Run executes one complete ingestion attempt.
//
// Failure taxonomy: directory.ErrNoCategories when the taxonomy is
// unavailable, directory.ErrNoPending when the queue is empty (a normal
// no-op, not a fault), directory.ErrCrawlFailed when enrichment does not
// succeed (the submission stays pending and is retried next invocation),
// and directory.ErrWriteFailed when a durable write after a successful
// crawl does not complete.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	started := p.clock.Now()
	result, err := p.run(ctx)
	telemetry.ObservePipelineRun(outcomeLabel(err), p.clock.Now().Sub(started))
	return result, err
}

func (p *Pipeline) run(ctx context.Context) (Result, error) {
	categories, err := p.categories.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", directory.ErrNoCategories, err)
	}
	if len(categories) == 0 {
		return Result{}, directory.ErrNoCategories
	}

	pending, err := p.submissions.ListPending(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", directory.ErrNoPending, err)
	}
	if len(pending) == 0 {
		return Result{}, directory.ErrNoPending
	}

	// Head of the featured-first, oldest-first ordering. One submission
	// per invocation; the scheduler provides the loop.
	head := pending[0]
	p.logger.Info("processing submission",
		zap.Int64("id", head.ID),
		zap.String("url", head.URL),
		zap.Bool("is_feature", head.IsFeature),
	)

	tags := make([]string, len(categories))
	for i, cat := range categories {
		tags[i] = cat.Name
	}

	crawled, err := p.crawler.Crawl(ctx, directory.CrawlRequest{
		URL:         head.URL,
		Tags:        tags,
		CallbackURL: p.cfg.CallbackURL,
	})
	if err != nil {
		// Status untouched: the same submission is retried next run.
		p.logger.Warn("crawl failed, submission left pending",
			zap.Int64("id", head.ID),
			zap.Error(err),
		)
		if errors.Is(err, directory.ErrCrawlFailed) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", directory.ErrCrawlFailed, err)
	}

	entry := buildEntry(head, crawled, p.clock.Now())

	// Two writes, not atomic. The status flips first; if the catalog
	// insert then fails the submission is already published and the
	// operator must reconcile from the surfaced error and the archived
	// crawl result. Losing the status transition silently would be worse
	// than a duplicate catalog entry on retry.
	if err := p.submissions.UpdateStatus(ctx, head.ID, directory.StatusPublished); err != nil {
		return Result{}, fmt.Errorf("%w: update submission %d status: %v", directory.ErrWriteFailed, head.ID, err)
	}
	if err := p.catalog.Insert(ctx, entry); err != nil {
		p.logger.Error("catalog insert failed after status update, manual reconciliation required",
			zap.Int64("id", head.ID),
			zap.String("url", head.URL),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("%w: insert catalog entry for submission %d: %v", directory.ErrWriteFailed, head.ID, err)
	}

	p.archiveResult(ctx, head, crawled)
	p.publishEvent(ctx, head, entry)

	p.logger.Info("submission published",
		zap.Int64("id", head.ID),
		zap.String("url", head.URL),
		zap.String("category", entry.CategoryName),
	)
	return Result{Submission: head, Entry: entry}, nil
}

// buildEntry derives a catalog entry from crawl output, substituting
// defaults so emptiness never propagates into the catalog.
func buildEntry(sub directory.Submission, crawled directory.CrawlResult, now time.Time) directory.CatalogEntry {
	category := directory.FallbackCategory
	if len(crawled.Tags) > 0 {
		category = crawled.Tags[0]
	}
	url := crawled.URL
	if url == "" {
		url = sub.URL
	}
	return directory.CatalogEntry{
		Name:           valueOrDefault(crawled.Name, DefaultName),
		Title:          valueOrDefault(crawled.Title, DefaultTitle),
		Content:        valueOrDefault(crawled.Description, DefaultContent),
		Detail:         valueOrDefault(crawled.Detail, DefaultDetail),
		URL:            url,
		ImageURL:       crawled.ImageURL,
		ThumbnailURL:   crawled.ThumbnailURL,
		CollectionTime: now,
		CategoryName:   category,
		StarRating:     0,
	}
}

func valueOrDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}

// archiveResult stores the raw crawl payload for operator reconciliation.
// Best effort: failures are logged, never fail the run.
func (p *Pipeline) archiveResult(ctx context.Context, sub directory.Submission, crawled directory.CrawlResult) {
	if p.archive == nil {
		return
	}
	data, err := json.Marshal(crawled)
	if err != nil {
		p.logger.Warn("marshal crawl result for archive", zap.Error(err))
		return
	}
	path := fmt.Sprintf("submissions/%d/%d.json", sub.ID, p.clock.Now().Unix())
	uri, err := p.archive.PutObject(ctx, path, "application/json", data)
	if err != nil {
		p.logger.Warn("archive crawl result", zap.Int64("id", sub.ID), zap.Error(err))
		return
	}
	p.logger.Debug("crawl result archived", zap.String("uri", uri))
}

// publishEvent notifies downstream consumers of the new catalog entry.
// Best effort: failures are logged, never fail the run.
func (p *Pipeline) publishEvent(ctx context.Context, sub directory.Submission, entry directory.CatalogEntry) {
	if p.publisher == nil {
		return
	}
	event := directory.PublishedEvent{
		SubmissionID: sub.ID,
		URL:          entry.URL,
		CategoryName: entry.CategoryName,
		PublishedAt:  entry.CollectionTime,
	}
	if _, err := p.publisher.Publish(ctx, publishedTopic, event); err != nil {
		p.logger.Warn("publish catalog event", zap.Int64("id", sub.ID), zap.Error(err))
	}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return telemetry.OutcomeSuccess
	case errors.Is(err, directory.ErrNoPending):
		return telemetry.OutcomeNoWork
	case errors.Is(err, directory.ErrNoCategories):
		return telemetry.OutcomeNoCategories
	case errors.Is(err, directory.ErrCrawlFailed):
		return telemetry.OutcomeCrawlFailed
	case errors.Is(err, directory.ErrWriteFailed):
		return telemetry.OutcomeWriteFailed
	default:
		return telemetry.OutcomeError
	}
}
