// Package crawlclient wraps the external enrichment service HTTP API.
package crawlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/navhub/navhub/internal/directory"
)

// successCode is the sentinel the enrichment service uses for a good crawl.
const successCode = 200

// Config captures the parameters for the crawl service client.
type Config struct {
	Endpoint string
	Key      string
	Timeout  time.Duration
}

// Client calls the remote enrichment service. It does not retry; a failed
// crawl leaves the submission pending so the next invocation retries it.
type Client struct {
	httpClient *http.Client
	endpoint   string
	key        string
	logger     *zap.Logger
}

// New constructs a Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("crawl endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.Endpoint,
		key:        cfg.Key,
		logger:     logger,
	}, nil
}

type crawlRequest struct {
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	CallbackURL string   `json:"callback_url"`
	Key         string   `json:"key"`
}

type crawlResponse struct {
	Code int           `json:"code"`
	Msg  string        `json:"msg"`
	Data *crawlPayload `json:"data"`
}

type crawlPayload struct {
	Name                    string   `json:"name"`
	Title                   string   `json:"title"`
	Description             string   `json:"description"`
	Detail                  string   `json:"detail"`
	URL                     string   `json:"url"`
	ScreenshotData          string   `json:"screenshot_data"`
	ScreenshotThumbnailData string   `json:"screenshot_thumbnail_data"`
	Tags                    []string `json:"tags"`
}

// Crawl requests enrichment for one URL. Any outcome other than the success
// code with a present payload is reported as directory.ErrCrawlFailed.
func (c *Client) Crawl(ctx context.Context, req directory.CrawlRequest) (directory.CrawlResult, error) {
	body, err := json.Marshal(crawlRequest{
		URL:         req.URL,
		Tags:        req.Tags,
		CallbackURL: req.CallbackURL,
		Key:         c.key,
	})
	if err != nil {
		return directory.CrawlResult{}, fmt.Errorf("marshal crawl request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return directory.CrawlResult{}, fmt.Errorf("build crawl request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return directory.CrawlResult{}, fmt.Errorf("%w: %v", directory.ErrCrawlFailed, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("close crawl response body", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return directory.CrawlResult{}, fmt.Errorf("%w: upstream returned HTTP %d", directory.ErrCrawlFailed, resp.StatusCode)
	}

	var decoded crawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return directory.CrawlResult{}, fmt.Errorf("%w: decode response: %v", directory.ErrCrawlFailed, err)
	}

	if decoded.Code != successCode || decoded.Data == nil {
		msg := decoded.Msg
		if msg == "" {
			msg = "crawl service returned no data"
		}
		return directory.CrawlResult{}, fmt.Errorf("%w: code %d: %s", directory.ErrCrawlFailed, decoded.Code, msg)
	}

	data := decoded.Data
	return directory.CrawlResult{
		Name:         data.Name,
		Title:        data.Title,
		Description:  data.Description,
		Detail:       data.Detail,
		URL:          data.URL,
		ImageURL:     data.ScreenshotData,
		ThumbnailURL: data.ScreenshotThumbnailData,
		Tags:         data.Tags,
	}, nil
}
