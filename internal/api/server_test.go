package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/navhub/navhub/internal/config"
	"github.com/navhub/navhub/internal/directory"
	"github.com/navhub/navhub/internal/payments"
	"github.com/navhub/navhub/internal/pipeline"
	memoryStorage "github.com/navhub/navhub/internal/storage/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

type fakeCrawler struct {
	result directory.CrawlResult
	err    error
	calls  int
}

func (c *fakeCrawler) Crawl(_ context.Context, _ directory.CrawlRequest) (directory.CrawlResult, error) {
	c.calls++
	if c.err != nil {
		return directory.CrawlResult{}, c.err
	}
	return c.result, nil
}

type testServer struct {
	server      *Server
	submissions *memoryStorage.SubmissionStore
	catalog     *memoryStorage.CatalogStore
	crawler     *fakeCrawler
	verifier    *payments.WebhookVerifier
	clock       *fakeClock
}

func newTestServer(t *testing.T, categories []string) *testServer {
	t.Helper()

	ts := &testServer{
		submissions: memoryStorage.NewSubmissionStore(),
		catalog:     memoryStorage.NewCatalogStore(),
		crawler:     &fakeCrawler{},
		clock:       &fakeClock{now: time.Unix(1700000000, 0).UTC()},
	}

	verifier, err := payments.NewWebhookVerifier("whsec_test", 0, ts.clock)
	require.NoError(t, err)
	ts.verifier = verifier

	p := pipeline.New(
		ts.submissions,
		ts.catalog,
		memoryStorage.NewCategoryStore(categories),
		ts.crawler,
		nil,
		nil,
		ts.clock,
		pipeline.Config{CallbackURL: "https://site.test/api/cron_callback"},
		nil,
	)

	cfg := config.Config{
		Auth: config.AuthConfig{CronKey: "cron-secret"},
		Site: config.SiteConfig{URL: "https://site.test"},
	}
	ts.server = NewServer(p, ts.submissions, ts.catalog, verifier, nil, cfg, nil)
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

func cronRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/cron", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestCronRejectsMissingToken(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	_, err := ts.submissions.Create(context.Background(), directory.Submission{Name: "a", URL: "https://a.test"})
	require.NoError(t, err)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/cron", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, ts.crawler.calls)
}

func TestCronRejectsWrongToken(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	rec := ts.do(cronRequest("wrong"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Zero(t, ts.crawler.calls)
}

func TestCronEmptyCategoryList(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	rec := ts.do(cronRequest("cron-secret"))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), "category list is empty")
}

func TestCronNoPendingSubmissions(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	rec := ts.do(cronRequest("cron-secret"))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "no pending submissions")
}

func TestCronEndToEndPublishesSubmission(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News", "Design"})
	id, err := ts.submissions.Create(context.Background(), directory.Submission{
		Name: "a", URL: "https://a.test", IsFeature: false,
	})
	require.NoError(t, err)
	ts.crawler.result = directory.CrawlResult{Title: "A", Tags: []string{"News"}}

	rec := ts.do(cronRequest("cron-secret"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Success")

	sub, err := ts.submissions.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, directory.StatusPublished, sub.Status)

	entries, err := ts.catalog.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "News", entries[0].CategoryName)
	require.Equal(t, "A", entries[0].Title)
}

func TestCronCrawlFailureReturnsError(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	id, err := ts.submissions.Create(context.Background(), directory.Submission{Name: "a", URL: "https://a.test"})
	require.NoError(t, err)
	ts.crawler.err = fmt.Errorf("%w: upstream returned HTTP 502", directory.ErrCrawlFailed)

	rec := ts.do(cronRequest("cron-secret"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	sub, err := ts.submissions.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, directory.StatusPending, sub.Status)
}

func webhookPayload(url string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {"id": "cs_1", "metadata": {"url": %q}}}
	}`, url))
}

func TestWebhookInvalidSignatureNeverMutates(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	id, err := ts.submissions.Create(context.Background(), directory.Submission{Name: "x", URL: "https://x.test"})
	require.NoError(t, err)

	payload := webhookPayload("https://x.test")
	req := httptest.NewRequest(http.MethodPost, "/api/stripe-webhook", bytes.NewReader(payload))
	req.Header.Set(payments.SignatureHeader, "t=1700000000,v1=deadbeef")

	rec := ts.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	sub, err := ts.submissions.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, directory.StatusPending, sub.Status)
}

func TestWebhookCompletedUpdatesAllMatchingSubmissions(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	ctx := context.Background()
	first, err := ts.submissions.Create(ctx, directory.Submission{Name: "x1", URL: "https://x.test"})
	require.NoError(t, err)
	second, err := ts.submissions.Create(ctx, directory.Submission{Name: "x2", URL: "https://x.test"})
	require.NoError(t, err)
	other, err := ts.submissions.Create(ctx, directory.Submission{Name: "y", URL: "https://y.test"})
	require.NoError(t, err)

	payload := webhookPayload("https://x.test")
	req := httptest.NewRequest(http.MethodPost, "/api/stripe-webhook", bytes.NewReader(payload))
	req.Header.Set(payments.SignatureHeader, ts.verifier.Sign(ts.clock.now, payload))

	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "received")

	for _, id := range []int64{first, second} {
		sub, err := ts.submissions.Get(ctx, id)
		require.NoError(t, err)
		require.Equal(t, directory.StatusPublished, sub.Status)
	}
	sub, err := ts.submissions.Get(ctx, other)
	require.NoError(t, err)
	require.Equal(t, directory.StatusPending, sub.Status)
}

func TestWebhookIgnoresOtherEventTypes(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	id, err := ts.submissions.Create(context.Background(), directory.Submission{Name: "x", URL: "https://x.test"})
	require.NoError(t, err)

	payload := []byte(`{"id": "evt_2", "type": "payment_intent.created", "data": {"object": {"metadata": {"url": "https://x.test"}}}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/stripe-webhook", bytes.NewReader(payload))
	req.Header.Set(payments.SignatureHeader, ts.verifier.Sign(ts.clock.now, payload))

	rec := ts.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	sub, err := ts.submissions.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, directory.StatusPending, sub.Status)
}

func TestCreateSubmission(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	body := []byte(`{"name": "AI Basket", "url": "https://a.test"}`)
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/submissions", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	pending, err := ts.submissions.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "AI Basket", pending[0].Name)
	require.Equal(t, directory.StatusPending, pending[0].Status)
}

func TestCreateSubmissionRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	body := []byte(`{"name": "AI Basket", "url": "not a url"}`)
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/submissions", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	pending, err := ts.submissions.ListPending(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestCreateSubmissionRejectsMissingName(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	body := []byte(`{"url": "https://a.test"}`)
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/submissions", bytes.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListNavigations(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	require.NoError(t, ts.catalog.Insert(context.Background(), directory.CatalogEntry{
		Name: "A", Title: "A title", URL: "https://a.test", CategoryName: "News",
	}))

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/navigations", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []directory.CatalogEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "A", resp.Data[0].Name)
}

func TestCreateCheckoutSessionUnconfigured(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	body := []byte(`{"priceId": "price_1", "metadata": {"website": "X", "url": "https://x.test"}}`)
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/create-checkout-session", bytes.NewReader(body)))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCreateCheckoutSession(t *testing.T) {
	t.Parallel()

	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "https://x.test", r.PostForm.Get("metadata[url]"))
		_, _ = w.Write([]byte(`{"id":"cs_1","url":"https://checkout.test/cs_1"}`))
	}))
	t.Cleanup(provider.Close)

	ts := newTestServer(t, []string{"News"})
	checkout, err := payments.NewCheckoutClient(payments.CheckoutConfig{
		SecretKey: "sk_test_123",
		APIBase:   provider.URL,
		SiteURL:   "https://site.test",
	}, nil)
	require.NoError(t, err)
	cfg := config.Config{Auth: config.AuthConfig{CronKey: "cron-secret"}}
	server := NewServer(ts.server.pipeline, ts.submissions, ts.catalog, ts.verifier, checkout, cfg, nil)

	body := []byte(`{"priceId": "price_1", "metadata": {"website": "X", "url": "https://x.test"}, "localeSettings": {"locale": "ja"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/create-checkout-session", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "https://checkout.test/cs_1")
}

func TestCreateCheckoutSessionMissingPriceID(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, []string{"News"})
	checkout, err := payments.NewCheckoutClient(payments.CheckoutConfig{SecretKey: "sk_test_123"}, nil)
	require.NoError(t, err)
	cfg := config.Config{Auth: config.AuthConfig{CronKey: "cron-secret"}}
	server := NewServer(ts.server.pipeline, ts.submissions, ts.catalog, ts.verifier, checkout, cfg, nil)

	body := []byte(`{"metadata": {"website": "X", "url": "https://x.test"}}`)
	req := httptest.NewRequest(http.MethodPost, "/api/create-checkout-session", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}
