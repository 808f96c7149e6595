package crawlclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/navhub/navhub/internal/directory"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(Config{
		Endpoint: srv.URL,
		Key:      "cron-secret",
		Timeout:  2 * time.Second,
	}, nil)
	require.NoError(t, err)
	return client
}

func TestCrawlSuccess(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "https://a.test", req["url"])
		require.Equal(t, "cron-secret", req["key"])
		require.Equal(t, "https://site.test/api/cron_callback", req["callback_url"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"code": 200,
			"data": {
				"name": "A",
				"title": "A title",
				"description": "desc",
				"detail": "detail",
				"url": "https://a.test",
				"screenshot_data": "https://img.test/a.png",
				"screenshot_thumbnail_data": "https://img.test/a_thumb.png",
				"tags": ["News", "Tools"]
			}
		}`))
	})

	result, err := client.Crawl(context.Background(), directory.CrawlRequest{
		URL:         "https://a.test",
		Tags:        []string{"News", "Tools", "Design"},
		CallbackURL: "https://site.test/api/cron_callback",
	})
	require.NoError(t, err)
	require.Equal(t, "A", result.Name)
	require.Equal(t, "https://img.test/a.png", result.ImageURL)
	require.Equal(t, []string{"News", "Tools"}, result.Tags)
}

func TestCrawlNonSuccessCode(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code": 500, "msg": "render timeout"}`))
	})

	_, err := client.Crawl(context.Background(), directory.CrawlRequest{URL: "https://a.test"})
	require.Error(t, err)
	require.True(t, errors.Is(err, directory.ErrCrawlFailed))
	require.Contains(t, err.Error(), "render timeout")
}

func TestCrawlSuccessCodeWithoutData(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code": 200}`))
	})

	_, err := client.Crawl(context.Background(), directory.CrawlRequest{URL: "https://a.test"})
	require.True(t, errors.Is(err, directory.ErrCrawlFailed))
}

func TestCrawlHTTPError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Crawl(context.Background(), directory.CrawlRequest{URL: "https://a.test"})
	require.True(t, errors.Is(err, directory.ErrCrawlFailed))
}

func TestCrawlTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"code": 200}`))
	}))
	t.Cleanup(srv.Close)

	client, err := New(Config{Endpoint: srv.URL, Timeout: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	_, err = client.Crawl(context.Background(), directory.CrawlRequest{URL: "https://a.test"})
	require.True(t, errors.Is(err, directory.ErrCrawlFailed))
}

func TestNewRequiresEndpoint(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)
}
