package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CheckoutConfig captures the provider credentials and redirect targets.
type CheckoutConfig struct {
	SecretKey string
	APIBase   string
	SiteURL   string
	Timeout   time.Duration
}

// SessionParams describe one hosted checkout session.
type SessionParams struct {
	PriceID  string
	Website  string
	URL      string
	Locale   string
	Currency string
}

// CheckoutClient creates hosted checkout sessions against the provider's
// REST API. The submission URL travels in session metadata so the completion
// webhook can find the matching rows.
type CheckoutClient struct {
	httpClient *http.Client
	secretKey  string
	apiBase    string
	siteURL    string
	logger     *zap.Logger
}

// NewCheckoutClient constructs a CheckoutClient.
func NewCheckoutClient(cfg CheckoutConfig, logger *zap.Logger) (*CheckoutClient, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("payments secret key is required")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.stripe.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		secretKey:  cfg.SecretKey,
		apiBase:    strings.TrimRight(cfg.APIBase, "/"),
		siteURL:    strings.TrimRight(cfg.SiteURL, "/"),
		logger:     logger,
	}, nil
}

type sessionResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type providerError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CreateSession creates a hosted checkout session and returns the redirect
// URL for the browser.
func (c *CheckoutClient) CreateSession(ctx context.Context, params SessionParams) (string, error) {
	if params.PriceID == "" {
		return "", fmt.Errorf("price id is required")
	}
	locale := params.Locale
	if locale == "" {
		locale = "en"
	}
	currency := params.Currency
	if currency == "" {
		currency = CurrencyForLocale(locale)
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("payment_method_types[0]", "card")
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", fmt.Sprintf("%s/%s/submit/success?session_id={CHECKOUT_SESSION_ID}", c.siteURL, locale))
	form.Set("cancel_url", fmt.Sprintf("%s/%s/submit", c.siteURL, locale))
	form.Set("metadata[website]", params.Website)
	form.Set("metadata[url]", params.URL)
	form.Set("metadata[locale]", locale)
	form.Set("currency", currency)

	endpoint := c.apiBase + "/v1/checkout/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("close checkout response body", zap.Error(closeErr))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read checkout response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var provErr providerError
		if json.Unmarshal(body, &provErr) == nil && provErr.Error.Message != "" {
			return "", fmt.Errorf("create checkout session: %s", provErr.Error.Message)
		}
		return "", fmt.Errorf("create checkout session: provider returned HTTP %d", resp.StatusCode)
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return "", fmt.Errorf("decode checkout session: %w", err)
	}
	if session.URL == "" {
		return "", fmt.Errorf("checkout session has no redirect url")
	}

	c.logger.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("locale", locale),
		zap.String("currency", currency),
	)
	return session.URL, nil
}
