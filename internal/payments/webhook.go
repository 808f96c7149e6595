package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/navhub/navhub/internal/directory"
)

// SignatureHeader carries the provider's webhook signature.
const SignatureHeader = "Stripe-Signature"

// EventCheckoutCompleted is the event type that flips submission status.
const EventCheckoutCompleted = "checkout.session.completed"

// DefaultTolerance bounds the accepted age of a signed payload.
const DefaultTolerance = 5 * time.Minute

// Event is a verified webhook notification. Only decoded after the
// signature check passes.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// MetadataURL returns the submission URL carried in the event metadata.
func (e Event) MetadataURL() string {
	return e.Data.Object.Metadata["url"]
}

// WebhookVerifier authenticates inbound webhook payloads. The provider
// signs "<timestamp>.<payload>" with HMAC-SHA256 and sends
// "t=<timestamp>,v1=<hex>" in the signature header.
type WebhookVerifier struct {
	secret    []byte
	tolerance time.Duration
	clock     directory.Clock
}

// NewWebhookVerifier creates a verifier with the given shared secret.
func NewWebhookVerifier(secret string, tolerance time.Duration, clock directory.Clock) (*WebhookVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("webhook secret is required")
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &WebhookVerifier{
		secret:    []byte(secret),
		tolerance: tolerance,
		clock:     clock,
	}, nil
}

// Verify checks the signature header against the raw payload and, only on
// success, decodes the event. Every failure path maps to
// directory.ErrInvalidSignature so callers fail closed without inspecting
// the payload.
func (v *WebhookVerifier) Verify(payload []byte, header string) (Event, error) {
	timestamp, signature, err := parseSignatureHeader(header)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", directory.ErrInvalidSignature, err)
	}

	age := v.clock.Now().Sub(time.Unix(timestamp, 0))
	if age > v.tolerance || age < -v.tolerance {
		return Event{}, fmt.Errorf("%w: timestamp outside tolerance", directory.ErrInvalidSignature)
	}

	expected := v.sign(timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return Event{}, fmt.Errorf("%w: signature mismatch", directory.ErrInvalidSignature)
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("%w: decode event: %v", directory.ErrInvalidSignature, err)
	}
	return event, nil
}

// Sign produces a signature header value for payload at the given time.
// Exposed for tests and for exercising the endpoint locally.
func (v *WebhookVerifier) Sign(at time.Time, payload []byte) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, v.sign(ts, payload))
}

func (v *WebhookVerifier) sign(timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func parseSignatureHeader(header string) (int64, string, error) {
	if header == "" {
		return 0, "", fmt.Errorf("missing signature header")
	}
	var timestamp int64
	var signature string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("malformed timestamp")
			}
			timestamp = ts
		case "v1":
			signature = value
		}
	}
	if timestamp == 0 || signature == "" {
		return 0, "", fmt.Errorf("malformed signature header")
	}
	return timestamp, signature, nil
}
