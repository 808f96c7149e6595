// Package api exposes the HTTP interface for the directory service.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/navhub/navhub/internal/config"
	"github.com/navhub/navhub/internal/directory"
	"github.com/navhub/navhub/internal/payments"
	"github.com/navhub/navhub/internal/pipeline"
	"github.com/navhub/navhub/internal/telemetry"
)

// PipelineRunner executes one ingestion attempt per call.
type PipelineRunner interface {
	Run(ctx context.Context) (pipeline.Result, error)
}

// Server wires HTTP handlers to the pipeline, stores, and payment clients.
type Server struct {
	router      chi.Router
	pipeline    PipelineRunner
	submissions directory.SubmissionStore
	catalog     directory.CatalogStore
	verifier    *payments.WebhookVerifier
	checkout    *payments.CheckoutClient
	cfg         config.Config
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The webhook
// verifier and checkout client may be nil when payments are disabled; the
// corresponding endpoints then reject requests.
func NewServer(
	runner PipelineRunner,
	submissions directory.SubmissionStore,
	catalog directory.CatalogStore,
	verifier *payments.WebhookVerifier,
	checkout *payments.CheckoutClient,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pipeline:    runner,
		submissions: submissions,
		catalog:     catalog,
		verifier:    verifier,
		checkout:    checkout,
		cfg:         cfg,
		logger:      logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/cron", s.runPipeline)
		r.Post("/stripe-webhook", s.handleWebhook)
		r.Post("/create-checkout-session", s.createCheckoutSession)
		r.Post("/submissions", s.createSubmission)
		r.Get("/navigations", s.listNavigations)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// runPipeline is the scheduler trigger: one complete ingestion attempt per
// call. Status codes mirror the pipeline taxonomy: 401 bad credential,
// 201 empty taxonomy, 202 nothing pending, 200 published.
func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeTrigger(r) {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	result, err := s.pipeline.Run(r.Context())
	switch {
	case err == nil:
		s.logger.Info("pipeline run published entry",
			zap.Int64("submission_id", result.Submission.ID),
			zap.String("url", result.Entry.URL),
		)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Success"})
	case errors.Is(err, directory.ErrNoCategories):
		writeError(w, http.StatusCreated, "category list is empty")
	case errors.Is(err, directory.ErrNoPending):
		writeError(w, http.StatusAccepted, "no pending submissions")
	default:
		s.logger.Error("pipeline run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// authorizeTrigger compares the bearer token against the configured cron
// key. Constant-time compare; no store is touched on failure.
func (s *Server) authorizeTrigger(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return false
	}
	token := auth[len(prefix):]
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Auth.CronKey)) == 1
}

// handleWebhook consumes payment completion notifications. A bad signature
// is rejected with 400 before the payload is trusted; once verified, store
// failures are logged but the provider still gets a 200 so its delivery
// retries stay reserved for transport failures.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.verifier == nil {
		writeError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	}
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		telemetry.ObserveWebhookEvent("read_error")
		writeError(w, http.StatusBadRequest, "unreadable payload")
		return
	}

	event, err := s.verifier.Verify(payload, r.Header.Get(payments.SignatureHeader))
	if err != nil {
		telemetry.ObserveWebhookEvent("invalid_signature")
		s.logger.Warn("webhook signature verification failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, "webhook signature verification failed")
		return
	}

	if event.Type == payments.EventCheckoutCompleted {
		url := event.MetadataURL()
		if url == "" {
			telemetry.ObserveWebhookEvent("missing_url")
			s.logger.Warn("completed checkout event without metadata url", zap.String("event_id", event.ID))
		} else if affected, err := s.submissions.UpdateStatusByURL(r.Context(), url, directory.StatusPublished); err != nil {
			telemetry.ObserveWebhookEvent("store_error")
			s.logger.Error("webhook status update failed", zap.String("url", url), zap.Error(err))
		} else {
			telemetry.ObserveWebhookEvent("completed")
			s.logger.Info("payment completed, submissions updated",
				zap.String("url", url),
				zap.Int64("affected", affected),
			)
		}
	} else {
		telemetry.ObserveWebhookEvent("ignored")
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type checkoutRequest struct {
	PriceID  string `json:"priceId"`
	Metadata struct {
		Website string `json:"website"`
		URL     string `json:"url"`
	} `json:"metadata"`
	LocaleSettings struct {
		Locale   string `json:"locale"`
		Currency string `json:"currency"`
	} `json:"localeSettings"`
}

func (s *Server) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	if s.checkout == nil {
		writeError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	}
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.PriceID == "" {
		req.PriceID = s.cfg.Payments.PriceID
	}
	if req.PriceID == "" {
		writeError(w, http.StatusBadRequest, "missing price id")
		return
	}

	locale := req.LocaleSettings.Locale
	if locale == "" {
		locale = payments.PrimaryLanguage(r.Header.Get("Accept-Language"))
	}

	redirect, err := s.checkout.CreateSession(r.Context(), payments.SessionParams{
		PriceID:  req.PriceID,
		Website:  req.Metadata.Website,
		URL:      req.Metadata.URL,
		Locale:   locale,
		Currency: req.LocaleSettings.Currency,
	})
	if err != nil {
		s.logger.Error("create checkout session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create checkout session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": redirect})
}

type submissionRequest struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	IsFeature bool   `json:"is_feature"`
}

// Validate enforces the public intake contract.
func (r submissionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.URL, validation.Required, is.URL),
	)
}

func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.submissions.Create(r.Context(), directory.Submission{
		Name:      req.Name,
		URL:       req.URL,
		Status:    directory.StatusPending,
		IsFeature: req.IsFeature,
	})
	if err != nil {
		s.logger.Error("create submission failed", zap.String("url", req.URL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create submission")
		return
	}
	telemetry.ObserveSubmissionCreated()
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) listNavigations(w http.ResponseWriter, r *http.Request) {
	entries, err := s.catalog.List(r.Context())
	if err != nil {
		s.logger.Error("list catalog entries failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list navigations")
		return
	}
	if entries == nil {
		entries = []directory.CatalogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": entries})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		telemetry.ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
