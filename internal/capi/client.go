// Package capi delivers prepared events to the Facebook Conversions
// API with bounded retry and strict receipt verification.
package capi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/leadfuel/pixelbridge/internal/domain/model"
	"github.com/leadfuel/pixelbridge/pkg/logger"
	"github.com/leadfuel/pixelbridge/pkg/metrics"
)

// Default client configuration constants.
const (
	defaultBaseURL    = "https://graph.facebook.com/v18.0"
	defaultTimeout    = 5 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 1 * time.Second

	maxErrorBodyBytes = 4096
)

// envelope is the platform's batch wire shape.
type envelope struct {
	Data          []model.PreparedEvent `json:"data"`
	TestEventCode string                `json:"test_event_code,omitempty"`
}

// receipt is the acknowledgment body on success.
type receipt struct {
	EventsReceived int `json:"events_received"`
}

// Result reports the outcome of one Deliver call.
type Result struct {
	Success        bool
	EventsReceived int
	Attempts       int
	Err            error
}

// Client sends prepared event batches to the Conversions API. It never
// mutates the dedup cache or session state; rollback on failure is the
// caller's responsibility.
type Client struct {
	baseURL       string
	pixelID       string
	accessToken   string
	testEventCode string
	maxRetries    int
	retryDelay    time.Duration
	httpClient    *http.Client
	logger        logger.Logger
}

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL overrides the Conversions API base URL. Intended for
// tests and regional endpoints.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithCredentials sets the pixel id and access token.
func WithCredentials(pixelID, accessToken string) Option {
	return func(c *Client) {
		c.pixelID = pixelID
		c.accessToken = accessToken
	}
}

// WithTestEventCode attaches the platform test-mode code to batches.
func WithTestEventCode(code string) Option {
	return func(c *Client) {
		c.testEventCode = code
	}
}

// WithTimeout bounds each HTTP request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithMaxRetries sets the total attempt ceiling for transport failures.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithRetryDelay sets the base delay; backoff grows linearly with the
// attempt number.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.retryDelay = d
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Conversions API client. A client missing credentials
// still constructs: it refuses to operate and surfaces ErrNotConfigured
// from Deliver instead of failing the host process.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger.Get().Named("capi"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Configured reports whether the client has working credentials.
func (c *Client) Configured() bool {
	return c.pixelID != "" && c.accessToken != ""
}

// Deliver sends one batch of prepared events. Success requires the
// platform to acknowledge exactly len(events) received; anything else,
// including HTTP 200 with a mismatched count, is a failure.
func (c *Client) Deliver(ctx context.Context, events ...model.PreparedEvent) Result {
	start := time.Now()
	defer func() {
		metrics.RecordDeliveryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if len(events) == 0 {
		return Result{Success: true}
	}
	if !c.Configured() {
		metrics.RecordErrorByComponent("capi", "not_configured")
		return Result{Err: ErrNotConfigured}
	}

	body, err := json.Marshal(envelope{Data: events, TestEventCode: c.testEventCode})
	if err != nil {
		return Result{Err: fmt.Errorf("encode batch: %w", err)}
	}

	endpoint := fmt.Sprintf("%s/%s/events?access_token=%s",
		c.baseURL, c.pixelID, url.QueryEscape(c.accessToken))

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			metrics.RecordDeliveryRetry()
			select {
			case <-time.After(time.Duration(attempt-1) * c.retryDelay):
			case <-ctx.Done():
				return Result{Attempts: attempt - 1, Err: fmt.Errorf("%w: %v", ErrTransport, ctx.Err())}
			}
		}

		metrics.RecordDeliveryAttempt()
		res, retryable := c.attempt(ctx, endpoint, body, len(events))
		if res.Success {
			res.Attempts = attempt
			metrics.RecordDeliverySuccess()
			return res
		}
		if !retryable {
			res.Attempts = attempt
			metrics.RecordPlatformRejection()
			return res
		}

		lastErr = res.Err
		metrics.RecordTransportError()
		c.logger.Warn(ctx, "delivery attempt failed",
			logger.Int("attempt", attempt),
			logger.Int("maxRetries", c.maxRetries),
			logger.Error(res.Err),
		)
	}

	metrics.RecordErrorByComponent("capi", "retries_exhausted")
	return Result{Attempts: c.maxRetries, Err: lastErr}
}

// attempt performs a single HTTP exchange. retryable is true only for
// transport-class failures (network error, timeout, 5xx).
func (c *Client) attempt(ctx context.Context, endpoint string, body []byte, batchSize int) (res Result, retryable bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrTransport, err)}, true
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrTransport, err)}, true
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return Result{Err: fmt.Errorf("%w: read response: %v", ErrTransport, err)}, true
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return Result{Err: fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)}, true
	case resp.StatusCode >= http.StatusBadRequest:
		return Result{Err: &PlatformError{
			StatusCode:     resp.StatusCode,
			ExpectedEvents: batchSize,
			Body:           string(respBody),
		}}, false
	}

	var ack receipt
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return Result{Err: &PlatformError{
			StatusCode:     resp.StatusCode,
			ExpectedEvents: batchSize,
			Body:           string(respBody),
		}}, false
	}
	if ack.EventsReceived != batchSize {
		return Result{
			EventsReceived: ack.EventsReceived,
			Err: &PlatformError{
				StatusCode:     resp.StatusCode,
				EventsReceived: ack.EventsReceived,
				ExpectedEvents: batchSize,
				Body:           string(respBody),
			},
		}, false
	}

	return Result{Success: true, EventsReceived: ack.EventsReceived}, false
}
