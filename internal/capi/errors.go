package capi

import (
	"errors"
	"fmt"
)

// Sentinel kinds for delivery errors.
var (
	// ErrNotConfigured means the client is missing its pixel id or
	// access token. The client refuses to operate but the host process
	// keeps running; every Deliver call returns a failure result.
	ErrNotConfigured = errors.New("conversions api client not configured")

	// ErrTransport covers network failures, timeouts, and 5xx
	// responses. Retried up to the configured maximum.
	ErrTransport = errors.New("conversions api transport failure")
)

// PlatformError is a terminal rejection from the platform: a 4xx
// response, or a 200 whose events_received count does not match the
// batch size. Never retried; the raw payload is kept for diagnostics.
type PlatformError struct {
	StatusCode     int
	EventsReceived int
	ExpectedEvents int
	Body           string
}

func (e *PlatformError) Error() string {
	if e.StatusCode < 400 {
		return fmt.Sprintf("conversions api acknowledged %d of %d events", e.EventsReceived, e.ExpectedEvents)
	}
	return fmt.Sprintf("conversions api rejected batch: status %d: %s", e.StatusCode, e.Body)
}
