package entities

import (
	"time"

	"github.com/google/uuid"
)

// RateLimitWindow is the per (identifier, endpoint) request counter.
// The identifier is an API key id or, absent a key, the caller's IP.
type RateLimitWindow struct {
	ID           uuid.UUID `json:"id"`
	Identifier   string    `json:"identifier"`
	Endpoint     string    `json:"endpoint"`
	RequestCount int       `json:"requestCount"`
	WindowStart  time.Time `json:"windowStart"`
	WindowEnd    time.Time `json:"windowEnd"`
	MaxRequests  int       `json:"maxRequests"`
	WindowMs     int64     `json:"windowMs"`
	LastRequest  time.Time `json:"lastRequest"`
}

// Expired reports whether the window has passed and must be reset before counting.
func (w *RateLimitWindow) Expired(now time.Time) bool {
	return now.After(w.WindowEnd)
}

// AdmitResult is the outcome of a rate limit check.
type AdmitResult struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
}

// RetryAfter returns the number of seconds until the window resets, rounded up.
func (r AdmitResult) RetryAfter(now time.Time) int {
	secs := int(r.ResetTime.Sub(now).Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return secs
}

// RateLimitInfo is a read-only view of the current window state.
type RateLimitInfo struct {
	Identifier string    `json:"identifier"`
	Endpoint   string    `json:"endpoint"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetTime  time.Time `json:"resetTime"`
}
