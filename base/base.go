// Package base provides a base HTTP client with logging middleware for
// calling external services.
package base

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const (
	// RateLimitWarningThreshold is the number of remaining requests before a warning is logged.
	RateLimitWarningThreshold = 5
	// RateLimitWarningMsg is the message logged when the number of remaining requests is below the warning threshold.
	RateLimitWarningMsg = "API requests nearing rate limit"
	// RateLimitHitMsg is the message logged when the number of remaining requests is 0.
	RateLimitHitMsg = "API rate limit hit, sleeping until limit reset"
)

type baseOptions struct {
	logger    zerolog.Logger
	component string
	base      http.RoundTripper
}

// Option can modify how the base client works
type Option func(*baseOptions)

// WithLogger sets the logger to use for logging requests and responses
func WithLogger(logger zerolog.Logger) Option {
	return func(opts *baseOptions) {
		opts.logger = logger
	}
}

// WithBaseTransport sets the base transport to use for the client
func WithBaseTransport(base http.RoundTripper) Option {
	return func(opts *baseOptions) {
		opts.base = base
	}
}

// NewClient creates a new base HTTP client with logging middleware
func NewClient(component string, options ...Option) *http.Client {
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: NewTransport(component, options...),
	}
}

// NewTransport creates a new base transport with logging middleware for use
// as the base transport for other clients
func NewTransport(component string, options ...Option) http.RoundTripper {
	opts := &baseOptions{
		logger:    zerolog.Nop(),
		base:      http.DefaultTransport,
		component: component,
	}
	for _, opt := range options {
		opt(opts)
	}

	return &Transport{
		Base:      opts.base,
		Logger:    opts.logger.With().Str("component", opts.component).Logger(),
		Component: opts.component,
	}
}

// Transport is an HTTP transport that logs requests and responses
type Transport struct {
	// Base is the underlying HTTP transport
	Base http.RoundTripper
	// Logger is the logger to use for logging
	Logger zerolog.Logger
	// Component identifies the service making the request
	Component string
}

// RoundTrip implements the http.RoundTripper interface to log requests and responses.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	l := t.Logger.With().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Logger()
	l.Trace().Msg("HTTP client request")

	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start)
	l = l.With().Str("duration", duration.String()).Logger()

	if err != nil {
		l.Error().Err(err).Msg("HTTP client error")
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		l.Error().Err(err).Msg("Failed to read response body")
		return resp, err
	}
	resp.Body = io.NopCloser(bytes.NewBuffer(body))
	l = l.With().Int("status_code", resp.StatusCode).Logger()

	// Surface GitHub-style rate limit headers
	if callsRemainingStr := resp.Header.Get("X-RateLimit-Remaining"); callsRemainingStr != "" {
		callsRemaining, err := strconv.Atoi(callsRemainingStr)
		if err != nil {
			return resp, err
		}
		l = l.With().Int("calls_remaining", callsRemaining).Logger()
		if callsRemaining == 0 {
			l.Warn().Msg(RateLimitHitMsg)
		} else if callsRemaining <= RateLimitWarningThreshold {
			l.Warn().Msg(RateLimitWarningMsg)
		}
	}

	l.Trace().Msg("HTTP client response")
	return resp, nil
}
