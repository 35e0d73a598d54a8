// Package github is a thin wrapper over the GitHub REST API covering the
// calls hivebridge needs: repository webhooks, account lookups, and App
// installation checks.
package github

import (
	"fmt"
	"net/http"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_primary_ratelimit"
	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit/github_secondary_ratelimit"
	"github.com/google/go-github/v73/github"
	"github.com/jferrl/go-githubauth"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/stakwork/hivebridge/base"
	"github.com/stakwork/hivebridge/config"
	"github.com/stakwork/hivebridge/telemetry"
)

// APIError carries enough context for callers to log a failed GitHub call
// without leaking upstream response text into user-facing errors.
type APIError struct {
	Operation  string // The operation being performed (e.g. "list_hooks", "create_hook")
	Owner      string // The repository owner
	Repo       string // The repository name
	StatusCode int    // HTTP status code if available
	Underlying error  // The underlying error that occurred
}

func (e *APIError) Error() string {
	context := ""
	if e.Owner != "" {
		context = fmt.Sprintf(" for %s", e.Owner)
		if e.Repo != "" {
			context = fmt.Sprintf(" for %s/%s", e.Owner, e.Repo)
		}
	}

	if e.StatusCode != 0 {
		return fmt.Sprintf("github %s operation failed%s (status %d): %v", e.Operation, context, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("github %s operation failed%s: %v", e.Operation, context, e.Underlying)
}

func (e *APIError) Unwrap() error {
	return e.Underlying
}

// Client is the GitHub REST client used by the reconciler and the detector.
type Client struct {
	// Rest is the GitHub REST API client.
	Rest *github.Client

	baseURL        string
	appTokenSource oauth2.TokenSource
	logger         zerolog.Logger
	metrics        *telemetry.Metrics
}

// ClientOption is a function that can be used to configure the GitHub client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	secrets config.GitHub
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	rest    *github.Client
}

// WithConfig uses a GitHub config to set up authentication.
func WithConfig(cfg config.Config) ClientOption {
	return func(c *clientOptions) {
		c.secrets = cfg.GitHub
	}
}

// WithLogger sets the logger for the GitHub client.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *clientOptions) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics instance for the GitHub client.
func WithMetrics(metrics *telemetry.Metrics) ClientOption {
	return func(c *clientOptions) {
		c.metrics = metrics
	}
}

// WithRestClient overrides the underlying REST client. Used in tests with a
// mocked HTTP backend.
func WithRestClient(rest *github.Client) ClientOption {
	return func(c *clientOptions) {
		c.rest = rest
	}
}

// NewClient creates a GitHub REST client authenticated per the provided
// config: a static token when one is configured, otherwise GitHub App
// credentials.
func NewClient(options ...ClientOption) (*Client, error) {
	opts := &clientOptions{
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(opts)
	}

	client := &Client{
		baseURL: opts.secrets.BaseURL,
		logger:  opts.logger,
		metrics: opts.metrics,
	}

	if opts.rest != nil {
		client.Rest = opts.rest
		return client, nil
	}

	tokenSource, appTokenSource, err := setupAuth(opts.logger, opts.secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to setup authentication: %w", err)
	}
	client.appTokenSource = appTokenSource
	client.Rest, err = client.restClient(client.newTransport(tokenSource))
	if err != nil {
		return nil, err
	}

	return client, nil
}

// InstallationClient returns a client scoped to a specific App installation,
// minting installation tokens from the App credentials. Multi-tenant hook
// calls must authenticate as the installation that owns the repository.
func (c *Client) InstallationClient(installationID int64) (*Client, error) {
	if c.appTokenSource == nil {
		return nil, fmt.Errorf("github app authentication is not configured")
	}

	ts := githubauth.NewInstallationTokenSource(installationID, c.appTokenSource)
	scoped := &Client{
		baseURL:        c.baseURL,
		appTokenSource: c.appTokenSource,
		logger:         c.logger.With().Int64("installation_id", installationID).Logger(),
		metrics:        c.metrics,
	}
	var err error
	scoped.Rest, err = scoped.restClient(scoped.newTransport(ts))
	if err != nil {
		return nil, err
	}
	return scoped, nil
}

// restClient builds the REST client over the transport chain, pointed at the
// configured API base URL when one differs from the public API.
func (c *Client) restClient(httpClient *http.Client) (*github.Client, error) {
	rest := github.NewClient(httpClient)
	if c.baseURL == "" || c.baseURL == config.DefaultGitHubBaseURL {
		return rest, nil
	}
	rest, err := rest.WithEnterpriseURLs(c.baseURL, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub base URL %q: %w", c.baseURL, err)
	}
	return rest, nil
}

// newTransport builds the outbound HTTP client chain: logging at the bottom,
// then oauth2, then rate limiting.
func (c *Client) newTransport(tokenSource oauth2.TokenSource) *http.Client {
	onPrimaryRateLimitHit := func(ctx *github_primary_ratelimit.CallbackContext) {
		l := c.logger.Debug().Str("limit", "primary")
		if ctx.Request != nil {
			l = l.Str("request_url", ctx.Request.URL.String())
		}
		if ctx.Category != "" {
			l = l.Str("category", string(ctx.Category))
		}
		if ctx.ResetTime != nil {
			l = l.Str("reset_time", ctx.ResetTime.String())
		}
		l.Msg(base.RateLimitHitMsg)

		if ctx.Request != nil {
			c.metrics.IncGitHubRateLimitHit(ctx.Request.Context())
		}
	}

	onSecondaryRateLimitHit := func(ctx *github_secondary_ratelimit.CallbackContext) {
		l := c.logger.Debug().Str("limit", "secondary")
		if ctx.Request != nil {
			l = l.Str("request_url", ctx.Request.URL.String())
		}
		if ctx.ResetTime != nil {
			l = l.Str("reset_time", ctx.ResetTime.String())
		}
		l.Msg(base.RateLimitHitMsg)

		if ctx.Request != nil {
			c.metrics.IncGitHubRateLimitHit(ctx.Request.Context())
		}
	}

	baseTransport := base.NewClient("github-rest", base.WithLogger(c.logger))
	if tokenSource != nil {
		baseTransport.Transport = &oauth2.Transport{
			Source: tokenSource,
			Base:   baseTransport.Transport,
		}
	}

	return github_ratelimit.NewClient(
		baseTransport.Transport,
		github_primary_ratelimit.WithLimitDetectedCallback(onPrimaryRateLimitHit),
		github_secondary_ratelimit.WithLimitDetectedCallback(onSecondaryRateLimitHit),
	)
}

// userClient returns a REST client authenticated with a user's OAuth token.
// The detector's API fallback acts on the caller's behalf, not the App's.
func (c *Client) userClient(token string) *github.Client {
	if token == "" {
		return c.Rest
	}
	return c.Rest.WithAuthToken(token)
}
