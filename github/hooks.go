package github

import (
	"context"
	"time"

	"github.com/google/go-github/v73/github"
)

// defaultHookEvents are the events subscribed when hivebridge creates a
// webhook. Updates resubscribe the same set.
var defaultHookEvents = []string{"push", "pull_request", "issues", "issue_comment"}

// HookRequest is the webhook configuration hivebridge manages on a repository.
type HookRequest struct {
	// URL is the callback URL events are delivered to.
	URL string
	// Secret signs deliveries. The GitHub API never returns it, so it must
	// be resupplied on every configuration call.
	Secret string
}

func (r HookRequest) hook() *github.Hook {
	return &github.Hook{
		Active: github.Ptr(true),
		Events: defaultHookEvents,
		Config: &github.HookConfig{
			URL:         github.Ptr(r.URL),
			ContentType: github.Ptr("json"),
			Secret:      github.Ptr(r.Secret),
			InsecureSSL: github.Ptr("0"),
		},
	}
}

// ListRepoHooks returns all webhooks configured on a repository.
func (c *Client) ListRepoHooks(ctx context.Context, owner, repo string) ([]*github.Hook, error) {
	start := time.Now()
	hooks, resp, err := c.Rest.Repositories.ListHooks(ctx, owner, repo, &github.ListOptions{PerPage: 100})
	c.metrics.RecordGitHubAPILatency(ctx, "list_hooks", time.Since(start))
	if err != nil {
		return nil, &APIError{
			Operation:  "list_hooks",
			Owner:      owner,
			Repo:       repo,
			StatusCode: statusCode(resp),
			Underlying: err,
		}
	}
	return hooks, nil
}

// CreateRepoHook registers a new webhook on a repository.
func (c *Client) CreateRepoHook(ctx context.Context, owner, repo string, req HookRequest) (*github.Hook, error) {
	start := time.Now()
	hook, resp, err := c.Rest.Repositories.CreateHook(ctx, owner, repo, req.hook())
	c.metrics.RecordGitHubAPILatency(ctx, "create_hook", time.Since(start))
	if err != nil {
		return nil, &APIError{
			Operation:  "create_hook",
			Owner:      owner,
			Repo:       repo,
			StatusCode: statusCode(resp),
			Underlying: err,
		}
	}
	return hook, nil
}

// EditRepoHook reconfigures an existing webhook, resupplying the secret.
func (c *Client) EditRepoHook(ctx context.Context, owner, repo string, hookID int64, req HookRequest) (*github.Hook, error) {
	start := time.Now()
	hook, resp, err := c.Rest.Repositories.EditHook(ctx, owner, repo, hookID, req.hook())
	c.metrics.RecordGitHubAPILatency(ctx, "edit_hook", time.Since(start))
	if err != nil {
		return nil, &APIError{
			Operation:  "edit_hook",
			Owner:      owner,
			Repo:       repo,
			StatusCode: statusCode(resp),
			Underlying: err,
		}
	}
	return hook, nil
}

func statusCode(resp *github.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
