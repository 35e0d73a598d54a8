package github

import (
	"context"
	"time"
)

// GetOwnerType looks up whether an owner login is a user or an organization.
// When token is non-empty the call is made with the user's OAuth token.
func (c *Client) GetOwnerType(ctx context.Context, token, owner string) (OwnerType, error) {
	start := time.Now()
	account, resp, err := c.userClient(token).Users.Get(ctx, owner)
	c.metrics.RecordGitHubAPILatency(ctx, "get_user", time.Since(start))
	if err != nil {
		return "", &APIError{
			Operation:  "get_user",
			Owner:      owner,
			StatusCode: statusCode(resp),
			Underlying: err,
		}
	}
	return ParseOwnerType(account.GetType())
}

// FindOrgInstallation returns the App installation id for an organization.
// A 404 means the App is not installed there; callers treat any error as
// not-installed.
func (c *Client) FindOrgInstallation(ctx context.Context, token, org string) (int64, error) {
	start := time.Now()
	installation, resp, err := c.userClient(token).Apps.FindOrganizationInstallation(ctx, org)
	c.metrics.RecordGitHubAPILatency(ctx, "org_installation", time.Since(start))
	if err != nil {
		return 0, &APIError{
			Operation:  "org_installation",
			Owner:      org,
			StatusCode: statusCode(resp),
			Underlying: err,
		}
	}
	return installation.GetID(), nil
}

// FindUserInstallation returns the App installation id for a personal account.
func (c *Client) FindUserInstallation(ctx context.Context, token, user string) (int64, error) {
	start := time.Now()
	installation, resp, err := c.userClient(token).Apps.FindUserInstallation(ctx, user)
	c.metrics.RecordGitHubAPILatency(ctx, "user_installation", time.Since(start))
	if err != nil {
		return 0, &APIError{
			Operation:  "user_installation",
			Owner:      user,
			StatusCode: statusCode(resp),
			Underlying: err,
		}
	}
	return installation.GetID(), nil
}
