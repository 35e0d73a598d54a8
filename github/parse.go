package github

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseRepoURL extracts the owner and repository name from a repository URL.
// Supported forms:
//
//	https://github.com/owner/repo
//	https://github.com/owner/repo.git
//	git@github.com:owner/repo
//	git@github.com:owner/repo.git
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	if repoURL == "" {
		return "", "", fmt.Errorf("repository URL is required")
	}

	path := ""
	switch {
	case strings.HasPrefix(repoURL, "git@"):
		// SSH form: everything after the colon is the path.
		_, after, found := strings.Cut(repoURL, ":")
		if !found {
			return "", "", fmt.Errorf("invalid repository URL: %s", repoURL)
		}
		path = after
	default:
		parsed, parseErr := url.Parse(repoURL)
		if parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
			return "", "", fmt.Errorf("invalid repository URL: %s", repoURL)
		}
		path = parsed.Path
	}

	path = strings.Trim(path, "/")
	path = strings.TrimSuffix(path, ".git")

	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository URL format: %s", repoURL)
	}

	return parts[0], parts[1], nil
}
