package github

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/jferrl/go-githubauth"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/stakwork/hivebridge/config"
)

var (
	// ErrNoGitHubPrivateKey is returned when App auth is configured without a private key.
	ErrNoGitHubPrivateKey = errors.New("no GitHub private key provided")
	// ErrInvalidGitHubAppID is returned when the GitHub App ID is invalid.
	ErrInvalidGitHubAppID = errors.New("invalid GitHub App ID")
	// ErrInvalidGitHubInstallationID is returned when the GitHub installation ID is invalid.
	ErrInvalidGitHubInstallationID = errors.New("invalid GitHub installation ID")
)

// setupAuth builds the token sources for the client. It returns the source
// used for requests plus, when App credentials are configured, the App-level
// (JWT) source kept around to mint per-installation tokens later.
//
// Precedence: a static token wins; otherwise App credentials are used. With
// neither, the client is unauthenticated (useful only in tests).
func setupAuth(l zerolog.Logger, cfg config.GitHub) (oauth2.TokenSource, oauth2.TokenSource, error) {
	if cfg.Token != "" {
		l.Debug().Msg("Using static GitHub token for authentication")
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}), nil, nil
	}

	if cfg.AppID == "" {
		l.Debug().Msg("No GitHub authentication configured")
		return nil, nil, nil
	}

	l.Debug().Msg("Using GitHub App authentication")
	appID, err := strconv.ParseInt(cfg.AppID, 10, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidGitHubAppID, err)
	}

	var privateKeyBytes []byte
	if cfg.PrivateKey != "" {
		privateKeyBytes = []byte(cfg.PrivateKey)
	} else if cfg.PrivateKeyFile != "" {
		privateKeyBytes, err = os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, nil, err
		}
	}
	if len(privateKeyBytes) == 0 {
		return nil, nil, ErrNoGitHubPrivateKey
	}

	appTokenSource, err := githubauth.NewApplicationTokenSource(appID, privateKeyBytes)
	if err != nil {
		return nil, nil, err
	}

	// A fixed installation ID pins the whole client to one installation,
	// for single-tenant deployments. Multi-tenant deployments leave it
	// empty and scope per call via InstallationClient.
	if cfg.InstallationID != "" {
		installationID, err := strconv.ParseInt(cfg.InstallationID, 10, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidGitHubInstallationID, err)
		}
		return githubauth.NewInstallationTokenSource(installationID, appTokenSource), appTokenSource, nil
	}

	return appTokenSource, appTokenSource, nil
}
