package integrations

import (
	"context"
	"fmt"
	"net/url"

	"github.com/stakwork/hivebridge/github"
	"github.com/stakwork/hivebridge/state"
)

// FlowType names the redirect a client is sent through.
type FlowType string

const (
	// FlowInstallation sends the user to install the GitHub App on the owner.
	FlowInstallation FlowType = "installation"
	// FlowUserAuthorization sends the user through the OAuth authorize flow;
	// the App is already installed.
	FlowUserAuthorization FlowType = "user_authorization"
)

// InstallRequest is an install-intent request for a workspace repository.
type InstallRequest struct {
	UserID        string `json:"-"`
	WorkspaceSlug string `json:"workspaceSlug"`
	RepositoryURL string `json:"repositoryUrl"`
}

// InstallResult tells the client which flow to start and carries the minted
// CSRF state the callback must echo.
type InstallResult struct {
	FlowType     FlowType         `json:"flowType"`
	Link         string           `json:"link"`
	State        string           `json:"state"`
	AppInstalled bool             `json:"appInstalled"`
	GithubOwner  string           `json:"githubOwner"`
	OwnerType    github.OwnerType `json:"ownerType,omitempty"`
}

// RequestInstall resolves an install-intent request: it validates the target
// workspace and repository, detects whether the App is installed for the
// repository owner, mints and persists a fresh state token, and builds the
// redirect link for the selected flow.
func (s *Service) RequestInstall(ctx context.Context, req InstallRequest) (InstallResult, error) {
	if req.UserID == "" {
		return InstallResult{}, fmt.Errorf("%w: missing user", ErrUnauthenticated)
	}
	if req.WorkspaceSlug == "" {
		return InstallResult{}, fmt.Errorf("%w: workspace slug is required", ErrValidation)
	}
	if req.RepositoryURL == "" {
		return InstallResult{}, fmt.Errorf("%w: repository URL is required", ErrValidation)
	}

	workspace, err := s.workspaces.GetWorkspaceBySlug(ctx, req.WorkspaceSlug)
	if err != nil {
		return InstallResult{}, fmt.Errorf("failed to look up workspace: %w", err)
	}
	ws, ok := workspace.Get()
	if !ok {
		return InstallResult{}, fmt.Errorf("%w: workspace %q", ErrNotFound, req.WorkspaceSlug)
	}

	repository, err := s.repositories.GetRepositoryByURL(ctx, ws.ID, req.RepositoryURL)
	if err != nil {
		return InstallResult{}, fmt.Errorf("failed to look up repository: %w", err)
	}
	if _, ok := repository.Get(); !ok {
		return InstallResult{}, fmt.Errorf("%w: repository is not linked to workspace %q", ErrNotFound, req.WorkspaceSlug)
	}

	owner, _, err := github.ParseRepoURL(req.RepositoryURL)
	if err != nil {
		return InstallResult{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	detection := s.DetectInstallation(ctx, req.UserID, owner)

	stateToken, err := state.Encode(req.WorkspaceSlug, req.RepositoryURL)
	if err != nil {
		return InstallResult{}, fmt.Errorf("failed to encode state token: %w", err)
	}
	if err := s.sessions.PutInstallState(ctx, req.UserID, stateToken); err != nil {
		return InstallResult{}, fmt.Errorf("failed to persist install state: %w", err)
	}

	flowType, link := s.selectFlow(detection, stateToken)
	s.metrics.IncInstallIntent(ctx, string(flowType))
	s.logger.Info().
		Str("workspace", req.WorkspaceSlug).
		Str("owner", owner).
		Str("flow", string(flowType)).
		Bool("app_installed", detection.Installed).
		Msg("Install intent resolved")

	return InstallResult{
		FlowType:     flowType,
		Link:         link,
		State:        stateToken,
		AppInstalled: detection.Installed,
		GithubOwner:  owner,
		OwnerType:    detection.OwnerType,
	}, nil
}

// selectFlow picks the redirect for a detection outcome. Personal accounts
// need target_type=User on the installation URL or GitHub presents the
// organization chooser.
func (s *Service) selectFlow(detection Detection, stateToken string) (FlowType, string) {
	if detection.Installed {
		link := fmt.Sprintf(
			"https://github.com/login/oauth/authorize?client_id=%s&state=%s",
			url.QueryEscape(s.clientID),
			url.QueryEscape(stateToken),
		)
		return FlowUserAuthorization, link
	}

	link := fmt.Sprintf(
		"https://github.com/apps/%s/installations/new?state=%s",
		url.PathEscape(s.appSlug),
		url.QueryEscape(stateToken),
	)
	if detection.OwnerType == github.OwnerTypeUser {
		link += "&target_type=User"
	}
	return FlowInstallation, link
}
