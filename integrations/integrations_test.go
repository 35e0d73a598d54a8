package integrations

import (
	"bytes"
	"context"
	"testing"

	gogithub "github.com/google/go-github/v73/github"
	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"github.com/stretchr/testify/require"

	"github.com/stakwork/hivebridge/config"
	"github.com/stakwork/hivebridge/github"
	"github.com/stakwork/hivebridge/internal/testhelpers"
	"github.com/stakwork/hivebridge/models"
	"github.com/stakwork/hivebridge/secrets"
)

// fakeGitHub implements GitHubAPI with canned responses and call counters.
type fakeGitHub struct {
	hooks     []*gogithub.Hook
	listErr   error
	createErr error
	editErr   error

	ownerType    github.OwnerType
	ownerTypeErr error

	orgInstallationID  int64
	orgErr             error
	userInstallationID int64
	userErr            error

	createdHookID int64

	listCalls      int
	createCalls    int
	editCalls      int
	ownerTypeCalls int
	orgCalls       int
	userCalls      int

	lastCreateReq github.HookRequest
	lastEditReq   github.HookRequest
	lastEditID    int64
}

func (f *fakeGitHub) ListRepoHooks(_ context.Context, _, _ string) ([]*gogithub.Hook, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.hooks, nil
}

func (f *fakeGitHub) CreateRepoHook(_ context.Context, _, _ string, req github.HookRequest) (*gogithub.Hook, error) {
	f.createCalls++
	f.lastCreateReq = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &gogithub.Hook{ID: gogithub.Ptr(f.createdHookID)}, nil
}

func (f *fakeGitHub) EditRepoHook(_ context.Context, _, _ string, hookID int64, req github.HookRequest) (*gogithub.Hook, error) {
	f.editCalls++
	f.lastEditID = hookID
	f.lastEditReq = req
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &gogithub.Hook{ID: gogithub.Ptr(hookID)}, nil
}

func (f *fakeGitHub) GetOwnerType(_ context.Context, _, _ string) (github.OwnerType, error) {
	f.ownerTypeCalls++
	return f.ownerType, f.ownerTypeErr
}

func (f *fakeGitHub) FindOrgInstallation(_ context.Context, _, _ string) (int64, error) {
	f.orgCalls++
	return f.orgInstallationID, f.orgErr
}

func (f *fakeGitHub) FindUserInstallation(_ context.Context, _, _ string) (int64, error) {
	f.userCalls++
	return f.userInstallationID, f.userErr
}

func (f *fakeGitHub) remoteCalls() int {
	return f.listCalls + f.createCalls + f.editCalls + f.ownerTypeCalls + f.orgCalls + f.userCalls
}

// fakeStores implements all four store interfaces over in-memory maps.
type fakeStores struct {
	workspacesByID   map[string]models.Workspace
	workspacesBySlug map[string]models.Workspace
	repositories     map[string]models.Repository // workspaceID + "|" + url
	orgs             map[string]models.SourceControlOrg
	tokens           map[string]string
	installStates    map[string]string

	orgErr    error
	updateErr error

	updateCalls      int
	updatedRepoID    string
	updatedWebhookID string
	updatedSecret    secrets.EncryptedBlob
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		workspacesByID:   map[string]models.Workspace{},
		workspacesBySlug: map[string]models.Workspace{},
		repositories:     map[string]models.Repository{},
		orgs:             map[string]models.SourceControlOrg{},
		tokens:           map[string]string{},
		installStates:    map[string]string{},
	}
}

func (f *fakeStores) addWorkspace(ws models.Workspace) {
	f.workspacesByID[ws.ID] = ws
	f.workspacesBySlug[ws.Slug] = ws
}

func (f *fakeStores) addRepository(repo models.Repository) {
	f.repositories[repo.WorkspaceID+"|"+repo.RepositoryURL] = repo
}

func (f *fakeStores) GetWorkspaceByID(_ context.Context, id string) (mo.Option[models.Workspace], error) {
	if ws, ok := f.workspacesByID[id]; ok {
		return mo.Some(ws), nil
	}
	return mo.None[models.Workspace](), nil
}

func (f *fakeStores) GetWorkspaceBySlug(_ context.Context, slug string) (mo.Option[models.Workspace], error) {
	if ws, ok := f.workspacesBySlug[slug]; ok {
		return mo.Some(ws), nil
	}
	return mo.None[models.Workspace](), nil
}

func (f *fakeStores) GetRepositoryByURL(_ context.Context, workspaceID, repositoryURL string) (mo.Option[models.Repository], error) {
	if repo, ok := f.repositories[workspaceID+"|"+repositoryURL]; ok {
		return mo.Some(repo), nil
	}
	return mo.None[models.Repository](), nil
}

func (f *fakeStores) UpdateRepositoryWebhook(_ context.Context, repositoryID, webhookID string, secret secrets.EncryptedBlob) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updateCalls++
	f.updatedRepoID = repositoryID
	f.updatedWebhookID = webhookID
	f.updatedSecret = secret
	return nil
}

func (f *fakeStores) GetSourceControlOrgByLogin(_ context.Context, login string) (mo.Option[models.SourceControlOrg], error) {
	if f.orgErr != nil {
		return mo.None[models.SourceControlOrg](), f.orgErr
	}
	if org, ok := f.orgs[login]; ok {
		return mo.Some(org), nil
	}
	return mo.None[models.SourceControlOrg](), nil
}

func (f *fakeStores) PutInstallState(_ context.Context, userID, state string) error {
	f.installStates[userID] = state
	return nil
}

func (f *fakeStores) GetUserAccessToken(_ context.Context, userID string) (mo.Option[string], error) {
	if token, ok := f.tokens[userID]; ok {
		return mo.Some(token), nil
	}
	return mo.None[string](), nil
}

// fakeQueue records pushed payloads.
type fakeQueue struct {
	pushErr  error
	payloads []string
}

func (f *fakeQueue) PushMessageToQueue(_ context.Context, _ zerolog.Logger, payload string) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func testVault(t *testing.T) *secrets.Vault {
	t.Helper()
	vault, err := secrets.NewVault("primary", bytes.Repeat([]byte("k"), secrets.KeySize))
	require.NoError(t, err)
	return vault
}

func testConfig() config.Config {
	cfg := config.Config{}
	cfg.WebhookBaseURL = "https://app.hive.example"
	cfg.GitHub.AppSlug = "hive-github-app"
	cfg.GitHub.ClientID = "Iv1.deadbeef"
	return cfg
}

func newTestService(t *testing.T, gh *fakeGitHub, stores *fakeStores, options ...Option) *Service {
	t.Helper()
	defaults := []Option{
		WithLogger(testhelpers.Logger(t)),
		WithConfig(testConfig()),
		WithVault(testVault(t)),
		WithGitHub(gh),
		WithStores(stores, stores, stores, stores),
	}
	service, err := NewService(append(defaults, options...)...)
	require.NoError(t, err)
	return service
}
