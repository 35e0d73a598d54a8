package integrations

import (
	"context"
	"errors"
	"regexp"
	"testing"

	gogithub "github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakwork/hivebridge/models"
)

const (
	testWorkspaceID = "01J8WORKSPACE0000000000000"
	testRepoID      = "01J8REPOSITORY000000000000"
	testRepoURL     = "https://github.com/acme/widgets"
	testCallback    = "https://app.hive.example/webhooks/github"
	testUserID      = "user-1"
)

var hexSecret = regexp.MustCompile(`^[0-9a-f]{64}$`)

func seedStores() *fakeStores {
	stores := newFakeStores()
	stores.addWorkspace(models.Workspace{ID: testWorkspaceID, Slug: "acme", Name: "Acme"})
	stores.addRepository(models.Repository{
		ID:            testRepoID,
		WorkspaceID:   testWorkspaceID,
		RepositoryURL: testRepoURL,
	})
	return stores
}

func TestEnsureRepoWebhookCreatesHook(t *testing.T) {
	t.Parallel()

	gh := &fakeGitHub{createdHookID: 421}
	stores := seedStores()
	service := newTestService(t, gh, stores)

	result, err := service.EnsureRepoWebhook(context.Background(), testUserID, testWorkspaceID, testRepoURL, testCallback)
	require.NoError(t, err)

	assert.Equal(t, int64(421), result.ID)
	assert.Regexp(t, hexSecret, result.Secret)

	assert.Equal(t, 1, gh.listCalls)
	assert.Equal(t, 1, gh.createCalls)
	assert.Zero(t, gh.editCalls)
	assert.Equal(t, testCallback, gh.lastCreateReq.URL)
	assert.Equal(t, result.Secret, gh.lastCreateReq.Secret)

	// The persisted secret must decrypt back to the returned plaintext.
	require.Equal(t, 1, stores.updateCalls)
	assert.Equal(t, testRepoID, stores.updatedRepoID)
	assert.Equal(t, "421", stores.updatedWebhookID)
	decrypted, err := testVault(t).DecryptField("githubWebhookSecret", stores.updatedSecret)
	require.NoError(t, err)
	assert.Equal(t, result.Secret, decrypted)
}

func TestEnsureRepoWebhookUpdatesMatchingHook(t *testing.T) {
	t.Parallel()

	gh := &fakeGitHub{
		hooks: []*gogithub.Hook{
			{
				ID:     gogithub.Ptr(int64(77)),
				Config: &gogithub.HookConfig{URL: gogithub.Ptr("https://elsewhere.example/hook")},
			},
			{
				ID:     gogithub.Ptr(int64(88)),
				Config: &gogithub.HookConfig{URL: gogithub.Ptr(testCallback)},
			},
		},
	}
	stores := seedStores()
	service := newTestService(t, gh, stores)

	result, err := service.EnsureRepoWebhook(context.Background(), testUserID, testWorkspaceID, testRepoURL, testCallback)
	require.NoError(t, err)

	assert.Equal(t, int64(88), result.ID)
	assert.Zero(t, gh.createCalls)
	assert.Equal(t, 1, gh.editCalls)
	assert.Equal(t, int64(88), gh.lastEditID)
	assert.Equal(t, result.Secret, gh.lastEditReq.Secret)
}

func TestEnsureRepoWebhookPreservesStoredSecret(t *testing.T) {
	t.Parallel()

	vault := testVault(t)
	blob, err := vault.EncryptField("githubWebhookSecret", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	require.NoError(t, err)

	gh := &fakeGitHub{
		hooks: []*gogithub.Hook{
			{
				ID:     gogithub.Ptr(int64(88)),
				Config: &gogithub.HookConfig{URL: gogithub.Ptr(testCallback)},
			},
		},
	}
	stores := seedStores()
	stores.addRepository(models.Repository{
		ID:                  testRepoID,
		WorkspaceID:         testWorkspaceID,
		RepositoryURL:       testRepoURL,
		GithubWebhookID:     gogithub.Ptr("88"),
		GithubWebhookSecret: &blob,
	})
	service := newTestService(t, gh, stores)

	result, err := service.EnsureRepoWebhook(context.Background(), testUserID, testWorkspaceID, testRepoURL, testCallback)
	require.NoError(t, err)

	assert.Equal(t, "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef", result.Secret)
	assert.Equal(t, result.Secret, gh.lastEditReq.Secret)
}

func TestEnsureRepoWebhookReusesStoredSecretOnCreate(t *testing.T) {
	t.Parallel()

	// A repository can hold a secret from a hook that was deleted on GitHub;
	// recreating the hook must resupply the same secret.
	vault := testVault(t)
	blob, err := vault.EncryptField("githubWebhookSecret", "feedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedface")
	require.NoError(t, err)

	gh := &fakeGitHub{createdHookID: 99}
	stores := seedStores()
	stores.addRepository(models.Repository{
		ID:                  testRepoID,
		WorkspaceID:         testWorkspaceID,
		RepositoryURL:       testRepoURL,
		GithubWebhookSecret: &blob,
	})
	service := newTestService(t, gh, stores)

	result, err := service.EnsureRepoWebhook(context.Background(), testUserID, testWorkspaceID, testRepoURL, testCallback)
	require.NoError(t, err)

	assert.Equal(t, "feedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedfacefeedface", result.Secret)
	assert.Equal(t, 1, gh.createCalls)
}

func TestEnsureRepoWebhookAuthzBeforeRemote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		userID        string
		workspaceID   string
		repositoryURL string
		wantErr       error
	}{
		{
			name:          "missing user",
			userID:        "",
			workspaceID:   testWorkspaceID,
			repositoryURL: testRepoURL,
			wantErr:       ErrUnauthenticated,
		},
		{
			name:          "unknown workspace",
			userID:        testUserID,
			workspaceID:   "01J8NOPE000000000000000000",
			repositoryURL: testRepoURL,
			wantErr:       ErrNotFound,
		},
		{
			name:          "repository not in workspace",
			userID:        testUserID,
			workspaceID:   testWorkspaceID,
			repositoryURL: "https://github.com/acme/other",
			wantErr:       ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gh := &fakeGitHub{}
			service := newTestService(t, gh, seedStores())

			_, err := service.EnsureRepoWebhook(context.Background(), tt.userID, tt.workspaceID, tt.repositoryURL, testCallback)
			require.ErrorIs(t, err, tt.wantErr)

			// Authorization failures never reach GitHub.
			assert.Zero(t, gh.remoteCalls())
		})
	}
}

func TestEnsureRepoWebhookInvalidURL(t *testing.T) {
	t.Parallel()

	gh := &fakeGitHub{}
	stores := seedStores()
	stores.addRepository(models.Repository{
		ID:            testRepoID,
		WorkspaceID:   testWorkspaceID,
		RepositoryURL: "not-a-url",
	})
	service := newTestService(t, gh, stores)

	_, err := service.EnsureRepoWebhook(context.Background(), testUserID, testWorkspaceID, "not-a-url", testCallback)
	require.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, gh.remoteCalls())
}

func TestEnsureRepoWebhookRemoteFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		gh   *fakeGitHub
	}{
		{
			name: "list fails",
			gh:   &fakeGitHub{listErr: errors.New("boom")},
		},
		{
			name: "create fails",
			gh:   &fakeGitHub{createErr: errors.New("boom")},
		},
		{
			name: "edit fails",
			gh: &fakeGitHub{
				editErr: errors.New("boom"),
				hooks: []*gogithub.Hook{
					{
						ID:     gogithub.Ptr(int64(88)),
						Config: &gogithub.HookConfig{URL: gogithub.Ptr(testCallback)},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			stores := seedStores()
			service := newTestService(t, tt.gh, stores)

			_, err := service.EnsureRepoWebhook(context.Background(), testUserID, testWorkspaceID, testRepoURL, testCallback)
			require.ErrorIs(t, err, ErrEnsureWebhook)

			// No partial persistence on remote failure.
			assert.Zero(t, stores.updateCalls)
		})
	}
}

func TestEnsureRepoWebhookPersistenceFailure(t *testing.T) {
	t.Parallel()

	gh := &fakeGitHub{createdHookID: 1}
	stores := seedStores()
	stores.updateErr = errors.New("db down")
	service := newTestService(t, gh, stores)

	_, err := service.EnsureRepoWebhook(context.Background(), testUserID, testWorkspaceID, testRepoURL, testCallback)
	require.ErrorIs(t, err, ErrEnsureWebhook)
}

func TestEnsureRepoWebhookDefaultCallbackURL(t *testing.T) {
	t.Parallel()

	gh := &fakeGitHub{createdHookID: 5}
	service := newTestService(t, gh, seedStores())

	_, err := service.EnsureRepoWebhook(context.Background(), testUserID, testWorkspaceID, testRepoURL, "")
	require.NoError(t, err)

	assert.Equal(t, "https://app.hive.example/webhooks/github", gh.lastCreateReq.URL)
}

func TestEnsureRepoWebhookUsesInstallationClient(t *testing.T) {
	t.Parallel()

	base := &fakeGitHub{createdHookID: 1}
	scoped := &fakeGitHub{createdHookID: 2}

	stores := seedStores()
	stores.orgs["acme"] = models.SourceControlOrg{
		ID:                   "01J8ORG0000000000000000000",
		WorkspaceID:          testWorkspaceID,
		GithubLogin:          "acme",
		GithubInstallationID: gogithub.Ptr(int64(31337)),
	}

	var requestedInstallation int64
	service := newTestService(t, base, stores,
		WithInstallationClients(func(installationID int64) (GitHubAPI, error) {
			requestedInstallation = installationID
			return scoped, nil
		}),
	)

	result, err := service.EnsureRepoWebhook(context.Background(), testUserID, testWorkspaceID, testRepoURL, testCallback)
	require.NoError(t, err)

	assert.Equal(t, int64(31337), requestedInstallation)
	assert.Equal(t, int64(2), result.ID)
	assert.Zero(t, base.remoteCalls())
	assert.Equal(t, 1, scoped.createCalls)
}

func TestMatchHook(t *testing.T) {
	t.Parallel()

	hooks := []*gogithub.Hook{
		{ID: gogithub.Ptr(int64(1)), Config: &gogithub.HookConfig{URL: gogithub.Ptr("https://a.example")}},
		{ID: gogithub.Ptr(int64(2)), Config: &gogithub.HookConfig{URL: gogithub.Ptr("https://b.example")}},
		{ID: gogithub.Ptr(int64(3))}, // no config at all
	}

	assert.Equal(t, int64(2), matchHook(hooks, "https://b.example").GetID())
	assert.Nil(t, matchHook(hooks, "https://c.example"))
	assert.Nil(t, matchHook(nil, "https://a.example"))
}
