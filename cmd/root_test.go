package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stakwork/hivebridge/config"
)

func TestRootConfig(t *testing.T) {
	// Stub out the server startup so the test only exercises config loading.
	originalRunE := root.RunE
	root.RunE = func(*cobra.Command, []string) error { return nil }
	t.Cleanup(func() { root.RunE = originalRunE })

	testCases := []struct {
		name    string
		envVars map[string]string
		flags   []string

		expectedLogLevel string
		expectedPort     int
		expectedBaseURL  string
		expectedToken    string
	}{
		{
			name: "default config",
			envVars: map[string]string{
				"GITHUB_TOKEN": "",
			},
			expectedLogLevel: config.DefaultLogLevel,
			expectedPort:     config.DefaultPort,
			expectedBaseURL:  config.DefaultGitHubBaseURL,
		},
		{
			name: "env vars override default config",
			envVars: map[string]string{
				"LOG_LEVEL":       "error",
				"GITHUB_TOKEN":    "env-token",
				"GITHUB_BASE_URL": "https://api.github.com/test",
			},
			expectedLogLevel: "error",
			expectedPort:     config.DefaultPort,
			expectedBaseURL:  "https://api.github.com/test",
			expectedToken:    "env-token",
		},
		{
			name: "flags override env vars",
			envVars: map[string]string{
				"LOG_LEVEL":    "error",
				"GITHUB_TOKEN": "env-token",
			},
			flags: []string{
				"--log-level", "debug",
			},
			expectedLogLevel: "debug",
			expectedPort:     config.DefaultPort,
			expectedBaseURL:  config.DefaultGitHubBaseURL,
			expectedToken:    "env-token",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for key, value := range tc.envVars {
				t.Setenv(key, value)
			}

			// SetArgs(nil) would fall back to os.Args, picking up test flags.
			root.SetArgs(append([]string{}, tc.flags...))

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			t.Cleanup(cancel)

			err := root.ExecuteContext(ctx)
			require.NoError(t, err, "error executing root command")

			require.NotNil(t, appConfig)
			assert.Equal(t, tc.expectedLogLevel, appConfig.LogLevel)
			assert.Equal(t, tc.expectedPort, appConfig.Port)
			assert.Equal(t, tc.expectedBaseURL, appConfig.GitHub.BaseURL)
			assert.Equal(t, tc.expectedToken, appConfig.GitHub.Token)
		})
	}
}

func TestVersionString(t *testing.T) {
	t.Parallel()

	assert.NotEmpty(t, config.VersionString())
}
