// Package cmd provides the CLI for the hivebridge application.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stakwork/hivebridge/aws"
	"github.com/stakwork/hivebridge/config"
	"github.com/stakwork/hivebridge/github"
	"github.com/stakwork/hivebridge/integrations"
	"github.com/stakwork/hivebridge/logging"
	"github.com/stakwork/hivebridge/secrets"
	"github.com/stakwork/hivebridge/server"
	"github.com/stakwork/hivebridge/store"
	"github.com/stakwork/hivebridge/telemetry"
)

var (
	v         = viper.GetViper()
	appConfig *config.Config
	logger    zerolog.Logger
)

// root is the root command for the CLI.
var root = &cobra.Command{
	Use:   "hivebridge",
	Short: "hivebridge connects Hive workspaces to GitHub",
	Long: `
hivebridge is the GitHub App integration service for the Hive platform.

It runs a server that:

1. Resolves install intents: detects whether the Hive GitHub App is installed
   for a repository owner and builds the installation or authorization link.
2. Reconciles repository webhooks: idempotently ensures each linked repository
   has exactly one webhook pointed at the platform's callback URL.
3. Receives GitHub webhook deliveries, verifies their signatures, and hands
   them to the processing queue.

Configuration is read from CLI flags > environment variables > a .env file.
`,
	Example: `
# Default run
hivebridge
# Run with debug logging, log to file, and bind on 8080
hivebridge --log-level debug --log-path hivebridge.log --port 8080
`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		var err error

		appConfig, err = config.Load(config.WithViper(v))
		if err != nil {
			return err
		}

		opts := []logging.Option{
			logging.WithLevel(appConfig.LogLevel),
			logging.WithFileName(appConfig.LogPath),
			logging.WithSecrets(appConfig.GetSecrets()),
		}

		logger, err = logging.New(opts...)
		if err != nil {
			return err
		}

		marshaled, err := appConfig.MarshalJSON()
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to marshal config for logging.")
		}
		logger.Debug().Str("config", string(marshaled)).Msg("Configuration")

		return nil
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		metrics, metricsShutdown, err := telemetry.NewMetrics(
			telemetry.WithContext(cmd.Context()),
			telemetry.WithExporter(appConfig.Telemetry.MetricsExporter),
			telemetry.WithOTLPEndpoint(appConfig.Telemetry.MetricsEndpoint),
		)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize metrics, continuing without metrics")
		} else {
			defer func() {
				if shutdownErr := metricsShutdown(context.Background()); shutdownErr != nil {
					logger.Error().Err(shutdownErr).Msg("Failed to shutdown metrics")
				}
			}()
		}

		vault, err := secrets.NewVaultFromHex(appConfig.Crypto.EncryptionKeyID, appConfig.Crypto.EncryptionKey)
		if err != nil {
			return fmt.Errorf("failed to initialize secrets vault: %w", err)
		}

		st, err := store.New(
			store.WithConfig(*appConfig),
			store.WithLogger(logger),
			store.WithVault(vault),
		)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("Failed to close store")
			}
		}()
		if err := st.Migrate(); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}

		ghClient, err := github.NewClient(
			github.WithConfig(*appConfig),
			github.WithLogger(logger),
			github.WithMetrics(metrics),
		)
		if err != nil {
			return fmt.Errorf("failed to create GitHub client: %w", err)
		}

		serviceOptions := []integrations.Option{
			integrations.WithLogger(logger),
			integrations.WithMetrics(metrics),
			integrations.WithConfig(*appConfig),
			integrations.WithVault(vault),
			integrations.WithGitHub(ghClient),
			integrations.WithInstallationClients(func(installationID int64) (integrations.GitHubAPI, error) {
				return ghClient.InstallationClient(installationID)
			}),
			integrations.WithStores(st.Workspaces, st.Repositories, st.SourceControlOrgs, st.Sessions),
		}

		if appConfig.Aws.SqsQueueURL != "" {
			queue, err := aws.NewClient(
				aws.WithConfig(*appConfig),
				aws.WithLogger(logger),
				aws.WithMetrics(metrics),
			)
			if err != nil {
				return fmt.Errorf("failed to create SQS client: %w", err)
			}
			serviceOptions = append(serviceOptions, integrations.WithQueue(queue))
		} else {
			logger.Warn().Msg("SQS queue URL not configured, webhook deliveries will be rejected")
		}

		service, err := integrations.NewService(serviceOptions...)
		if err != nil {
			return fmt.Errorf("failed to create integration service: %w", err)
		}

		srv, err := server.New(
			server.WithLogger(logger),
			server.WithMetrics(metrics),
			server.WithConfig(*appConfig),
			server.WithIntegrations(service),
		)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		err = srv.Start(cmd.Context())
		if err != nil {
			logger.Error().Err(err).Msg("Server failure")
		}
		return err
	},
}

func init() {
	flags := root.PersistentFlags()
	flags.String("log-level", config.DefaultLogLevel, "Log level (trace, debug, info, warn, error)")
	flags.String("log-path", "", "Log file path, in addition to stderr")
	flags.Int("port", config.DefaultPort, "Port for the server to listen on")

	for flag, key := range map[string]string{
		"log-level": config.EnvVarLogLevel,
		"log-path":  "LOG_PATH",
		"port":      config.EnvVarPort,
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}
}

// Execute is the entry point for the CLI.
func Execute() {
	if err := fang.Execute(context.Background(), root, fang.WithVersion(config.VersionString())); err != nil {
		os.Exit(1)
	}
}
