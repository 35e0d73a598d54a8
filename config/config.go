// Package config provides the configuration for the application.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultPort is the default port for the server to listen on.
	DefaultPort = 8080
	// DefaultLogLevel is the default log level for the server.
	DefaultLogLevel = "info"
	// DefaultGitHubBaseURL is the default base URL for the GitHub API.
	DefaultGitHubBaseURL = "https://api.github.com"
	// DefaultDatabaseSchema is the default Postgres schema for hivebridge tables.
	DefaultDatabaseSchema = "public"
	// DefaultEncryptionKeyID is the default key id recorded on encrypted blobs.
	DefaultEncryptionKeyID = "primary"

	// EnvVarLogLevel is the environment variable for the log level.
	EnvVarLogLevel = "LOG_LEVEL"
	// EnvVarPort is the environment variable for the port.
	EnvVarPort = "PORT"
)

// These variables are set at build time and describe the version and build of the application
var (
	Version   string
	Commit    string
	BuildTime = time.Now().Format("2006-01-02T15:04:05.000")
	BuiltBy   = "local"
	BuiltWith = runtime.Version()
)

// VersionString gives a full string of the version of the application.
func VersionString() string {
	return fmt.Sprintf(
		"%s on commit %s, built at %s with %s by %s",
		Version,
		Commit,
		BuildTime,
		BuiltWith,
		BuiltBy,
	)
}

// Config is the application configuration, set by environment variables,
// then by an optional .env file.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	LogPath  string `mapstructure:"LOG_PATH"`
	Port     int    `mapstructure:"PORT"`

	// WebhookBaseURL is the public base URL deliveries are sent to, e.g.
	// https://bridge.hive.example.com. The webhook callback URL is derived
	// from it.
	WebhookBaseURL string `mapstructure:"WEBHOOK_BASE_URL"`

	Database  Database  `mapstructure:",squash"`
	Crypto    Crypto    `mapstructure:",squash"`
	GitHub    GitHub    `mapstructure:",squash"`
	Aws       Aws       `mapstructure:",squash"`
	Telemetry Telemetry `mapstructure:",squash"`
}

// Database configures the Postgres connection backing the stores.
type Database struct {
	URL    string `mapstructure:"DATABASE_URL"`
	Schema string `mapstructure:"DATABASE_SCHEMA"`
}

// Crypto configures at-rest encryption of secrets and tokens.
type Crypto struct {
	// EncryptionKey is the hex-encoded 32-byte AES key.
	EncryptionKey   string `mapstructure:"TOKEN_ENCRYPTION_KEY"`
	EncryptionKeyID string `mapstructure:"TOKEN_ENCRYPTION_KEY_ID"`
}

// GitHub configures the platform's GitHub App and API access.
type GitHub struct {
	BaseURL string `mapstructure:"GITHUB_BASE_URL"`
	// GitHub App configuration
	AppID          string `mapstructure:"GITHUB_APP_ID"`
	AppSlug        string `mapstructure:"GITHUB_APP_SLUG"`
	ClientID       string `mapstructure:"GITHUB_CLIENT_ID"`
	PrivateKey     string `mapstructure:"GITHUB_PRIVATE_KEY"`
	PrivateKeyFile string `mapstructure:"GITHUB_PRIVATE_KEY_FILE"`
	InstallationID string `mapstructure:"GITHUB_INSTALLATION_ID"`
	// Or use a simple GitHub token
	Token string `mapstructure:"GITHUB_TOKEN"`
}

// Aws configures the SQS queue webhook deliveries are handed to.
type Aws struct {
	Region      string `mapstructure:"AWS_REGION"`
	SqsQueueURL string `mapstructure:"SQS_QUEUE_URL"`
}

// Telemetry configures metrics export.
type Telemetry struct {
	MetricsExporter string `mapstructure:"METRICS_EXPORTER"`
	MetricsEndpoint string `mapstructure:"METRICS_ENDPOINT"`
}

// WebhookCallbackURL is the callback URL configured on repository webhooks.
func (c Config) WebhookCallbackURL() string {
	return strings.TrimRight(c.WebhookBaseURL, "/") + "/webhooks/github"
}

// GetSecrets returns all secret values present in the config, for log redaction.
func (c Config) GetSecrets() []string {
	candidates := []string{
		c.Crypto.EncryptionKey,
		c.GitHub.PrivateKey,
		c.GitHub.Token,
	}
	secrets := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate != "" {
			secrets = append(secrets, candidate)
		}
	}
	return secrets
}

// MarshalJSON renders the config with secret values masked so it can be
// logged at startup.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config // avoid recursing into this method
	masked := alias(c)
	if masked.Crypto.EncryptionKey != "" {
		masked.Crypto.EncryptionKey = "[REDACTED]"
	}
	if masked.GitHub.PrivateKey != "" {
		masked.GitHub.PrivateKey = "[REDACTED]"
	}
	if masked.GitHub.Token != "" {
		masked.GitHub.Token = "[REDACTED]"
	}
	return json.Marshal(masked)
}

// Option is a function that can be used to configure loading the config.
type Option func(*configOptions)

type configOptions struct {
	configFile string
	viper      *viper.Viper
}

// WithConfigFile sets the exact config file to load.
func WithConfigFile(configFile string) Option {
	return func(cfg *configOptions) {
		cfg.configFile = configFile
	}
}

// WithViper sets a custom viper instance to use. Useful for testing.
func WithViper(v *viper.Viper) Option {
	return func(cfg *configOptions) {
		cfg.viper = v
	}
}

// Load loads config from environment variables and an optional .env file.
func Load(options ...Option) (*Config, error) {
	opts := &configOptions{
		configFile: ".env",
		viper:      viper.GetViper(), // Use the global viper instance by default
	}
	for _, opt := range options {
		opt(opts)
	}

	v := opts.viper
	if v == nil {
		v = viper.New()
		setupViperDefaults(v)
	}

	if opts.configFile != "" {
		v.SetConfigFile(opts.configFile)
		v.SetConfigType("env")
	}

	if err := v.ReadInConfig(); err != nil {
		// Ignore config file not found error
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad is Load but panics if there is an error.
func MustLoad(options ...Option) *Config {
	cfg, err := Load(options...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func init() {
	// Version setup
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if Version == "" {
			Version = buildInfo.Main.Version
		}
		if Commit == "" {
			Commit = buildInfo.Main.Sum
		}
		BuiltWith = buildInfo.GoVersion
	}
	if Version == "" {
		Version = "dev"
	}
	if Commit == "" {
		Commit = "dev"
	}

	setupViperDefaults(viper.GetViper())
}

// setupViperDefaults configures viper with defaults and env binding for all
// configuration fields.
func setupViperDefaults(v *viper.Viper) {
	v.SetDefault(EnvVarLogLevel, DefaultLogLevel)
	v.SetDefault(EnvVarPort, DefaultPort)
	v.SetDefault("GITHUB_BASE_URL", DefaultGitHubBaseURL)
	v.SetDefault("DATABASE_SCHEMA", DefaultDatabaseSchema)
	v.SetDefault("TOKEN_ENCRYPTION_KEY_ID", DefaultEncryptionKeyID)
	v.SetDefault("METRICS_EXPORTER", "stdout")
	v.SetDefault("METRICS_ENDPOINT", "localhost:4317")

	// Handle dashes in CLI flags
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Automatically bind all environment variables based on struct tags
	if err := bindEnvsFromStruct(v, reflect.TypeOf(Config{})); err != nil {
		panic(err)
	}

	v.AutomaticEnv()
}

// bindEnvsFromStruct binds environment variables to viper based on struct tags.
// Avoids having to manually viper.BindEnv for each field.
func bindEnvsFromStruct(v *viper.Viper, t reflect.Type) error {
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("type %s is not a struct", t.Name())
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		// Skip fields without a mapstructure tag
		if tag == "" {
			continue
		}
		if strings.Contains(tag, ",squash") {
			// Handle embedded structs with squash
			if err := bindEnvsFromStruct(v, field.Type); err != nil {
				return err
			}
			continue
		}
		if tag == "-" {
			// Skip ignored fields
			continue
		}
		if err := v.BindEnv(tag); err != nil {
			return fmt.Errorf("failed to bind env %s: %w", tag, err)
		}
	}
	return nil
}
