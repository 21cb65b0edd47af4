// Package config provides configuration management for the gcp-bootstrap CLI.
//
// It implements the disciplined Viper pattern where Viper stays contained
// in this package and the rest of the codebase receives explicit Config structs.
// Configuration sources are resolved in this order: flags > env > config file > defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the explicit configuration struct
// This is what the rest of the codebase sees
type Config struct {
	CredentialsFile  string   `validate:"required"`
	ProjectID        string   `validate:"omitempty,min=6,max=30"`
	RequiredServices []string `validate:"dive,required,hostname"`
	ManifestFile     string

	Bucket  BucketConfig
	Dataset DatasetConfig
	Topic   TopicConfig

	Concurrency int `validate:"min=1,max=32"`
	CallTimeout time.Duration
	Retry       RetryConfig

	Stack     StackConfig
	Emulators EmulatorConfig

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`
}

// BucketConfig names the upload bucket
type BucketConfig struct {
	// Name defaults to "<project>-data-analysis" when empty
	Name     string
	Location string `validate:"required"`
}

// DatasetConfig names the BigQuery dataset
type DatasetConfig struct {
	ID       string `validate:"required"`
	Location string `validate:"required"`
}

// TopicConfig names the Pub/Sub topic
type TopicConfig struct {
	Name string `validate:"required"`
}

// RetryConfig is the caller-side retry policy for remote calls
type RetryConfig struct {
	Attempts       int `validate:"min=1,max=10"`
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// StackConfig describes the docker-compose stack
type StackConfig struct {
	ComposeFile    string `validate:"required"`
	ComposeProject string
	ComposeCommand string `validate:"required"`
	Build          bool
	Port           int
	HealthPath     string `validate:"startswith=/"`
	HealthTimeout  time.Duration
	HealthInterval time.Duration
	// SecretKeyRef is a Secret Manager secret injected as the app's secret key
	SecretKeyRef string
}

// EmulatorConfig points remote APIs at local emulators
type EmulatorConfig struct {
	Storage  string
	BigQuery string
	PubSub   string
}

// DefaultRequiredServices are the APIs the application needs
var DefaultRequiredServices = []string{
	"storage.googleapis.com",
	"bigquery.googleapis.com",
	"pubsub.googleapis.com",
}

var validate = validator.New()

// Init initializes viper with defaults and config file paths
func Init() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.AddConfigPath("$HOME/.gcp-bootstrap")
	viper.AddConfigPath(".")

	SetDefaults(viper.GetViper())

	viper.SetEnvPrefix("GCP_BOOTSTRAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return nil
}

// SetDefaults registers every key with its default value
func SetDefaults(v *viper.Viper) {
	v.SetDefault("credentials-file", "./service-account.json")
	v.SetDefault("project-id", "")
	v.SetDefault("required-services", DefaultRequiredServices)
	v.SetDefault("manifest-file", "")

	v.SetDefault("bucket-name", "")
	v.SetDefault("bucket-location", "US")
	v.SetDefault("dataset-id", "analysis_dataset")
	v.SetDefault("dataset-location", "US")
	v.SetDefault("topic-name", "sql-import-topic")

	v.SetDefault("concurrency", 4)
	v.SetDefault("call-timeout", time.Minute)
	v.SetDefault("retry-attempts", 1)
	v.SetDefault("retry-initial-backoff", time.Second)
	v.SetDefault("retry-max-backoff", 10*time.Second)

	v.SetDefault("compose-file", "docker-compose.yml")
	v.SetDefault("compose-project", "")
	v.SetDefault("compose-command", "docker-compose")
	v.SetDefault("build", true)
	v.SetDefault("port", 8080)
	v.SetDefault("health-path", "/healthz")
	v.SetDefault("health-timeout", 2*time.Minute)
	v.SetDefault("health-interval", 2*time.Second)
	v.SetDefault("secret-key-ref", "")

	v.SetDefault("emulator-storage", "")
	v.SetDefault("emulator-bigquery", "")
	v.SetDefault("emulator-pubsub", "")

	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")
}

// Load reads from all sources and returns explicit Config
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom builds a Config from the given viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		CredentialsFile:  v.GetString("credentials-file"),
		ProjectID:        v.GetString("project-id"),
		RequiredServices: v.GetStringSlice("required-services"),
		ManifestFile:     v.GetString("manifest-file"),
		Bucket: BucketConfig{
			Name:     v.GetString("bucket-name"),
			Location: v.GetString("bucket-location"),
		},
		Dataset: DatasetConfig{
			ID:       v.GetString("dataset-id"),
			Location: v.GetString("dataset-location"),
		},
		Topic: TopicConfig{
			Name: v.GetString("topic-name"),
		},
		Concurrency: v.GetInt("concurrency"),
		CallTimeout: v.GetDuration("call-timeout"),
		Retry: RetryConfig{
			Attempts:       v.GetInt("retry-attempts"),
			InitialBackoff: v.GetDuration("retry-initial-backoff"),
			MaxBackoff:     v.GetDuration("retry-max-backoff"),
		},
		Stack: StackConfig{
			ComposeFile:    v.GetString("compose-file"),
			ComposeProject: v.GetString("compose-project"),
			ComposeCommand: v.GetString("compose-command"),
			Build:          v.GetBool("build"),
			Port:           v.GetInt("port"),
			HealthPath:     v.GetString("health-path"),
			HealthTimeout:  v.GetDuration("health-timeout"),
			HealthInterval: v.GetDuration("health-interval"),
			SecretKeyRef:   v.GetString("secret-key-ref"),
		},
		Emulators: EmulatorConfig{
			Storage:  v.GetString("emulator-storage"),
			BigQuery: v.GetString("emulator-bigquery"),
			PubSub:   v.GetString("emulator-pubsub"),
		},
		LogLevel:  strings.ToLower(v.GetString("log-level")),
		LogFormat: strings.ToLower(v.GetString("log-format")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures config is sane
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if strings.TrimSpace(c.Stack.ComposeCommand) == "" {
		return fmt.Errorf("compose-command must not be blank")
	}

	if len(c.RequiredServices) == 0 {
		return fmt.Errorf("required-services must list at least one service")
	}

	if c.Stack.Port < 1 || c.Stack.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Stack.Port)
	}

	if c.CallTimeout <= 0 {
		return fmt.Errorf("invalid call-timeout: %s (must be positive)", c.CallTimeout)
	}

	if c.Stack.HealthTimeout <= 0 {
		return fmt.Errorf("invalid health-timeout: %s (must be positive)", c.Stack.HealthTimeout)
	}

	if c.Stack.HealthInterval <= 0 || c.Stack.HealthInterval > c.Stack.HealthTimeout {
		return fmt.Errorf("invalid health-interval: %s (must be positive and below health-timeout)", c.Stack.HealthInterval)
	}

	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		return fmt.Errorf("retry-max-backoff %s is below retry-initial-backoff %s", c.Retry.MaxBackoff, c.Retry.InitialBackoff)
	}

	return nil
}

// BucketName returns the configured bucket name or the derived default
func (c *Config) BucketName(projectID string) string {
	if c.Bucket.Name != "" {
		return c.Bucket.Name
	}
	return projectID + "-data-analysis"
}

// Display shows current config (for gcp-bootstrap config)
func Display() (string, error) {
	cfg, err := Load()
	if err != nil {
		return "", err
	}

	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "(not found)"
	}

	projectID := cfg.ProjectID
	bucketName := cfg.Bucket.Name
	if projectID == "" {
		projectID = "(from credentials file)"
		if bucketName == "" {
			bucketName = "<project-id>-data-analysis"
		}
	} else {
		bucketName = cfg.BucketName(projectID)
	}

	return fmt.Sprintf(`Configuration:
  credentials-file:   %s
  project-id:         %s
  required-services:  %s
  manifest-file:      %s

Resources:
  bucket:             %s (%s)
  dataset:            %s (%s)
  topic:              %s

Stack:
  compose-file:       %s
  compose-command:    %s
  build:              %t
  port:               %d
  health:             %s (timeout %s)

Sources:
  Config file:        %s
  Environment:        GCP_BOOTSTRAP_*
  Flags:              (per command)
`,
		cfg.CredentialsFile,
		projectID,
		strings.Join(cfg.RequiredServices, ", "),
		cfg.ManifestFile,
		bucketName, cfg.Bucket.Location,
		cfg.Dataset.ID, cfg.Dataset.Location,
		cfg.Topic.Name,
		cfg.Stack.ComposeFile,
		cfg.Stack.ComposeCommand,
		cfg.Stack.Build,
		cfg.Stack.Port,
		cfg.Stack.HealthPath, cfg.Stack.HealthTimeout,
		configFile,
	), nil
}
