package stack

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
)

// EnvSpec holds the values injected into the application containers.
type EnvSpec struct {
	ProjectID       string
	Bucket          string
	Dataset         string
	Topic           string
	Port            int
	CredentialsFile string
	SecretKey       string

	StorageEmulator  string
	BigQueryEmulator string
	PubSubEmulator   string
}

// BuildEnv renders the application's environment contract.
func BuildEnv(e EnvSpec) map[string]string {
	env := map[string]string{
		"GCP_PROJECT":                    e.ProjectID,
		"BUCKET_NAME":                    e.Bucket,
		"BIGQUERY_DATASET":               e.Dataset,
		"PUBSUB_TOPIC_FOR_SQL_IMPORT":    e.Topic,
		"PORT":                           strconv.Itoa(e.Port),
		"GOOGLE_APPLICATION_CREDENTIALS": e.CredentialsFile,
	}
	optional := map[string]string{
		"FLASK_SECRET_KEY":       e.SecretKey,
		"STORAGE_EMULATOR_HOST":  e.StorageEmulator,
		"BIGQUERY_EMULATOR_HOST": e.BigQueryEmulator,
		"PUBSUB_EMULATOR_HOST":   e.PubSubEmulator,
	}
	for k, v := range optional {
		if v != "" {
			env[k] = v
		}
	}
	return env
}

// Handle is a running stack. It owns no cloud resources.
type Handle struct {
	Services []string
	URL      string

	opts Options
	once sync.Once
	err  error
}

// Shutdown stops the stack. Only the first call runs compose down.
func (h *Handle) Shutdown(ctx context.Context) error {
	h.once.Do(func() {
		slog.Info("stopping stack", "compose_file", h.opts.ComposeFile)
		h.err = Stop(ctx, h.opts)
	})
	return h.err
}

// Launch starts the stack and waits until the app's health endpoint
// answers 200. A stack that never becomes healthy is left running so its
// logs can be inspected.
func Launch(ctx context.Context, opts Options) (*Handle, error) {
	services, err := Inspect(ctx, opts)
	if err != nil {
		return nil, apperrors.Launch("invalid compose file", err)
	}
	slog.Debug("compose file loaded", "file", opts.ComposeFile, "services", services)

	if opts.Pull {
		if err := Pull(ctx, opts); err != nil {
			if ctx.Err() != nil {
				return nil, apperrors.Cancelled(apperrors.StageStack, ctx.Err())
			}
			// Local images may still be usable.
			slog.Warn("failed to pull images", "error", err)
		}
	}

	if err := Up(ctx, opts); err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Cancelled(apperrors.StageStack, ctx.Err())
		}
		return nil, apperrors.Launch("failed to start stack", err)
	}

	url := opts.healthURL()
	slog.Info("waiting for stack health", "url", url, "timeout", opts.HealthTimeout)
	if err := WaitHealthy(ctx, opts); err != nil {
		return nil, err
	}

	return &Handle{Services: services, URL: url, opts: opts}, nil
}

// WaitHealthy probes the health endpoint every HealthInterval until it
// answers 200 or HealthTimeout elapses.
func WaitHealthy(ctx context.Context, opts Options) error {
	url := opts.healthURL()
	interval := opts.HealthInterval
	if interval <= 0 {
		interval = time.Second
	}

	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, opts.HealthTimeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if checkHealth(ctx, opts.httpClient(), url) == ServiceUp {
			return nil
		}

		select {
		case <-ctx.Done():
			if parent.Err() != nil {
				return apperrors.Cancelled(apperrors.StageStack, parent.Err())
			}
			return apperrors.Launch(
				fmt.Sprintf("stack did not become healthy at %s within %s", url, opts.HealthTimeout),
				ctx.Err(),
			)
		case <-ticker.C:
		}
	}
}
