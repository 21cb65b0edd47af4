// Package pipeline runs the bootstrap stages in their fixed order:
// credential, services, resources, stack. A failed stage stops the run and
// nothing created by earlier stages is rolled back.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/blackwell-systems/gcp-bootstrap/internal/config"
	"github.com/blackwell-systems/gcp-bootstrap/internal/credential"
	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
	"github.com/blackwell-systems/gcp-bootstrap/internal/gcp"
	"github.com/blackwell-systems/gcp-bootstrap/internal/manifest"
	"github.com/blackwell-systems/gcp-bootstrap/internal/provision"
	"github.com/blackwell-systems/gcp-bootstrap/internal/retry"
	"github.com/blackwell-systems/gcp-bootstrap/internal/services"
	"github.com/blackwell-systems/gcp-bootstrap/internal/stack"
)

// Clients are the remote capabilities a run talks to.
type Clients struct {
	ServiceUsage gcp.ServiceUsage
	Resources    gcp.Resources
	Secrets      gcp.Secrets
}

// ClientFactory builds the remote clients once the credential is known.
type ClientFactory func(ctx context.Context, cred *credential.Artifact) (*Clients, error)

// Request describes one run.
type Request struct {
	Config  *config.Config
	Clients ClientFactory

	// Runner and HTTPClient override how the stack is driven and probed.
	Runner     stack.Runner
	HTTPClient *http.Client

	// SkipLaunch stops after the resources stage.
	SkipLaunch bool
	// Pull pulls images before the stack is started.
	Pull bool

	Logger *slog.Logger
}

// Result reports what each completed stage produced.
type Result struct {
	Credential *credential.Artifact
	ProjectID  string
	Services   services.State
	Resources  []provision.Handle
	Stack      *stack.Handle
}

// Run executes the stages in order.
func Run(ctx context.Context, req Request) (*Result, error) {
	cfg := req.Config
	log := req.Logger
	if log == nil {
		log = slog.Default()
	}

	extra, err := loadManifest(cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	// Credential
	cred, err := credential.Verify(cfg.CredentialsFile)
	if err != nil {
		return result, err
	}
	result.Credential = cred
	result.ProjectID = ProjectID(cfg, cred)
	log.Info("credential verified", "project", result.ProjectID, "client_email", cred.ClientEmail)

	clients, err := req.Clients(ctx, cred)
	if err != nil {
		return result, apperrors.AuthFailure(result.ProjectID, err)
	}

	policy := retry.Policy{
		Attempts: cfg.Retry.Attempts,
		Initial:  cfg.Retry.InitialBackoff,
		Max:      cfg.Retry.MaxBackoff,
	}

	// Services
	if err := ctx.Err(); err != nil {
		return result, apperrors.Cancelled(apperrors.StageServices, err)
	}
	enabler := services.NewEnabler(
		retry.ServiceUsage(clients.ServiceUsage, policy),
		services.WithConcurrency(cfg.Concurrency),
		services.WithCallTimeout(cfg.CallTimeout),
		services.WithLogger(log),
	)
	state, err := enabler.EnsureEnabled(ctx, result.ProjectID, Services(cfg))
	result.Services = state
	if err != nil {
		return result, err
	}

	// Resources
	if err := ctx.Err(); err != nil {
		return result, apperrors.Cancelled(apperrors.StageResources, err)
	}
	provisioner := provision.NewProvisioner(
		retry.Resources(clients.Resources, policy),
		result.ProjectID,
		provision.WithConcurrency(cfg.Concurrency),
		provision.WithCallTimeout(cfg.CallTimeout),
		provision.WithLogger(log),
	)
	handles, err := provisioner.EnsureAll(ctx, Descriptors(cfg, result.ProjectID, extra))
	if err != nil {
		return result, err
	}
	result.Resources = handles

	if req.SkipLaunch {
		return result, nil
	}

	// Stack
	if err := ctx.Err(); err != nil {
		return result, apperrors.Cancelled(apperrors.StageStack, err)
	}
	secretKey, err := resolveSecretKey(ctx, cfg, clients.Secrets, result.ProjectID)
	if err != nil {
		return result, err
	}

	opts := StackOptions(cfg)
	opts.Pull = req.Pull
	opts.Runner = req.Runner
	opts.HTTPClient = req.HTTPClient
	opts.Env = StackEnv(cfg, result.ProjectID, secretKey)

	handle, err := stack.Launch(ctx, opts)
	if err != nil {
		return result, err
	}
	result.Stack = handle
	log.Info("stack healthy", "url", handle.URL, "services", handle.Services)

	return result, nil
}

// ProjectID picks the configured project id, falling back to the one in
// the credential.
func ProjectID(cfg *config.Config, cred *credential.Artifact) string {
	if cfg.ProjectID != "" {
		return cfg.ProjectID
	}
	return cred.ProjectID
}

// Services converts the configured service names.
func Services(cfg *config.Config) []services.Descriptor {
	out := make([]services.Descriptor, 0, len(cfg.RequiredServices))
	for _, s := range cfg.RequiredServices {
		out = append(out, services.Descriptor(strings.TrimSpace(s)))
	}
	return out
}

// Descriptors lists the configured bucket, dataset and topic followed by the
// manifest entries. Repeated entries are dropped.
func Descriptors(cfg *config.Config, projectID string, extra *manifest.Manifest) []provision.Descriptor {
	all := []provision.Descriptor{
		provision.BucketSpec{Name: cfg.BucketName(projectID), Location: cfg.Bucket.Location},
		provision.DatasetSpec{ID: cfg.Dataset.ID, Location: cfg.Dataset.Location},
		provision.TopicSpec{Name: cfg.Topic.Name},
	}
	if extra != nil {
		all = append(all, extra.Descriptors(cfg.Bucket.Location)...)
	}

	seen := make(map[string]bool, len(all))
	out := make([]provision.Descriptor, 0, len(all))
	for _, d := range all {
		key := string(d.Kind()) + "/" + d.Handle()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, d)
	}
	return out
}

// StackOptions maps the stack configuration. Env is left to the caller.
func StackOptions(cfg *config.Config) stack.Options {
	return stack.Options{
		ComposeFile:    cfg.Stack.ComposeFile,
		ProjectName:    cfg.Stack.ComposeProject,
		Command:        cfg.Stack.ComposeCommand,
		Build:          cfg.Stack.Build,
		Port:           cfg.Stack.Port,
		HealthPath:     cfg.Stack.HealthPath,
		HealthTimeout:  cfg.Stack.HealthTimeout,
		HealthInterval: cfg.Stack.HealthInterval,
	}
}

// StackEnv is the environment handed to the compose stack.
func StackEnv(cfg *config.Config, projectID, secretKey string) map[string]string {
	return stack.BuildEnv(stack.EnvSpec{
		ProjectID:        projectID,
		Bucket:           cfg.BucketName(projectID),
		Dataset:          cfg.Dataset.ID,
		Topic:            cfg.Topic.Name,
		Port:             cfg.Stack.Port,
		CredentialsFile:  cfg.CredentialsFile,
		SecretKey:        secretKey,
		StorageEmulator:  cfg.Emulators.Storage,
		BigQueryEmulator: cfg.Emulators.BigQuery,
		PubSubEmulator:   cfg.Emulators.PubSub,
	})
}

func loadManifest(cfg *config.Config) (*manifest.Manifest, error) {
	if cfg.ManifestFile == "" {
		return nil, nil
	}

	m, err := manifest.Load(cfg.ManifestFile)
	if err != nil {
		return nil, apperrors.Config("failed to load manifest", err)
	}

	if result := m.Validate(cfg.Bucket.Location); !result.Valid {
		return nil, apperrors.Config(
			fmt.Sprintf("invalid manifest %s: %s", cfg.ManifestFile, strings.Join(result.Errors, "; ")),
			nil,
		)
	}
	return m, nil
}

func resolveSecretKey(ctx context.Context, cfg *config.Config, secrets gcp.Secrets, projectID string) (string, error) {
	if cfg.Stack.SecretKeyRef == "" {
		return "", nil
	}
	if secrets == nil {
		return "", apperrors.Launch("secret-key-ref is set but no secret client is available", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
	defer cancel()

	payload, err := secrets.AccessSecret(ctx, projectID, cfg.Stack.SecretKeyRef)
	if err != nil {
		return "", apperrors.Launch(fmt.Sprintf("failed to read secret %s", cfg.Stack.SecretKeyRef), err)
	}
	return strings.TrimSpace(string(payload)), nil
}
