package pipeline

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/gcp-bootstrap/internal/config"
	"github.com/blackwell-systems/gcp-bootstrap/internal/credential"
	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
	"github.com/blackwell-systems/gcp-bootstrap/internal/gcp/fake"
	"github.com/blackwell-systems/gcp-bootstrap/internal/provision"
	"github.com/blackwell-systems/gcp-bootstrap/internal/stack"
)

const demoCredential = `{
  "type": "service_account",
  "project_id": "demo",
  "client_email": "bootstrap@demo.iam.gserviceaccount.com"
}`

const composeYAML = `
services:
  web:
    image: example/data-analysis:latest
    ports:
      - "${PORT}:8080"
`

type stubRunner struct {
	mu   sync.Mutex
	envs [][]string
	args [][]string
}

func (r *stubRunner) Run(_ context.Context, env []string, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	r.args = append(r.args, append([]string{name}, args...))
	return nil, nil
}

type fixture struct {
	cfg    *config.Config
	cloud  *fake.Cloud
	runner *stubRunner
}

func newFixture(t *testing.T, healthStatus int) *fixture {
	t.Helper()
	dir := t.TempDir()

	credPath := filepath.Join(dir, "service-account.json")
	require.NoError(t, os.WriteFile(credPath, []byte(demoCredential), 0o600))
	composePath := filepath.Join(dir, "docker-compose.yml")
	require.NoError(t, os.WriteFile(composePath, []byte(composeYAML), 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(healthStatus)
	}))
	t.Cleanup(srv.Close)
	port := srv.Listener.Addr().(*net.TCPAddr).Port

	cfg := &config.Config{
		CredentialsFile:  credPath,
		RequiredServices: []string{"storage.googleapis.com"},
		Bucket:           config.BucketConfig{Name: "demo-bucket", Location: "US"},
		Dataset:          config.DatasetConfig{ID: "analysis_dataset", Location: "US"},
		Topic:            config.TopicConfig{Name: "sql-import-topic"},
		Concurrency:      4,
		CallTimeout:      time.Second,
		Retry:            config.RetryConfig{Attempts: 1},
		Stack: config.StackConfig{
			ComposeFile:    composePath,
			ComposeCommand: "docker-compose",
			Build:          true,
			Port:           port,
			HealthPath:     "/healthz",
			HealthTimeout:  300 * time.Millisecond,
			HealthInterval: 20 * time.Millisecond,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}

	return &fixture{cfg: cfg, cloud: fake.New(), runner: &stubRunner{}}
}

func (f *fixture) request() Request {
	return Request{
		Config: f.cfg,
		Clients: func(ctx context.Context, cred *credential.Artifact) (*Clients, error) {
			return &Clients{ServiceUsage: f.cloud, Resources: f.cloud, Secrets: f.cloud}, nil
		},
		Runner: f.runner,
	}
}

func TestRun_DemoProject(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	result, err := Run(context.Background(), f.request())

	require.NoError(t, err)
	assert.Equal(t, "demo", result.ProjectID)
	assert.True(t, result.Services["storage.googleapis.com"])
	require.NotEmpty(t, result.Resources)
	assert.Equal(t, provision.Handle{Kind: provision.KindBucket, Name: "demo-bucket", Outcome: provision.Created}, result.Resources[0])
	assert.Equal(t, []string{"demo-bucket"}, f.cloud.Buckets())
	require.NotNil(t, result.Stack)
	assert.Contains(t, f.runner.envs[0], "BUCKET_NAME=demo-bucket")
	assert.Contains(t, f.runner.envs[0], "GCP_PROJECT=demo")
}

func TestRun_SecondRunCreatesNothing(t *testing.T) {
	f := newFixture(t, http.StatusOK)

	_, err := Run(context.Background(), f.request())
	require.NoError(t, err)
	enables := f.cloud.Calls("enable")

	result, err := Run(context.Background(), f.request())

	require.NoError(t, err)
	assert.Equal(t, enables, f.cloud.Calls("enable"), "enabled services are not enabled again")
	assert.Equal(t, []string{"demo-bucket"}, f.cloud.Buckets())
	for _, h := range result.Resources {
		assert.Equal(t, provision.Existing, h.Outcome, h.String())
	}
}

func TestRun_MissingCredentialMakesNoRemoteCalls(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.cfg.CredentialsFile = filepath.Join(t.TempDir(), "absent.json")

	_, err := Run(context.Background(), f.request())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrMissingCredential))
	assert.Equal(t, 3, apperrors.ExitCode(err))
	assert.Zero(t, f.cloud.TotalCalls())
	assert.Empty(t, f.runner.args)
}

func TestRun_AuthFailureStopsBeforeResources(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.cloud.ListErr = errors.New("401 unauthenticated")

	_, err := Run(context.Background(), f.request())

	assert.True(t, errors.Is(err, apperrors.ErrAuthFailure))
	assert.Zero(t, f.cloud.Calls("enable"))
	assert.Zero(t, f.cloud.Calls("bucket"))
	assert.Empty(t, f.runner.args)
}

func TestRun_ProvisionErrorSkipsStack(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.cloud.CreateErr["analysis_dataset"] = errors.New("permission denied")

	_, err := Run(context.Background(), f.request())

	assert.True(t, errors.Is(err, apperrors.ErrProvision))
	assert.Equal(t, 7, apperrors.ExitCode(err))
	assert.Empty(t, f.runner.args)
}

func TestRun_HealthTimeout(t *testing.T) {
	f := newFixture(t, http.StatusServiceUnavailable)

	_, err := Run(context.Background(), f.request())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrLaunch))
	assert.NotZero(t, apperrors.ExitCode(err))
	assert.Equal(t, []string{"demo-bucket"}, f.cloud.Buckets(), "resources are kept when the stack fails")
}

func TestRun_SkipLaunch(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	req := f.request()
	req.SkipLaunch = true

	result, err := Run(context.Background(), req)

	require.NoError(t, err)
	assert.Nil(t, result.Stack)
	assert.Len(t, result.Resources, 3)
	assert.Empty(t, f.runner.args)
}

func TestRun_SecretKeyInjected(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.cfg.Stack.SecretKeyRef = "flask-secret"
	f.cloud.PutSecret("demo", "flask-secret", []byte("s3cr3t\n"))

	_, err := Run(context.Background(), f.request())

	require.NoError(t, err)
	assert.Contains(t, f.runner.envs[0], "FLASK_SECRET_KEY=s3cr3t")
}

func TestRun_ExplicitProjectWins(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	f.cfg.ProjectID = "other-project"
	req := f.request()
	req.SkipLaunch = true

	result, err := Run(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "other-project", result.ProjectID)
	assert.Contains(t, f.cloud.Datasets(), "other-project.analysis_dataset")
}

func TestRun_ManifestResources(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
buckets:
  - name: demo-archive
topics:
  - name: sql-import-topic
  - name: results-topic
`), 0o644))
	f.cfg.ManifestFile = path
	req := f.request()
	req.SkipLaunch = true

	result, err := Run(context.Background(), req)

	require.NoError(t, err)
	assert.Len(t, result.Resources, 5, "the duplicate topic is provisioned once")
	assert.Equal(t, []string{"demo-archive", "demo-bucket"}, f.cloud.Buckets())
}

func TestRun_InvalidManifest(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("buckets:\n  - name: x\n"), 0o644))
	f.cfg.ManifestFile = path

	_, err := Run(context.Background(), f.request())

	assert.True(t, errors.Is(err, apperrors.ErrConfig))
	assert.Zero(t, f.cloud.TotalCalls())
}

func TestDescriptors_DerivedBucketName(t *testing.T) {
	cfg := &config.Config{
		Bucket:  config.BucketConfig{Location: "EU"},
		Dataset: config.DatasetConfig{ID: "analysis_dataset", Location: "EU"},
		Topic:   config.TopicConfig{Name: "sql-import-topic"},
	}

	got := Descriptors(cfg, "demo-project", nil)

	require.Len(t, got, 3)
	assert.Equal(t, provision.BucketSpec{Name: "demo-project-data-analysis", Location: "EU"}, got[0])
	assert.Equal(t, provision.KindTopic, got[2].Kind())
}

func TestRun_CancelledDuringResources(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	req := f.request()
	req.SkipLaunch = true
	_, err := Run(context.Background(), req)
	require.NoError(t, err)

	f.cfg.Topic.Name = "results-topic"
	f.cloud.Block = true
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err = Run(ctx, f.request())

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, apperrors.ErrProvision))
	assert.Equal(t, 1, apperrors.ExitCode(err))
	assert.Empty(t, f.runner.args, "the stack is not launched")
	assert.Equal(t, []string{"demo-bucket"}, f.cloud.Buckets(), "earlier resources are kept")
	assert.Equal(t, []string{"projects/demo/topics/sql-import-topic"}, f.cloud.Topics())
}

func TestStackEnv_LetsStatusReadComposeFile(t *testing.T) {
	f := newFixture(t, http.StatusOK)
	opts := StackOptions(f.cfg)
	opts.Env = StackEnv(f.cfg, "demo", "")

	status, err := stack.Status(context.Background(), opts)

	require.NoError(t, err)
	assert.Equal(t, []string{"web"}, status.Services)
	assert.Equal(t, stack.ServiceUp, status.App)
	assert.Equal(t, "demo-bucket", opts.Env["BUCKET_NAME"])
	assert.NotContains(t, opts.Env, "FLASK_SECRET_KEY")
}
