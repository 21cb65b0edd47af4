package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
	"github.com/blackwell-systems/gcp-bootstrap/internal/gcp/fake"
)

var required = []Descriptor{
	"storage.googleapis.com",
	"bigquery.googleapis.com",
	"pubsub.googleapis.com",
}

func TestEnsureEnabled_EnablesMissing(t *testing.T) {
	cloud := fake.New()
	cloud.EnableService("demo", "storage.googleapis.com")
	enabler := NewEnabler(cloud, WithConcurrency(2))

	state, err := enabler.EnsureEnabled(context.Background(), "demo", required)

	require.NoError(t, err)
	assert.Empty(t, state.Missing())
	assert.Equal(t, 1, cloud.Calls("list"))
	assert.Equal(t, 2, cloud.Calls("enable"))

	listed, err := cloud.ListEnabled(context.Background(), "demo")
	require.NoError(t, err)
	for _, d := range required {
		assert.Contains(t, listed, string(d))
	}
}

func TestEnsureEnabled_Idempotent(t *testing.T) {
	cloud := fake.New()
	enabler := NewEnabler(cloud)

	_, err := enabler.EnsureEnabled(context.Background(), "demo", required)
	require.NoError(t, err)
	enableCalls := cloud.Calls("enable")

	state, err := enabler.EnsureEnabled(context.Background(), "demo", required)

	require.NoError(t, err)
	assert.Len(t, state, len(required))
	assert.Equal(t, enableCalls, cloud.Calls("enable"), "second run must not enable anything")
	assert.Equal(t, 2, cloud.Calls("list"))
}

func TestEnsureEnabled_ListFailureIsAuthFailure(t *testing.T) {
	cloud := fake.New()
	cloud.ListErr = errors.New("401 unauthenticated")
	enabler := NewEnabler(cloud)

	state, err := enabler.EnsureEnabled(context.Background(), "demo", required)

	require.Error(t, err)
	assert.Nil(t, state)
	assert.True(t, errors.Is(err, apperrors.ErrAuthFailure))
	assert.Equal(t, 0, cloud.Calls("enable"))
}

func TestEnsureEnabled_FailureDoesNotSuppressOthers(t *testing.T) {
	cloud := fake.New()
	cloud.EnableErr["bigquery.googleapis.com"] = errors.New("billing disabled")
	cloud.EnableErr["pubsub.googleapis.com"] = errors.New("permission denied")
	enabler := NewEnabler(cloud, WithConcurrency(1))

	state, err := enabler.EnsureEnabled(context.Background(), "demo", required)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrServiceEnable))
	assert.Equal(t, 3, cloud.Calls("enable"))
	assert.True(t, state["storage.googleapis.com"])
	assert.Equal(t, []Descriptor{"bigquery.googleapis.com", "pubsub.googleapis.com"}, state.Missing())

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Len(t, multierr.Errors(appErr.Cause), 2)
	assert.Contains(t, err.Error(), "bigquery.googleapis.com")
	assert.Contains(t, err.Error(), "pubsub.googleapis.com")
}

func TestEnsureEnabled_DeduplicatesRequired(t *testing.T) {
	cloud := fake.New()
	enabler := NewEnabler(cloud)

	state, err := enabler.EnsureEnabled(context.Background(), "demo",
		[]Descriptor{"storage.googleapis.com", "storage.googleapis.com"})

	require.NoError(t, err)
	assert.Len(t, state, 1)
	assert.Equal(t, 1, cloud.Calls("enable"))
}

func TestEnsureEnabled_ProjectScoped(t *testing.T) {
	cloud := fake.New()
	cloud.EnableService("other", "storage.googleapis.com")
	enabler := NewEnabler(cloud)

	_, err := enabler.EnsureEnabled(context.Background(), "demo", []Descriptor{"storage.googleapis.com"})

	require.NoError(t, err)
	assert.Equal(t, 1, cloud.Calls("enable"))
}

func TestEnsureEnabled_CancelledIsNotAuthFailure(t *testing.T) {
	cloud := fake.New()
	enabler := NewEnabler(cloud)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := enabler.EnsureEnabled(ctx, "demo", required)

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, apperrors.ErrAuthFailure))
	assert.Equal(t, 1, apperrors.ExitCode(err))
	assert.Zero(t, cloud.Calls("enable"))
}
