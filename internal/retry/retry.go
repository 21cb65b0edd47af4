// Package retry layers an explicit, bounded retry policy over the remote
// capabilities. The capabilities themselves never retry.
package retry

import (
	"context"
	"time"

	gax "github.com/googleapis/gax-go/v2"

	"github.com/blackwell-systems/gcp-bootstrap/internal/gcp"
)

// Policy bounds how often a failed call is repeated.
type Policy struct {
	// Attempts is the total number of tries; values below 2 disable retries.
	Attempts   int
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Retryable decides whether an error is worth another attempt.
	// Defaults to gcp.IsTransient.
	Retryable func(error) bool
}

// None performs every call exactly once.
var None = Policy{Attempts: 1}

// Enabled reports whether the policy retries at all.
func (p Policy) Enabled() bool {
	return p.Attempts > 1
}

// Do runs fn, retrying transient failures until the attempts are used up or
// ctx is done.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if !p.Enabled() {
		return fn(ctx)
	}
	call := func(ctx context.Context, _ gax.CallSettings) error {
		return fn(ctx)
	}
	return gax.Invoke(ctx, call, gax.WithRetry(func() gax.Retryer {
		return p.retryer()
	}))
}

func (p Policy) retryer() *boundedRetryer {
	retryable := p.Retryable
	if retryable == nil {
		retryable = gcp.IsTransient
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 2
	}
	return &boundedRetryer{
		remaining: p.Attempts - 1,
		retryable: retryable,
		backoff: gax.Backoff{
			Initial:    p.Initial,
			Max:        p.Max,
			Multiplier: multiplier,
		},
	}
}

type boundedRetryer struct {
	remaining int
	retryable func(error) bool
	backoff   gax.Backoff
}

// Retry implements gax.Retryer.
func (r *boundedRetryer) Retry(err error) (time.Duration, bool) {
	if r.remaining <= 0 || gcp.IsAlreadyExists(err) || !r.retryable(err) {
		return 0, false
	}
	r.remaining--
	return r.backoff.Pause(), true
}

type serviceUsage struct {
	next   gcp.ServiceUsage
	policy Policy
}

// ServiceUsage wraps next with the policy.
func ServiceUsage(next gcp.ServiceUsage, policy Policy) gcp.ServiceUsage {
	if !policy.Enabled() {
		return next
	}
	return &serviceUsage{next: next, policy: policy}
}

func (s *serviceUsage) ListEnabled(ctx context.Context, projectID string) ([]string, error) {
	var names []string
	err := s.policy.Do(ctx, func(ctx context.Context) error {
		var err error
		names, err = s.next.ListEnabled(ctx, projectID)
		return err
	})
	return names, err
}

func (s *serviceUsage) Enable(ctx context.Context, projectID, service string) error {
	return s.policy.Do(ctx, func(ctx context.Context) error {
		return s.next.Enable(ctx, projectID, service)
	})
}

type resources struct {
	next   gcp.Resources
	policy Policy
}

// Resources wraps next with the policy. Conflicts are never retried.
func Resources(next gcp.Resources, policy Policy) gcp.Resources {
	if !policy.Enabled() {
		return next
	}
	return &resources{next: next, policy: policy}
}

func (r *resources) CreateBucket(ctx context.Context, projectID, name, location string) error {
	return r.policy.Do(ctx, func(ctx context.Context) error {
		return r.next.CreateBucket(ctx, projectID, name, location)
	})
}

func (r *resources) CreateDataset(ctx context.Context, projectID, datasetID, location string) error {
	return r.policy.Do(ctx, func(ctx context.Context) error {
		return r.next.CreateDataset(ctx, projectID, datasetID, location)
	})
}

func (r *resources) CreateTopic(ctx context.Context, projectID, name string) error {
	return r.policy.Do(ctx, func(ctx context.Context) error {
		return r.next.CreateTopic(ctx, projectID, name)
	})
}
