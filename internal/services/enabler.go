// Package services makes sure the required Google Cloud APIs are enabled on
// a project before anything else touches it.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
	"github.com/blackwell-systems/gcp-bootstrap/internal/gcp"
)

// Descriptor names a remote API surface, e.g. "storage.googleapis.com".
type Descriptor string

// State maps each required descriptor to whether it is enabled.
type State map[Descriptor]bool

// Missing returns the descriptors that are not enabled, sorted.
func (s State) Missing() []Descriptor {
	var out []Descriptor
	for d, on := range s {
		if !on {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Enabler ensures services are enabled.
type Enabler struct {
	client      gcp.ServiceUsage
	concurrency int
	callTimeout time.Duration
	logger      *slog.Logger
}

// Option customises an Enabler.
type Option func(*Enabler)

// WithConcurrency bounds the number of parallel enable calls.
func WithConcurrency(n int) Option {
	return func(e *Enabler) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithCallTimeout bounds each remote call.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Enabler) {
		if d > 0 {
			e.callTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Enabler) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEnabler creates an Enabler backed by client.
func NewEnabler(client gcp.ServiceUsage, opts ...Option) *Enabler {
	e := &Enabler{
		client:      client,
		concurrency: 4,
		callTimeout: time.Minute,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnsureEnabled lists the enabled services once and enables every required
// descriptor that is missing. A failed listing aborts before any enable
// call. A failed enable never stops the others; all failures are reported
// together.
func (e *Enabler) EnsureEnabled(ctx context.Context, projectID string, required []Descriptor) (State, error) {
	enabled, err := e.list(ctx, projectID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Cancelled(apperrors.StageServices, ctx.Err())
		}
		return nil, apperrors.AuthFailure(projectID, err)
	}

	state := make(State, len(required))
	var missing []Descriptor
	for _, d := range required {
		if _, seen := state[d]; seen {
			continue
		}
		state[d] = enabled[string(d)]
		if !state[d] {
			missing = append(missing, d)
		}
	}

	if len(missing) == 0 {
		e.logger.Info("all required services already enabled", "project", projectID, "count", len(state))
		return state, nil
	}

	var (
		mu     sync.Mutex
		errs   error
		failed []string
	)

	p := pool.New().WithContext(ctx).WithMaxGoroutines(e.concurrency)
	for _, d := range missing {
		p.Go(func(ctx context.Context) error {
			e.logger.Info("enabling service", "project", projectID, "service", d)
			err := e.enable(ctx, projectID, d)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.logger.Error("failed to enable service", "service", d, "error", err)
				failed = append(failed, string(d))
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", d, err))
				return nil
			}
			state[d] = true
			return nil
		})
	}
	_ = p.Wait()

	if err := ctx.Err(); err != nil {
		return state, apperrors.Cancelled(apperrors.StageServices, err)
	}
	if errs != nil {
		sort.Strings(failed)
		return state, apperrors.ServiceEnable(projectID, failed, errs)
	}
	return state, nil
}

func (e *Enabler) list(ctx context.Context, projectID string) (map[string]bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	names, err := e.client.ListEnabled(ctx, projectID)
	if err != nil {
		return nil, err
	}
	enabled := make(map[string]bool, len(names))
	for _, n := range names {
		enabled[n] = true
	}
	return enabled, nil
}

func (e *Enabler) enable(ctx context.Context, projectID string, d Descriptor) error {
	ctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()
	return e.client.Enable(ctx, projectID, string(d))
}
