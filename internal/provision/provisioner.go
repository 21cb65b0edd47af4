package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/blackwell-systems/gcp-bootstrap/internal/errors"
	"github.com/blackwell-systems/gcp-bootstrap/internal/gcp"
)

// Outcome records what a create call did.
type Outcome string

const (
	Created  Outcome = "created"
	Existing Outcome = "existing"
)

// Handle identifies a provisioned resource.
type Handle struct {
	Kind    Kind
	Name    string
	Outcome Outcome
}

func (h Handle) String() string {
	return fmt.Sprintf("%s/%s", h.Kind, h.Name)
}

// Provisioner creates resources in one project.
type Provisioner struct {
	client      gcp.Resources
	projectID   string
	concurrency int
	callTimeout time.Duration
	logger      *slog.Logger
}

// Option customises a Provisioner.
type Option func(*Provisioner)

// WithConcurrency bounds the number of parallel create calls.
func WithConcurrency(n int) Option {
	return func(p *Provisioner) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithCallTimeout bounds each create call.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Provisioner) {
		if d > 0 {
			p.callTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provisioner) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewProvisioner creates a Provisioner for projectID.
func NewProvisioner(client gcp.Resources, projectID string, opts ...Option) *Provisioner {
	p := &Provisioner{
		client:      client,
		projectID:   projectID,
		concurrency: 4,
		callTimeout: time.Minute,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ensure creates the resource unless it already exists.
func (p *Provisioner) Ensure(ctx context.Context, d Descriptor) (Handle, error) {
	handle := Handle{Kind: d.Kind(), Name: d.Handle()}

	if err := d.Validate(); err != nil {
		return handle, apperrors.Provision(string(d.Kind()), d.Handle(), err)
	}

	err := p.create(ctx, d)
	switch {
	case err == nil:
		handle.Outcome = Created
		p.logger.Info("resource created", "kind", handle.Kind, "name", handle.Name, "project", p.projectID)
	case gcp.IsAlreadyExists(err):
		handle.Outcome = Existing
		p.logger.Info("resource already exists", "kind", handle.Kind, "name", handle.Name,
			"detail", apperrors.ResourceConflict(string(handle.Kind), handle.Name, err).Message)
	case ctx.Err() != nil:
		return handle, apperrors.Cancelled(apperrors.StageResources, ctx.Err())
	default:
		return handle, apperrors.Provision(string(d.Kind()), d.Handle(), err)
	}
	return handle, nil
}

// EnsureAll provisions every descriptor concurrently. The first failure
// cancels the calls still in flight; resources created so far are kept.
// Handles are returned in input order.
func (p *Provisioner) EnsureAll(ctx context.Context, descriptors []Descriptor) ([]Handle, error) {
	handles := make([]Handle, len(descriptors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, d := range descriptors {
		g.Go(func() error {
			h, err := p.Ensure(gctx, d)
			if err != nil {
				return err
			}
			handles[i] = h
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Cancelled(apperrors.StageResources, ctx.Err())
		}
		return nil, err
	}
	return handles, nil
}

func (p *Provisioner) create(ctx context.Context, d Descriptor) error {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	switch spec := d.(type) {
	case BucketSpec:
		return p.client.CreateBucket(ctx, p.projectID, spec.Name, spec.Location)
	case DatasetSpec:
		return p.client.CreateDataset(ctx, p.projectID, spec.ID, spec.Location)
	case TopicSpec:
		return p.client.CreateTopic(ctx, p.projectID, spec.Name)
	default:
		return fmt.Errorf("unsupported resource kind %q", d.Kind())
	}
}
