package gcp

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gcpStorage "cloud.google.com/go/storage"
	"google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/pubsub/v1"
	"google.golang.org/api/serviceusage/v1"
)

// DefaultPollInterval is how often long-running enable operations are polled.
const DefaultPollInterval = 2 * time.Second

// Options configures the production adapter.
//
// An endpoint override points the corresponding API at an emulator (or a
// test server) and disables authentication for it. Host values without a
// scheme ("localhost:4443") are treated as plain HTTP.
type Options struct {
	CredentialsFile string

	ServiceUsageEndpoint string
	StorageEndpoint      string
	BigQueryEndpoint     string
	PubSubEndpoint       string

	PollInterval time.Duration
}

// Client implements ServiceUsage, Resources and Secrets against Google Cloud.
type Client struct {
	usage    *serviceusage.Service
	storage  *gcpStorage.Client
	bigquery *bigquery.Service
	pubsub   *pubsub.Service

	opts Options

	secretsOnce sync.Once
	secrets     *secretmanager.Client
	secretsErr  error
}

var (
	_ ServiceUsage = (*Client)(nil)
	_ Resources    = (*Client)(nil)
	_ Secrets      = (*Client)(nil)
)

// NewClient builds the service clients. No network call is made here.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	usageSvc, err := serviceusage.NewService(ctx, opts.clientOptions(opts.ServiceUsageEndpoint, "/")...)
	if err != nil {
		return nil, fmt.Errorf("create service usage service: %w", err)
	}

	storageClient, err := gcpStorage.NewClient(ctx, opts.clientOptions(opts.StorageEndpoint, "/storage/v1/")...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	// Retries are layered by the caller (internal/retry).
	storageClient.SetRetry(gcpStorage.WithPolicy(gcpStorage.RetryNever))

	bigquerySvc, err := bigquery.NewService(ctx, opts.clientOptions(opts.BigQueryEndpoint, "/bigquery/v2/")...)
	if err != nil {
		_ = storageClient.Close()
		return nil, fmt.Errorf("create bigquery service: %w", err)
	}

	pubsubSvc, err := pubsub.NewService(ctx, opts.clientOptions(opts.PubSubEndpoint, "/")...)
	if err != nil {
		_ = storageClient.Close()
		return nil, fmt.Errorf("create pubsub service: %w", err)
	}

	return &Client{
		usage:    usageSvc,
		storage:  storageClient,
		bigquery: bigquerySvc,
		pubsub:   pubsubSvc,
		opts:     opts,
	}, nil
}

// Close releases the underlying connections.
func (c *Client) Close() error {
	var firstErr error
	if err := c.storage.Close(); err != nil {
		firstErr = err
	}
	if c.secrets != nil {
		if err := c.secrets.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ListEnabled implements ServiceUsage.
func (c *Client) ListEnabled(ctx context.Context, projectID string) ([]string, error) {
	var names []string
	err := c.usage.Services.List("projects/"+projectID).
		Filter("state:ENABLED").
		PageSize(200).
		Pages(ctx, func(resp *serviceusage.ListServicesResponse) error {
			for _, svc := range resp.Services {
				names = append(names, serviceName(svc))
			}
			return nil
		})
	if err != nil {
		return nil, wrapError("list enabled services", err)
	}
	return names, nil
}

// Enable implements ServiceUsage.
func (c *Client) Enable(ctx context.Context, projectID, service string) error {
	name := fmt.Sprintf("projects/%s/services/%s", projectID, service)
	op, err := c.usage.Services.Enable(name, &serviceusage.EnableServiceRequest{}).Context(ctx).Do()
	if err != nil {
		return wrapError("enable service "+service, err)
	}

	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for !op.Done {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s enablement: %w", service, ctx.Err())
		case <-ticker.C:
		}

		op, err = c.usage.Operations.Get(op.Name).Context(ctx).Do()
		if err != nil {
			return wrapError("poll service usage operation", err)
		}
	}

	if op.Error != nil {
		return fmt.Errorf("enable service %s: %s", service, op.Error.Message)
	}
	return nil
}

// CreateBucket implements Resources.
func (c *Client) CreateBucket(ctx context.Context, projectID, name, location string) error {
	err := c.storage.Bucket(name).Create(ctx, projectID, &gcpStorage.BucketAttrs{
		Location: location,
	})
	return classify("create bucket", err)
}

// CreateDataset implements Resources.
func (c *Client) CreateDataset(ctx context.Context, projectID, datasetID, location string) error {
	_, err := c.bigquery.Datasets.Insert(projectID, &bigquery.Dataset{
		DatasetReference: &bigquery.DatasetReference{
			ProjectId: projectID,
			DatasetId: datasetID,
		},
		Location: location,
	}).Context(ctx).Do()
	return classify("create dataset", err)
}

// CreateTopic implements Resources.
func (c *Client) CreateTopic(ctx context.Context, projectID, name string) error {
	_, err := c.pubsub.Projects.Topics.Create(
		fmt.Sprintf("projects/%s/topics/%s", projectID, name),
		&pubsub.Topic{},
	).Context(ctx).Do()
	return classify("create topic", err)
}

// AccessSecret implements Secrets. The Secret Manager client is created on
// first use so that runs without a secret need no extra credentials.
func (c *Client) AccessSecret(ctx context.Context, projectID, secretID string) ([]byte, error) {
	c.secretsOnce.Do(func() {
		c.secrets, c.secretsErr = secretmanager.NewClient(ctx, c.opts.clientOptions("", "")...)
		if c.secretsErr == nil && c.secrets.CallOptions != nil {
			c.secrets.CallOptions.AccessSecretVersion = nil
		}
	})
	if c.secretsErr != nil {
		return nil, fmt.Errorf("create secret manager client: %w", c.secretsErr)
	}

	resp, err := c.secrets.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secretID),
	})
	if err != nil {
		return nil, fmt.Errorf("access secret %s: %w", secretID, err)
	}
	return resp.GetPayload().GetData(), nil
}

func (o Options) clientOptions(endpoint, basePath string) []option.ClientOption {
	if endpoint != "" {
		if !strings.Contains(endpoint, "://") {
			endpoint = "http://" + endpoint
		}
		return []option.ClientOption{
			option.WithEndpoint(strings.TrimRight(endpoint, "/") + basePath),
			option.WithoutAuthentication(),
		}
	}
	if o.CredentialsFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(o.CredentialsFile)}
	}
	return nil
}

func serviceName(svc *serviceusage.GoogleApiServiceusageV1Service) string {
	if svc.Config != nil && svc.Config.Name != "" {
		return svc.Config.Name
	}
	return path.Base(svc.Name)
}

// classify maps a 409 to ErrAlreadyExists and wraps everything else.
func classify(action string, err error) error {
	if err == nil {
		return nil
	}
	if IsAlreadyExists(err) {
		return fmt.Errorf("%s: %w", action, ErrAlreadyExists)
	}
	return wrapError(action, err)
}

func wrapError(action string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", action, err)
}
