// Package fake provides an in-memory Google Cloud for tests.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/blackwell-systems/gcp-bootstrap/internal/gcp"
)

// Cloud is an in-memory implementation of gcp.ServiceUsage, gcp.Resources
// and gcp.Secrets. It is safe for concurrent use.
type Cloud struct {
	mu sync.Mutex

	enabled  map[string]map[string]bool
	buckets  map[string]string
	datasets map[string]string
	topics   map[string]bool
	secrets  map[string][]byte

	calls map[string]int

	// ListErr fails every ListEnabled call.
	ListErr error
	// EnableErr fails Enable for the named service.
	EnableErr map[string]error
	// CreateErr fails create calls for the named resource.
	CreateErr map[string]error
	// Block makes create calls wait for context cancellation.
	Block bool
}

var (
	_ gcp.ServiceUsage = (*Cloud)(nil)
	_ gcp.Resources    = (*Cloud)(nil)
	_ gcp.Secrets      = (*Cloud)(nil)
)

// New returns an empty cloud.
func New() *Cloud {
	return &Cloud{
		enabled:   map[string]map[string]bool{},
		buckets:   map[string]string{},
		datasets:  map[string]string{},
		topics:    map[string]bool{},
		secrets:   map[string][]byte{},
		calls:     map[string]int{},
		EnableErr: map[string]error{},
		CreateErr: map[string]error{},
	}
}

// EnableService marks a service enabled without recording a call.
func (c *Cloud) EnableService(projectID, service string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabledFor(projectID)[service] = true
}

// PutSecret stores a secret payload.
func (c *Cloud) PutSecret(projectID, secretID string, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets[projectID+"/"+secretID] = payload
}

// Calls returns how many times the named operation was invoked
// ("list", "enable", "bucket", "dataset", "topic", "secret").
func (c *Cloud) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// TotalCalls returns the number of remote calls made.
func (c *Cloud) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.calls {
		total += n
	}
	return total
}

// Buckets returns the names of all buckets.
func (c *Cloud) Buckets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return keys(c.buckets)
}

// Datasets returns the fully qualified ids of all datasets.
func (c *Cloud) Datasets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return keys(c.datasets)
}

// Topics returns the fully qualified names of all topics.
func (c *Cloud) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.topics))
	for k := range c.topics {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ListEnabled implements gcp.ServiceUsage.
func (c *Cloud) ListEnabled(ctx context.Context, projectID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["list"]++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	out := make([]string, 0)
	for name, on := range c.enabledFor(projectID) {
		if on {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Enable implements gcp.ServiceUsage.
func (c *Cloud) Enable(ctx context.Context, projectID, service string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["enable"]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.EnableErr[service]; err != nil {
		return err
	}
	c.enabledFor(projectID)[service] = true
	return nil
}

// CreateBucket implements gcp.Resources. Bucket names are global.
func (c *Cloud) CreateBucket(ctx context.Context, projectID, name, location string) error {
	if err := c.before(ctx, "bucket", name); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.buckets[name]; ok {
		return fmt.Errorf("create bucket %s: %w", name, gcp.ErrAlreadyExists)
	}
	c.buckets[name] = location
	return nil
}

// CreateDataset implements gcp.Resources.
func (c *Cloud) CreateDataset(ctx context.Context, projectID, datasetID, location string) error {
	if err := c.before(ctx, "dataset", datasetID); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := projectID + "." + datasetID
	if _, ok := c.datasets[key]; ok {
		return fmt.Errorf("create dataset %s: %w", key, gcp.ErrAlreadyExists)
	}
	c.datasets[key] = location
	return nil
}

// CreateTopic implements gcp.Resources.
func (c *Cloud) CreateTopic(ctx context.Context, projectID, name string) error {
	if err := c.before(ctx, "topic", name); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := fmt.Sprintf("projects/%s/topics/%s", projectID, name)
	if c.topics[key] {
		return fmt.Errorf("create topic %s: %w", key, gcp.ErrAlreadyExists)
	}
	c.topics[key] = true
	return nil
}

// AccessSecret implements gcp.Secrets.
func (c *Cloud) AccessSecret(ctx context.Context, projectID, secretID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls["secret"]++
	payload, ok := c.secrets[projectID+"/"+secretID]
	if !ok {
		return nil, errors.New("secret not found: " + secretID)
	}
	return payload, nil
}

func (c *Cloud) before(ctx context.Context, op, name string) error {
	c.mu.Lock()
	c.calls[op]++
	block := c.Block
	injected := c.CreateErr[name]
	c.mu.Unlock()

	if block {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return injected
}

func (c *Cloud) enabledFor(projectID string) map[string]bool {
	m, ok := c.enabled[projectID]
	if !ok {
		m = map[string]bool{}
		c.enabled[projectID] = m
	}
	return m
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
