// Package provision creates the cloud resources the application consumes.
//
// Creation is idempotent: an "already exists" answer from the cloud is a
// successful outcome, so the provisioning step can be re-run any number of
// times and converges to the same resource set.
package provision

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind identifies a resource type.
type Kind string

const (
	KindBucket  Kind = "bucket"
	KindDataset Kind = "dataset"
	KindTopic   Kind = "topic"
)

// Descriptor is a declarative resource specification.
// Implementations: BucketSpec, DatasetSpec, TopicSpec.
type Descriptor interface {
	Kind() Kind
	// Handle is the caller-chosen resource name.
	Handle() string
	Validate() error

	sealed()
}

// BucketSpec describes a Cloud Storage bucket.
type BucketSpec struct {
	Name     string
	Location string
}

// DatasetSpec describes a BigQuery dataset.
type DatasetSpec struct {
	ID       string
	Location string
}

// TopicSpec describes a Pub/Sub topic.
type TopicSpec struct {
	Name string
}

var (
	bucketNameRe  = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,61}[a-z0-9]$`)
	datasetIDRe   = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	topicNameRe   = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9\-_.~+%]{2,254}$`)
	locationRe    = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	ipAddressLike = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)
)

func (BucketSpec) Kind() Kind       { return KindBucket }
func (b BucketSpec) Handle() string { return b.Name }
func (BucketSpec) sealed()          {}

// Validate checks the bucket naming rules.
func (b BucketSpec) Validate() error {
	if !bucketNameRe.MatchString(b.Name) {
		return fmt.Errorf("invalid bucket name %q: 3-63 chars of lowercase letters, digits, '-', '_' or '.'", b.Name)
	}
	if strings.HasPrefix(b.Name, "goog") || ipAddressLike.MatchString(b.Name) {
		return fmt.Errorf("invalid bucket name %q: reserved form", b.Name)
	}
	return validateLocation(b.Location)
}

func (DatasetSpec) Kind() Kind       { return KindDataset }
func (d DatasetSpec) Handle() string { return d.ID }
func (DatasetSpec) sealed()          {}

// Validate checks the dataset id rules.
func (d DatasetSpec) Validate() error {
	if len(d.ID) > 1024 || !datasetIDRe.MatchString(d.ID) {
		return fmt.Errorf("invalid dataset id %q: letters, digits and underscores only", d.ID)
	}
	return validateLocation(d.Location)
}

func (TopicSpec) Kind() Kind       { return KindTopic }
func (t TopicSpec) Handle() string { return t.Name }
func (TopicSpec) sealed()          {}

// Validate checks the topic naming rules.
func (t TopicSpec) Validate() error {
	if !topicNameRe.MatchString(t.Name) {
		return fmt.Errorf("invalid topic name %q: must start with a letter, 3-255 chars", t.Name)
	}
	if strings.HasPrefix(strings.ToLower(t.Name), "goog") {
		return fmt.Errorf("invalid topic name %q: must not start with goog", t.Name)
	}
	return nil
}

func validateLocation(location string) error {
	if !locationRe.MatchString(location) {
		return fmt.Errorf("invalid location %q", location)
	}
	return nil
}
