// Package gcp defines the remote capabilities the bootstrapper needs from
// Google Cloud and provides the production adapter backed by the Cloud APIs.
//
// The capabilities are intentionally narrow: list/enable services, create a
// bucket, a BigQuery dataset and a Pub/Sub topic, and read a secret. Every
// call takes the project identifier explicitly; nothing relies on a
// "current project" setting.
package gcp

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrAlreadyExists is returned by create calls when the resource exists.
var ErrAlreadyExists = errors.New("resource already exists")

// ServiceUsage lists and enables project services.
type ServiceUsage interface {
	// ListEnabled returns the names (e.g. "storage.googleapis.com") of the
	// services currently enabled on the project.
	ListEnabled(ctx context.Context, projectID string) ([]string, error)
	// Enable enables a single service and waits for the operation to finish.
	Enable(ctx context.Context, projectID, service string) error
}

// Resources creates the cloud resources the application consumes.
// Create calls return ErrAlreadyExists (wrapped) when the resource exists.
type Resources interface {
	CreateBucket(ctx context.Context, projectID, name, location string) error
	CreateDataset(ctx context.Context, projectID, datasetID, location string) error
	CreateTopic(ctx context.Context, projectID, name string) error
}

// Secrets reads secret payloads.
type Secrets interface {
	// AccessSecret returns the payload of the latest version of the secret.
	AccessSecret(ctx context.Context, projectID, secretID string) ([]byte, error)
}

// IsAlreadyExists reports whether err is a conflict from a create call.
func IsAlreadyExists(err error) bool {
	if errors.Is(err, ErrAlreadyExists) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusConflict
	}
	return false
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
