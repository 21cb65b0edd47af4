package stack

import (
	"context"
	"log/slog"
	"net/http"
)

// ServiceStatus represents the status of a service
type ServiceStatus int

const (
	ServiceUnknown ServiceStatus = iota
	ServiceUp
	ServiceDown
)

func (s ServiceStatus) String() string {
	switch s {
	case ServiceUp:
		return "up"
	case ServiceDown:
		return "down"
	default:
		return "unknown"
	}
}

// StackStatus is the health of the application endpoint
type StackStatus struct {
	App      ServiceStatus
	URL      string
	Services []string
}

// Status probes the health endpoint once. Services is filled when the
// compose file can be parsed.
func Status(ctx context.Context, opts Options) (*StackStatus, error) {
	status := &StackStatus{URL: opts.healthURL()}

	if services, err := Inspect(ctx, opts); err == nil {
		status.Services = services
	} else {
		slog.Debug("compose file not readable", "file", opts.ComposeFile, "error", err)
	}

	status.App = checkHealth(ctx, opts.httpClient(), status.URL)
	return status, nil
}

func checkHealth(ctx context.Context, client *http.Client, url string) ServiceStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ServiceUnknown
	}

	resp, err := client.Do(req)
	if err != nil {
		return ServiceDown
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return ServiceUp
	}

	return ServiceDown
}
