package pipeline

import (
	"context"

	"github.com/blackwell-systems/gcp-bootstrap/internal/config"
	"github.com/blackwell-systems/gcp-bootstrap/internal/credential"
	"github.com/blackwell-systems/gcp-bootstrap/internal/gcp"
)

// GCPClients returns a factory for the production adapter. The emulator
// hosts from cfg redirect storage, BigQuery and Pub/Sub.
//
// The returned close function releases the client and is safe to call when
// no client was built.
func GCPClients(cfg *config.Config) (ClientFactory, func() error) {
	var client *gcp.Client

	factory := func(ctx context.Context, cred *credential.Artifact) (*Clients, error) {
		c, err := gcp.NewClient(ctx, gcp.Options{
			CredentialsFile:  cred.Path,
			StorageEndpoint:  cfg.Emulators.Storage,
			BigQueryEndpoint: cfg.Emulators.BigQuery,
			PubSubEndpoint:   cfg.Emulators.PubSub,
		})
		if err != nil {
			return nil, err
		}
		client = c
		return &Clients{ServiceUsage: c, Resources: c, Secrets: c}, nil
	}

	closeFn := func() error {
		if client == nil {
			return nil
		}
		return client.Close()
	}

	return factory, closeFn
}
