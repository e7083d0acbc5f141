package cli

import (
	"context"

	"github.com/ociregistry/ociregistry/internal/config"
	"github.com/ociregistry/ociregistry/pkg/registry"
	"github.com/ociregistry/ociregistry/pkg/registry/reference"
)

// newClientForRef parses ref and builds a registry.Client targeting its
// domain, folding in the config.Config's auth/transport options and the
// REGISTRY_HOST override when set.
func newClientForRef(ctx context.Context, raw string) (*registry.Client, reference.Reference, error) {
	ref, err := reference.Parse(raw)
	if err != nil {
		return nil, reference.Reference{}, err
	}

	cfg := config.FromContext(ctx)

	domain := ref.Domain()
	if cfg.Host != "" {
		domain = cfg.Host
	}

	client := registry.New(domain, registry.Config{
		Username:        cfg.Username,
		Password:        cfg.Password,
		PlainHTTP:       cfg.PlainHTTP,
		IgnoreCertError: cfg.IgnoreCertError,
	})
	return client, ref, nil
}
