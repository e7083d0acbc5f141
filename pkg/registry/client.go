// Package registry is the top-level client facade: it wires transport,
// resolver, blob download and packaging together behind the small set of
// operations the CLI (and any other caller) needs.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ociregistry/ociregistry/internal/ociimage"
	"github.com/ociregistry/ociregistry/pkg/registry/auth"
	"github.com/ociregistry/ociregistry/pkg/registry/pack"
	"github.com/ociregistry/ociregistry/pkg/registry/platform"
	"github.com/ociregistry/ociregistry/pkg/registry/reference"
	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
	"github.com/ociregistry/ociregistry/pkg/registry/resolver"
	"github.com/ociregistry/ociregistry/pkg/registry/transport"

	pullpkg "github.com/ociregistry/ociregistry/pkg/registry/pull"
)

// Config configures a Client. Its fields flow straight into
// transport.Config; the registry host itself is New's domain argument.
type Config struct {
	Username        string
	Password        string
	PlainHTTP       bool
	IgnoreCertError bool
}

// Client is the facade used by the CLI: one Client talks to exactly one
// registry host, the domain it was constructed with by New.
type Client struct {
	cfg       Config
	transport *transport.Client
	resolver  *resolver.Resolver
	pull      *pullpkg.Orchestrator
}

// New constructs a Client for the registry host named by domain (e.g. a
// Reference's Domain()).
func New(domain string, cfg Config) *Client {
	t := transport.New(transport.Config{
		BaseURL:         domain,
		Username:        cfg.Username,
		Password:        cfg.Password,
		PlainHTTP:       cfg.PlainHTTP,
		IgnoreCertError: cfg.IgnoreCertError,
	})

	return &Client{
		cfg:       cfg,
		transport: t,
		resolver:  resolver.New(t),
		pull:      pullpkg.New(t),
	}
}

// InspectResult is the outcome of Inspect: the resolved manifest plus its
// image config, enough for an `inspect` CLI command to render.
type InspectResult struct {
	Digest string
	Manifest ociimage.Manifest
	Config   ociimage.ImageConfig
}

// Inspect resolves ref against the target platform without downloading
// any layer content.
func (c *Client) Inspect(ctx context.Context, ref reference.Reference, target platform.Platform) (*InspectResult, error) {
	result, err := c.resolver.Resolve(ctx, ref, target)
	if err != nil {
		return nil, err
	}
	return &InspectResult{
		Digest:   result.Digest.String(),
		Manifest: result.Manifest,
		Config:   result.Config,
	}, nil
}

// PullOptions mirrors pull.Options at the facade boundary.
type PullOptions struct {
	SaveDir     string
	Platform    platform.Platform
	Format      pack.Format
	Gzip        bool
	Concurrency int
}

// Pull downloads ref's layers and config and assembles an archive under
// opts.SaveDir, returning the archive's final path.
func (c *Client) Pull(ctx context.Context, ref reference.Reference, opts PullOptions) (string, error) {
	return c.pull.Pull(ctx, ref, pullpkg.Options{
		SaveDir:     opts.SaveDir,
		Platform:    opts.Platform,
		Format:      opts.Format,
		Gzip:        opts.Gzip,
		Concurrency: opts.Concurrency,
	})
}

// TagList is the decoded response of the tags/list endpoint.
type TagList struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// ListTags calls GET /v2/<name>/tags/list?n=<limit>&last=<last>.
func (c *Client) ListTags(ctx context.Context, repoPath string, limit int, last string) (*TagList, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("n", fmt.Sprintf("%d", limit))
	}
	if last != "" {
		q.Set("last", last)
	}

	path := fmt.Sprintf("/v2/%s/tags/list", repoPath)
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	scope := auth.RepositoryScope(repoPath, "pull")
	resp, err := c.transport.DoMetadata(ctx, http.MethodGet, path, scope, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", regerr.ErrImageNotFound, repoPath)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned status %d", regerr.ErrNetworkError, path, resp.StatusCode)
	}

	var list TagList
	if err := decodeJSON(resp, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func decodeJSON(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decoding response body: %w", regerr.ErrNetworkError, err)
	}
	return nil
}
