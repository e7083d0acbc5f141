// Package resolver implements manifest resolution: turning a Reference
// into a concrete single-platform Manifest plus its ImageConfig, recursing
// through at most one level of multi-arch Index.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ociregistry/ociregistry/internal/ociimage"
	"github.com/ociregistry/ociregistry/pkg/registry/auth"
	"github.com/ociregistry/ociregistry/pkg/registry/digest"
	"github.com/ociregistry/ociregistry/pkg/registry/mediatype"
	"github.com/ociregistry/ociregistry/pkg/registry/platform"
	"github.com/ociregistry/ociregistry/pkg/registry/reference"
	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
	"github.com/ociregistry/ociregistry/pkg/registry/transport"
)

// maxIndexDepth is the number of index resolutions permitted before the
// selected entry must be a plain manifest: an index whose selected entry
// is itself an index is InvalidManifest, per §4.6.
const maxIndexDepth = 1

// Result is the outcome of a successful Resolve.
type Result struct {
	Digest      digest.Digest
	Manifest    ociimage.Manifest
	Config      ociimage.ImageConfig
	ConfigBytes []byte
}

// Resolver resolves references to manifests over a transport.Client.
type Resolver struct {
	client *transport.Client
}

// New constructs a Resolver over client.
func New(client *transport.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve implements §4.6's four-step resolution: digest discovery (HEAD or
// the reference's own digest), manifest fetch with digest verification,
// content-type dispatch (recursing through an index at most once), and
// config blob fetch, checking the diff_ids/layers length invariant before
// returning.
func (r *Resolver) Resolve(ctx context.Context, ref reference.Reference, target platform.Platform) (*Result, error) {
	name := ref.Path()
	scope := auth.RepositoryScope(name, "pull")

	manifestDigest, err := r.initialDigest(ctx, ref, name, scope)
	if err != nil {
		return nil, err
	}

	manifestDigest, manifest, err := r.resolveManifest(ctx, name, manifestDigest, scope, target, 0)
	if err != nil {
		return nil, err
	}

	configBytes, err := r.fetchBlob(ctx, name, manifest.Config.Digest.String(), scope)
	if err != nil {
		return nil, err
	}

	var cfg ociimage.ImageConfig
	if err := json.Unmarshal(configBytes, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decoding image config: %w", regerr.ErrInvalidManifest, err)
	}

	if len(cfg.RootFS.DiffIDs) != len(manifest.Layers) {
		return nil, fmt.Errorf("%w: config has %d diff_ids but manifest has %d layers", regerr.ErrInvalidManifest, len(cfg.RootFS.DiffIDs), len(manifest.Layers))
	}

	return &Result{
		Digest:      manifestDigest,
		Manifest:    manifest,
		Config:      cfg,
		ConfigBytes: configBytes,
	}, nil
}

// initialDigest implements §4.6 step 1: a digested reference supplies its
// own digest directly; otherwise a HEAD request against the reference's
// target (tag or "latest") discovers it via Docker-Content-Digest.
func (r *Resolver) initialDigest(ctx context.Context, ref reference.Reference, name string, scope auth.Scope) (digest.Digest, error) {
	if d, ok := ref.Digest(); ok {
		return d, nil
	}

	path := fmt.Sprintf("/v2/%s/manifests/%s", name, ref.Target())
	resp, err := r.client.DoMetadata(ctx, http.MethodHead, path, scope, transport.ManifestAccept)
	if err != nil {
		return digest.Digest{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return digest.Digest{}, fmt.Errorf("%w: %s", regerr.ErrImageNotFound, name)
	}
	if resp.StatusCode != http.StatusOK {
		return digest.Digest{}, fmt.Errorf("%w: HEAD %s returned status %d", regerr.ErrNetworkError, path, resp.StatusCode)
	}

	if header := resp.Header.Get("Docker-Content-Digest"); header != "" {
		return digest.Parse(header)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("%w: reading HEAD body: %w", regerr.ErrNetworkError, err)
	}
	return digest.FromBytes(body, digest.SHA256), nil
}

// resolveManifest implements §4.6 steps 2-3: GET the manifest at
// manifestDigest, verify it, and dispatch on Content-Type — recursing into
// an index's platform-selected entry up to maxIndexDepth times.
func (r *Resolver) resolveManifest(ctx context.Context, name string, manifestDigest digest.Digest, scope auth.Scope, target platform.Platform, depth int) (digest.Digest, ociimage.Manifest, error) {
	path := fmt.Sprintf("/v2/%s/manifests/%s", name, manifestDigest.String())
	resp, err := r.client.DoMetadata(ctx, http.MethodGet, path, scope, transport.ManifestAccept)
	if err != nil {
		return digest.Digest{}, ociimage.Manifest{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return digest.Digest{}, ociimage.Manifest{}, fmt.Errorf("%w: %s", regerr.ErrImageNotFound, name)
	}
	if resp.StatusCode != http.StatusOK {
		return digest.Digest{}, ociimage.Manifest{}, fmt.Errorf("%w: GET %s returned status %d", regerr.ErrNetworkError, path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return digest.Digest{}, ociimage.Manifest{}, fmt.Errorf("%w: reading manifest body: %w", regerr.ErrNetworkError, err)
	}

	if manifestDigest.Algorithm() == digest.SHA256 && !manifestDigest.Verify(body) {
		return digest.Digest{}, ociimage.Manifest{}, fmt.Errorf("%w: manifest body does not match %s", regerr.ErrDigestMismatch, manifestDigest)
	}

	contentType := mediatype.MediaType(resp.Header.Get("Content-Type"))

	switch {
	case mediatype.IsManifest(contentType):
		var m ociimage.Manifest
		if err := json.Unmarshal(body, &m); err != nil {
			return digest.Digest{}, ociimage.Manifest{}, fmt.Errorf("%w: decoding manifest: %w", regerr.ErrInvalidManifest, err)
		}
		return manifestDigest, m, nil

	case mediatype.IsIndex(contentType):
		if depth >= maxIndexDepth {
			return digest.Digest{}, ociimage.Manifest{}, fmt.Errorf("%w: nested index at depth %d exceeds limit of %d", regerr.ErrInvalidManifest, depth, maxIndexDepth)
		}

		var idx ociimage.Index
		if err := json.Unmarshal(body, &idx); err != nil {
			return digest.Digest{}, ociimage.Manifest{}, fmt.Errorf("%w: decoding index: %w", regerr.ErrInvalidManifest, err)
		}

		selected, ok := platform.Select(idx.Manifests, target)
		if !ok {
			return digest.Digest{}, ociimage.Manifest{}, fmt.Errorf("%w: %s", regerr.ErrPlatformNotAvailable, target.String())
		}

		nextDigest, err := digest.Parse(string(selected.Digest))
		if err != nil {
			return digest.Digest{}, ociimage.Manifest{}, fmt.Errorf("%w: index entry has invalid digest: %w", regerr.ErrInvalidManifest, err)
		}

		return r.resolveManifest(ctx, name, nextDigest, scope, target, depth+1)

	default:
		return digest.Digest{}, ociimage.Manifest{}, fmt.Errorf("%w: %q", regerr.ErrUnsupportedMediaType, contentType)
	}
}

// fetchBlob buffers a small blob (config JSON) fully into memory.
func (r *Resolver) fetchBlob(ctx context.Context, name, blobDigest string, scope auth.Scope) ([]byte, error) {
	path := fmt.Sprintf("/v2/%s/blobs/%s", name, blobDigest)
	resp, err := r.client.DoMetadata(ctx, http.MethodGet, path, scope, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: blob %s", regerr.ErrImageNotFound, blobDigest)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: GET %s returned status %d", regerr.ErrNetworkError, path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading blob body: %w", regerr.ErrNetworkError, err)
	}
	return body, nil
}
