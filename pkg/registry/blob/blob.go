// Package blob implements streaming blob download with running-hash
// digest verification: the expected content never needs to be buffered
// fully in memory, and a digest mismatch always removes the partial file.
package blob

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ociregistry/ociregistry/internal/ociimage"
	"github.com/ociregistry/ociregistry/pkg/registry/auth"
	"github.com/ociregistry/ociregistry/pkg/registry/digest"
	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
	"github.com/ociregistry/ociregistry/pkg/registry/transport"
)

// chunkSize bounds how much of the body is buffered at a time, per §4.7's
// "≤64 KiB" chunking note.
const chunkSize = 64 * 1024

// Downloader streams blobs from a registry over a transport.Client.
type Downloader struct {
	client *transport.Client
}

// New constructs a Downloader over client.
func New(client *transport.Client) *Downloader {
	return &Downloader{client: client}
}

// Download streams desc's content into destPath, hashing the bytes exactly
// as received on the wire. When expectGzipDecode is true the wire bytes
// are also gunzipped while writing to destPath, but the digest check still
// runs against the compressed bytes as received — the unresolved Open
// Question in §9 is decided in favor of on-wire verification; see
// DESIGN.md. A digest mismatch deletes the partial file and returns
// ErrDigestMismatch.
func (d *Downloader) Download(ctx context.Context, name string, desc ociimage.Descriptor, destPath string, expectGzipDecode bool) (int64, error) {
	expected, err := digest.Parse(string(desc.Digest))
	if err != nil {
		return 0, fmt.Errorf("%w: descriptor digest %q: %w", regerr.ErrInvalidManifest, desc.Digest, err)
	}

	path := fmt.Sprintf("/v2/%s/blobs/%s", name, expected.String())
	scope := auth.RepositoryScope(name, "pull")

	body, _, err := d.client.Stream(ctx, path, scope)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("%w: creating %s: %w", regerr.ErrIOError, filepath.Dir(destPath), err)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("%w: creating %s: %w", regerr.ErrIOError, destPath, err)
	}
	defer f.Close()

	hasher := digest.NewHasher(expected.Algorithm())
	wire := io.TeeReader(body, hasher)

	var src io.Reader = wire
	var gz *gzip.Reader
	if expectGzipDecode {
		gz, err = gzip.NewReader(wire)
		if err != nil {
			os.Remove(destPath)
			return 0, fmt.Errorf("%w: opening gzip stream for %s: %w", regerr.ErrIOError, destPath, err)
		}
		src = gz
	}

	written, copyErr := io.CopyBuffer(f, src, make([]byte, chunkSize))
	if gz != nil {
		gz.Close()
	}
	// Drain any wire bytes the gzip reader didn't need to consume (it stops
	// exactly at the stream's footer) so the digest is computed over the
	// entire response body, not just the portion gzip.Reader read.
	if _, drainErr := io.Copy(io.Discard, wire); drainErr != nil && copyErr == nil {
		copyErr = drainErr
	}

	if copyErr != nil {
		os.Remove(destPath)
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %w", regerr.ErrCancelled, ctx.Err())
		}
		return 0, fmt.Errorf("%w: writing %s: %w", regerr.ErrIOError, destPath, copyErr)
	}

	computed := fmt.Sprintf("%s:%x", expected.Algorithm(), hasher.Sum(nil))
	if computed != expected.String() {
		os.Remove(destPath)
		return 0, fmt.Errorf("%w: %s computed %s, expected %s", regerr.ErrDigestMismatch, path, computed, expected.String())
	}

	return written, nil
}
