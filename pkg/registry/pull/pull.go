// Package pull composes the resolver, auth/transport, blob downloader and
// packager into the end-to-end pull operation described in §4.9: resolve,
// download layers concurrently into a private working directory, assemble
// an archive, move it into the caller's save directory, and always clean
// up the working directory.
package pull

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ociregistry/ociregistry/internal/ociimage"
	"github.com/ociregistry/ociregistry/pkg/registry/blob"
	"github.com/ociregistry/ociregistry/pkg/registry/digest"
	"github.com/ociregistry/ociregistry/pkg/registry/pack"
	"github.com/ociregistry/ociregistry/pkg/registry/platform"
	"github.com/ociregistry/ociregistry/pkg/registry/reference"
	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
	"github.com/ociregistry/ociregistry/pkg/registry/resolver"
	"github.com/ociregistry/ociregistry/pkg/registry/transport"
)

// DefaultConcurrency is the bounded worker pool width for layer downloads,
// per §5: "bounded pool, default width 5".
const DefaultConcurrency = 5

// Options configures one Pull call.
type Options struct {
	SaveDir     string
	Platform    platform.Platform
	Format      pack.Format
	Gzip        bool
	Concurrency int
}

// Orchestrator runs end-to-end pulls over a shared transport.Client.
type Orchestrator struct {
	resolver   *resolver.Resolver
	downloader *blob.Downloader
	packager   *pack.Packager
}

// New constructs an Orchestrator wired to client.
func New(client *transport.Client) *Orchestrator {
	return &Orchestrator{
		resolver:   resolver.New(client),
		downloader: blob.New(client),
		packager:   pack.New(),
	}
}

// Pull implements §4.9's six steps and returns the final archive path.
func (o *Orchestrator) Pull(ctx context.Context, ref reference.Reference, opts Options) (string, error) {
	result, err := o.resolver.Resolve(ctx, ref, opts.Platform)
	if err != nil {
		return "", err
	}

	workDir, err := os.MkdirTemp("", "ociregistry-pull-"+uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("%w: creating working directory: %w", regerr.ErrIOError, err)
	}
	defer os.RemoveAll(workDir)

	diffIDs := make([]string, len(result.Config.RootFS.DiffIDs))
	for i, d := range result.Config.RootFS.DiffIDs {
		diffIDs[i] = d.String()
	}

	chainIDs, err := digest.ChainIDHexes(diffIDs)
	if err != nil {
		return "", fmt.Errorf("%w: deriving chain IDs: %w", regerr.ErrInvalidManifest, err)
	}

	if err := o.downloadLayers(ctx, ref.Path(), result.Manifest.Layers, chainIDs, workDir, opts.Concurrency); err != nil {
		return "", err
	}

	stagePath, err := o.assemble(ctx, ref, result, chainIDs, diffIDs, workDir, opts)
	if err != nil {
		return "", err
	}

	finalPath, err := o.commit(stagePath, opts.SaveDir)
	if err != nil {
		return "", err
	}

	return finalPath, nil
}

// downloadLayers fans layer downloads out across a bounded worker pool.
// Chain-ID assignment is by manifest layer index, never completion order,
// per §5's ordering guarantee.
func (o *Orchestrator) downloadLayers(ctx context.Context, name string, layers []ociimage.Descriptor, chainIDs []string, workDir string, concurrency int) error {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, layer := range layers {
		i, layer := i, layer
		g.Go(func() error {
			dest := filepath.Join(workDir, chainIDs[i], "layer.tar")
			expectGzip := strings.Contains(layer.MediaType, "gzip")
			_, err := o.downloader.Download(gctx, name, layer, dest, expectGzip)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", regerr.ErrCancelled, ctx.Err())
		}
		return err
	}
	return nil
}

func (o *Orchestrator) assemble(ctx context.Context, ref reference.Reference, result *resolver.Result, chainIDs, diffIDs []string, workDir string, opts Options) (string, error) {
	configDigest, err := digest.Parse(string(result.Manifest.Config.Digest))
	if err != nil {
		return "", fmt.Errorf("%w: manifest config digest: %w", regerr.ErrInvalidManifest, err)
	}

	if err := pack.WriteSidecars(workDir, result.Manifest, result.ConfigBytes); err != nil {
		return "", err
	}

	in := pack.Input{
		WorkDir:      workDir,
		ConfigDigest: configDigest,
		ConfigBytes:  result.ConfigBytes,
		Manifest:     result.Manifest,
		ChainIDs:     chainIDs,
		DiffIDs:      diffIDs,
		RepoTag:      ref.ShortRef(),
	}

	stagePath := filepath.Join(workDir, archiveBaseName(ref)+archiveExtension(opts.Gzip))
	if err := o.packager.Pack(ctx, in, opts.Format, opts.Gzip, stagePath); err != nil {
		return "", err
	}
	return stagePath, nil
}

// commit moves the staged archive into saveDir. Using os.Rename keeps the
// move atomic when saveDir shares a filesystem with the working directory
// (the common case, both under the system temp root); a cross-device
// rename falls back to copy-then-remove.
func (o *Orchestrator) commit(stagePath, saveDir string) (string, error) {
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", regerr.ErrIOError, saveDir, err)
	}

	finalPath := filepath.Join(saveDir, filepath.Base(stagePath))
	if err := os.Rename(stagePath, finalPath); err != nil {
		if err := copyFile(stagePath, finalPath); err != nil {
			return "", fmt.Errorf("%w: moving archive into %s: %w", regerr.ErrIOError, saveDir, err)
		}
	}
	return finalPath, nil
}

func archiveExtension(gzipOutput bool) string {
	if gzipOutput {
		return ".tar.gz"
	}
	return ".tar"
}

// archiveBaseName mirrors §8's example naming: the repository path with
// "/" replaced by "_", suffixed by either the digest ("sha256_<hex>") or
// the tag. Unlike ShortName/ShortRef (used for RepoTags), this keeps any
// implicit "library/" prefix, matching the example archive filename
// "library_hello-world_sha256_f54a...".
func archiveBaseName(ref reference.Reference) string {
	name := strings.ReplaceAll(ref.Path(), "/", "_")
	if d, ok := ref.Digest(); ok {
		return fmt.Sprintf("%s_%s_%s", name, d.Algorithm(), d.Hex())
	}
	if t, ok := ref.Tag(); ok {
		return fmt.Sprintf("%s_%s", name, t)
	}
	return name
}
