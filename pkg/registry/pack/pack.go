// Package pack assembles a pull's downloaded artifacts (config JSON plus
// one layer.tar per chain-ID directory) into either a Docker V2 image
// archive or an OCI image layout archive, per §4.8.
package pack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ociregistry/ociregistry/internal/ociimage"
	"github.com/ociregistry/ociregistry/pkg/registry/digest"
	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

// Format selects the output archive layout.
type Format int

const (
	// FormatV2 produces a Docker V2 image archive (manifest.json + per
	// chain-ID layer directories).
	FormatV2 Format = iota
	// FormatOCI produces an OCI image layout (oci-layout + blobs/ + index.json).
	FormatOCI
)

// Input is everything the Packager needs to assemble one image's archive.
// WorkDir must contain <ChainIDs[i]>/layer.tar for every layer and nothing
// else the packer doesn't already know about.
type Input struct {
	WorkDir      string
	ConfigDigest digest.Digest
	ConfigBytes  []byte
	Manifest     ociimage.Manifest
	// ChainIDs and DiffIDs are index-aligned with Manifest.Layers:
	// ChainIDs[i]/DiffIDs[i] describe Manifest.Layers[i]. ChainIDs holds
	// bare hex (digest.ChainIDHexes' output), not the canonical "sha256:"
	// form, since it doubles as the on-disk layer directory name.
	ChainIDs []string
	DiffIDs  []string
	// RepoTag is the short "repo:tag" form for RepoTags/base-name
	// annotations, or "" for a digest-only reference.
	RepoTag string
}

// Packager builds archives from a Input's working directory.
type Packager struct{}

// New constructs a Packager.
func New() *Packager {
	return &Packager{}
}

// Pack runs the integrity self-check, stages the requested layout under a
// fresh staging directory inside WorkDir, tars it, optionally gzips the
// tar, and writes the result to outputPath.
func (p *Packager) Pack(ctx context.Context, in Input, format Format, gzipOutput bool, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", regerr.ErrCancelled, err)
	}

	if err := p.selfCheck(in); err != nil {
		return err
	}

	stageDir, err := os.MkdirTemp(in.WorkDir, "stage-")
	if err != nil {
		return fmt.Errorf("%w: creating staging directory: %w", regerr.ErrIOError, err)
	}
	defer os.RemoveAll(stageDir)

	switch format {
	case FormatV2:
		if err := buildV2Layout(in, stageDir); err != nil {
			return err
		}
	case FormatOCI:
		if err := buildOCILayout(in, stageDir); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown pack format %d", regerr.ErrInvalidManifest, format)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", regerr.ErrIOError, filepath.Dir(outputPath), err)
	}

	if err := tarDirectory(stageDir, outputPath, gzipOutput); err != nil {
		return err
	}

	return nil
}

// selfCheck verifies every layer.tar hashes to its declared diff_id and
// the config bytes hash to ConfigDigest, per §4.8's pre-pack integrity
// check. A failure is reported as a digest mismatch — this client's
// rendering of the spec's IntegrityCheckFailed kind.
func (p *Packager) selfCheck(in Input) error {
	if !in.ConfigDigest.Verify(in.ConfigBytes) {
		return fmt.Errorf("%w: config bytes do not match %s", regerr.ErrDigestMismatch, in.ConfigDigest)
	}

	if len(in.ChainIDs) != len(in.Manifest.Layers) || len(in.DiffIDs) != len(in.Manifest.Layers) {
		return fmt.Errorf("%w: %d chain-IDs and %d diff-IDs for %d layers", regerr.ErrInvalidManifest, len(in.ChainIDs), len(in.DiffIDs), len(in.Manifest.Layers))
	}

	for i, chainID := range in.ChainIDs {
		layerPath := filepath.Join(in.WorkDir, chainID, "layer.tar")
		if err := verifyFileDigest(layerPath, in.DiffIDs[i]); err != nil {
			return err
		}
	}

	return nil
}

func verifyFileDigest(path string, expected string) error {
	want, err := digest.Parse(expected)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", regerr.ErrInvalidManifest, expected, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", regerr.ErrIOError, path, err)
	}
	defer f.Close()

	h := digest.NewHasher(want.Algorithm())
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("%w: hashing %s: %w", regerr.ErrIOError, path, err)
	}

	got := fmt.Sprintf("%s:%x", want.Algorithm(), h.Sum(nil))
	if got != want.String() {
		return fmt.Errorf("%w: %s computed %s, expected %s", regerr.ErrDigestMismatch, path, got, want.String())
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling %s: %w", regerr.ErrIOError, path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", regerr.ErrIOError, filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", regerr.ErrIOError, path, err)
	}
	return nil
}
