package pack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ociregistry/ociregistry/internal/ociimage"
	"github.com/ociregistry/ociregistry/pkg/registry/digest"
	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

// ManifestFileName and ConfigFileName are the sidecar files a pull writes
// into its working directory alongside the per-chain-ID layer.tar
// directories; LoadInputFromDir rebuilds an Input from a directory in that
// layout without re-contacting the registry. The pull removes its working
// directory, sidecars included, when it finishes.
const (
	ManifestFileName = "manifest.json"
	ConfigFileName    = "image_config.json"
)

// WriteSidecars persists the manifest and config documents a later
// LoadInputFromDir call needs.
func WriteSidecars(dir string, manifest ociimage.Manifest, configBytes []byte) error {
	if err := writeJSONFile(filepath.Join(dir, ManifestFileName), manifest); err != nil {
		return err
	}
	return writeJSONRaw(filepath.Join(dir, ConfigFileName), configBytes)
}

// LoadInputFromDir reconstructs an Input from a directory laid out like a
// pull's working directory: manifest.json, image_config.json, and one
// <chain-id>/layer.tar per layer. Chain-IDs are re-derived deterministically
// from the config's diff_ids, the same computation the pull orchestrator
// itself performs, rather than re-reading directory names — it must match
// what was used as the layer.tar staging path.
func LoadInputFromDir(dir string, repoTag string) (Input, error) {
	manifestBytes, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return Input{}, fmt.Errorf("%w: reading %s: %w", regerr.ErrIOError, ManifestFileName, err)
	}
	var manifest ociimage.Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return Input{}, fmt.Errorf("%w: decoding %s: %w", regerr.ErrInvalidManifest, ManifestFileName, err)
	}

	configBytes, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	if err != nil {
		return Input{}, fmt.Errorf("%w: reading %s: %w", regerr.ErrIOError, ConfigFileName, err)
	}
	var cfg ociimage.ImageConfig
	if err := json.Unmarshal(configBytes, &cfg); err != nil {
		return Input{}, fmt.Errorf("%w: decoding %s: %w", regerr.ErrInvalidManifest, ConfigFileName, err)
	}

	diffIDs := make([]string, len(cfg.RootFS.DiffIDs))
	for i, d := range cfg.RootFS.DiffIDs {
		diffIDs[i] = d.String()
	}

	chainIDs, err := digest.ChainIDHexes(diffIDs)
	if err != nil {
		return Input{}, fmt.Errorf("%w: deriving chain IDs: %w", regerr.ErrInvalidManifest, err)
	}

	return Input{
		WorkDir:      dir,
		ConfigDigest: digest.FromBytes(configBytes, digest.SHA256),
		ConfigBytes:  configBytes,
		Manifest:     manifest,
		ChainIDs:     chainIDs,
		DiffIDs:      diffIDs,
		RepoTag:      repoTag,
	}, nil
}
