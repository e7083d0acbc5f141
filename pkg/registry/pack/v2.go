package pack

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

// v2Manifest is the single-entry manifest.json document for a Docker V2
// image archive.
type v2Manifest struct {
	Config   string   `json:"Config"`
	RepoTags []string `json:"RepoTags"`
	Layers   []string `json:"Layers"`
}

// buildV2Layout stages a Docker V2 archive into stageDir: <config-hex>.json,
// one <chain-id>/layer.tar per layer (hard-linked from the working
// directory where possible, since both live under the pull's private
// working directory and are discarded together; copied otherwise), and
// manifest.json.
func buildV2Layout(in Input, stageDir string) error {
	configName := in.ConfigDigest.Hex() + ".json"
	if err := writeJSONRaw(filepath.Join(stageDir, configName), in.ConfigBytes); err != nil {
		return err
	}

	layerPaths := make([]string, len(in.ChainIDs))
	for i, chainID := range in.ChainIDs {
		rel := filepath.Join(chainID, "layer.tar")
		layerPaths[i] = filepath.ToSlash(rel)

		src := filepath.Join(in.WorkDir, chainID, "layer.tar")
		dst := filepath.Join(stageDir, chainID, "layer.tar")
		if err := linkOrCopy(src, dst); err != nil {
			return err
		}
	}

	repoTags := []string{}
	if in.RepoTag != "" {
		repoTags = []string{in.RepoTag}
	}

	manifest := []v2Manifest{{
		Config:   configName,
		RepoTags: repoTags,
		Layers:   layerPaths,
	}}

	return writeJSONFile(filepath.Join(stageDir, "manifest.json"), manifest)
}

func writeJSONRaw(path string, b []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", regerr.ErrIOError, filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %w", regerr.ErrIOError, path, err)
	}
	return nil
}
