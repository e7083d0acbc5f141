package pack

import (
	"path/filepath"

	"github.com/ociregistry/ociregistry/internal/ociimage"
	"github.com/ociregistry/ociregistry/pkg/registry/digest"
)

const ociBaseNameAnnotation = "org.opencontainers.image.base.name"

type ociLayoutMarker struct {
	ImageLayoutVersion string `json:"imageLayoutVersion"`
}

// buildOCILayout stages an OCI image layout into stageDir: oci-layout,
// blobs/<alg>/<hex> for every layer/config/manifest, and index.json
// pointing at the manifest, with the base-name annotation set when
// in.RepoTag is non-empty.
func buildOCILayout(in Input, stageDir string) error {
	if err := writeJSONFile(filepath.Join(stageDir, "oci-layout"), ociLayoutMarker{ImageLayoutVersion: "1.0.0"}); err != nil {
		return err
	}

	for i, chainID := range in.ChainIDs {
		layerDigest, err := digest.Parse(string(in.Manifest.Layers[i].Digest))
		if err != nil {
			return err
		}
		src := filepath.Join(in.WorkDir, chainID, "layer.tar")
		dst := blobPath(stageDir, layerDigest)
		if err := linkOrCopy(src, dst); err != nil {
			return err
		}
	}

	configDst := blobPath(stageDir, in.ConfigDigest)
	if err := writeJSONRaw(configDst, in.ConfigBytes); err != nil {
		return err
	}

	manifestBytes, manifestDigest, err := marshalAndDigest(in.Manifest)
	if err != nil {
		return err
	}
	if err := writeJSONRaw(blobPath(stageDir, manifestDigest), manifestBytes); err != nil {
		return err
	}

	annotations := map[string]string{}
	if in.RepoTag != "" {
		annotations[ociBaseNameAnnotation] = in.RepoTag
	}

	index := ociimage.Index{
		Versioned: in.Manifest.Versioned,
		MediaType: "application/vnd.oci.image.index.v1+json",
		Manifests: []ociimage.Descriptor{{
			MediaType:   in.Manifest.MediaType,
			Digest:      stringToOCIDigest(manifestDigest.String()),
			Size:        int64(len(manifestBytes)),
			Annotations: annotations,
		}},
	}

	return writeJSONFile(filepath.Join(stageDir, "index.json"), index)
}

func blobPath(stageDir string, d digest.Digest) string {
	return filepath.Join(stageDir, "blobs", string(d.Algorithm()), d.Hex())
}
