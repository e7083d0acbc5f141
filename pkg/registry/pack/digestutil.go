package pack

import (
	"encoding/json"
	"fmt"

	ocidigest "github.com/opencontainers/go-digest"

	"github.com/ociregistry/ociregistry/pkg/registry/digest"
	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

// marshalAndDigest serializes v to JSON and computes its sha256 digest, the
// form needed for an OCI layout's blobs/<alg>/<hex> naming.
func marshalAndDigest(v any) ([]byte, digest.Digest, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, digest.Digest{}, fmt.Errorf("%w: marshaling manifest: %w", regerr.ErrInvalidManifest, err)
	}
	return b, digest.FromBytes(b, digest.SHA256), nil
}

func stringToOCIDigest(s string) ocidigest.Digest {
	return ocidigest.Digest(s)
}
