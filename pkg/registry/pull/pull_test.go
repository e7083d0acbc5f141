package pull

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ociregistry/ociregistry/pkg/registry/pack"
	"github.com/ociregistry/ociregistry/pkg/registry/platform"
	"github.com/ociregistry/ociregistry/pkg/registry/reference"
	"github.com/ociregistry/ociregistry/pkg/registry/transport"
)

func sha256Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return fmt.Sprintf("sha256:%x", sum)
}

func gzipOf(t *testing.T, plain []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(plain)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func TestPullEndToEnd(t *testing.T) {
	layerPlain := []byte("this is the uncompressed layer tar content")
	layerCompressed := gzipOf(t, layerPlain)
	layerDiffID := sha256Digest(layerPlain)
	layerWireDigest := sha256Digest(layerCompressed)

	cfgDoc := []byte(fmt.Sprintf(`{"architecture":"amd64","os":"linux","rootfs":{"type":"layers","diff_ids":[%q]}}`, layerDiffID))
	cfgDigest := sha256Digest(cfgDoc)

	manifestDoc := []byte(fmt.Sprintf(`{
		"schemaVersion": 2,
		"mediaType": "application/vnd.oci.image.manifest.v1+json",
		"config": {"mediaType": "application/vnd.oci.image.config.v1+json", "digest": %q, "size": %d},
		"layers": [{"mediaType": "application/vnd.oci.image.layer.v1.tar+gzip", "digest": %q, "size": %d}]
	}`, cfgDigest, len(cfgDoc), layerWireDigest, len(layerCompressed)))
	manifestDigest := sha256Digest(manifestDoc)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/v2/library/hello-world/manifests/"+manifestDigest, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.oci.image.manifest.v1+json")
		w.Write(manifestDoc)
	})
	mux.HandleFunc("/v2/library/hello-world/blobs/"+cfgDigest, func(w http.ResponseWriter, r *http.Request) {
		w.Write(cfgDoc)
	})
	mux.HandleFunc("/v2/library/hello-world/blobs/"+layerWireDigest, func(w http.ResponseWriter, r *http.Request) {
		w.Write(layerCompressed)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ref, err := reference.Parse("hello-world@" + manifestDigest)
	require.NoError(t, err)

	client := transport.New(transport.Config{BaseURL: srv.URL})
	orch := New(client)

	saveDir := t.TempDir()
	archivePath, err := orch.Pull(context.Background(), ref, Options{
		SaveDir:  saveDir,
		Platform: platform.Platform{OS: "linux", Architecture: "amd64"},
		Format:   pack.FormatV2,
	})
	require.NoError(t, err)
	assert.FileExists(t, archivePath)
	assert.Equal(t, saveDir, filepath.Dir(archivePath))

	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer f.Close()

	tr := tar.NewReader(f)
	var sawManifest bool
	for {
		hdr, terr := tr.Next()
		if terr != nil {
			break
		}
		if hdr.Name == "manifest.json" {
			sawManifest = true
		}
	}
	assert.True(t, sawManifest)

	entries, err := os.ReadDir(os.TempDir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "ociregistry-pull-", "working directory must be cleaned up after a successful pull")
	}
}
