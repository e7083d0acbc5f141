package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ociregistry/ociregistry/pkg/registry/platform"
	"github.com/ociregistry/ociregistry/pkg/registry/reference"
	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
	"github.com/ociregistry/ociregistry/pkg/registry/transport"
)

func platformForTest() platform.Platform {
	return platform.Platform{OS: "linux", Architecture: "amd64"}
}

func sha256Digest(b []byte) string {
	sum := sha256.Sum256(b)
	return fmt.Sprintf("sha256:%x", sum)
}

func TestResolveLeafManifestByDigest(t *testing.T) {
	cfgDoc := []byte(`{"architecture":"amd64","os":"linux","rootfs":{"type":"layers","diff_ids":["sha256:1111111111111111111111111111111111111111111111111111111111111111"]}}`)
	cfgDigest := sha256Digest(cfgDoc)

	manifestDoc := []byte(fmt.Sprintf(`{
		"schemaVersion": 2,
		"mediaType": "application/vnd.oci.image.manifest.v1+json",
		"config": {"mediaType": "application/vnd.oci.image.config.v1+json", "digest": %q, "size": %d},
		"layers": [{"mediaType": "application/vnd.oci.image.layer.v1.tar+gzip", "digest": "sha256:2222222222222222222222222222222222222222222222222222222222222222", "size": 10}]
	}`, cfgDigest, len(cfgDoc)))
	manifestDigest := sha256Digest(manifestDoc)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc(fmt.Sprintf("/v2/library/hello-world/manifests/%s", manifestDigest), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.oci.image.manifest.v1+json")
		w.Write(manifestDoc)
	})
	mux.HandleFunc(fmt.Sprintf("/v2/library/hello-world/blobs/%s", cfgDigest), func(w http.ResponseWriter, r *http.Request) {
		w.Write(cfgDoc)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ref, err := reference.Parse("hello-world@" + manifestDigest)
	require.NoError(t, err)

	client := transport.New(transport.Config{BaseURL: srv.URL})
	res := New(client)

	result, err := res.Resolve(context.Background(), ref, platformForTest())
	require.NoError(t, err)
	assert.Equal(t, manifestDigest, result.Digest.String())
	assert.Len(t, result.Manifest.Layers, 1)
	assert.Equal(t, "amd64", result.Config.Architecture)
}

func TestResolveIndexRecursesToPlatform(t *testing.T) {
	cfgDoc := []byte(`{"architecture":"amd64","os":"linux","rootfs":{"type":"layers","diff_ids":[]}}`)
	cfgDigest := sha256Digest(cfgDoc)

	manifestDoc := []byte(fmt.Sprintf(`{
		"schemaVersion": 2,
		"mediaType": "application/vnd.oci.image.manifest.v1+json",
		"config": {"mediaType": "application/vnd.oci.image.config.v1+json", "digest": %q, "size": %d},
		"layers": []
	}`, cfgDigest, len(cfgDoc)))
	manifestDigest := sha256Digest(manifestDoc)

	indexDoc := []byte(fmt.Sprintf(`{
		"schemaVersion": 2,
		"mediaType": "application/vnd.oci.image.index.v1+json",
		"manifests": [
			{"mediaType": "application/vnd.oci.image.manifest.v1+json", "digest": %q, "size": %d, "platform": {"os": "linux", "architecture": "amd64"}},
			{"mediaType": "application/vnd.oci.image.manifest.v1+json", "digest": "sha256:3333333333333333333333333333333333333333333333333333333333333333", "size": 1, "platform": {"os": "windows", "architecture": "amd64"}}
		]
	}`, manifestDigest, len(manifestDoc)))
	indexDigest := sha256Digest(indexDoc)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc(fmt.Sprintf("/v2/library/hello-world/manifests/%s", indexDigest), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.oci.image.index.v1+json")
		w.Write(indexDoc)
	})
	mux.HandleFunc(fmt.Sprintf("/v2/library/hello-world/manifests/%s", manifestDigest), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.oci.image.manifest.v1+json")
		w.Write(manifestDoc)
	})
	mux.HandleFunc(fmt.Sprintf("/v2/library/hello-world/blobs/%s", cfgDigest), func(w http.ResponseWriter, r *http.Request) {
		w.Write(cfgDoc)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ref, err := reference.Parse("hello-world@" + indexDigest)
	require.NoError(t, err)

	client := transport.New(transport.Config{BaseURL: srv.URL})
	res := New(client)

	result, err := res.Resolve(context.Background(), ref, platformForTest())
	require.NoError(t, err)
	assert.Equal(t, manifestDigest, result.Digest.String())
}

func TestResolveRejectsNestedIndex(t *testing.T) {
	innerIndexDoc := []byte(fmt.Sprintf(`{
		"schemaVersion": 2,
		"mediaType": "application/vnd.oci.image.index.v1+json",
		"manifests": [
			{"mediaType": "application/vnd.oci.image.manifest.v1+json", "digest": "sha256:4444444444444444444444444444444444444444444444444444444444444444", "size": 1, "platform": {"os": "linux", "architecture": "amd64"}}
		]
	}`))
	innerIndexDigest := sha256Digest(innerIndexDoc)

	outerIndexDoc := []byte(fmt.Sprintf(`{
		"schemaVersion": 2,
		"mediaType": "application/vnd.oci.image.index.v1+json",
		"manifests": [
			{"mediaType": "application/vnd.oci.image.index.v1+json", "digest": %q, "size": %d, "platform": {"os": "linux", "architecture": "amd64"}}
		]
	}`, innerIndexDigest, len(innerIndexDoc)))
	outerIndexDigest := sha256Digest(outerIndexDoc)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc(fmt.Sprintf("/v2/library/hello-world/manifests/%s", outerIndexDigest), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.oci.image.index.v1+json")
		w.Write(outerIndexDoc)
	})
	mux.HandleFunc(fmt.Sprintf("/v2/library/hello-world/manifests/%s", innerIndexDigest), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.oci.image.index.v1+json")
		w.Write(innerIndexDoc)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ref, err := reference.Parse("hello-world@" + outerIndexDigest)
	require.NoError(t, err)

	client := transport.New(transport.Config{BaseURL: srv.URL})
	res := New(client)

	_, err = res.Resolve(context.Background(), ref, platformForTest())
	require.Error(t, err)
	assert.ErrorIs(t, err, regerr.ErrInvalidManifest)
}

func TestResolveManifestNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/v2/library/hello-world/manifests/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ref, err := reference.Parse("hello-world:missing")
	require.NoError(t, err)

	client := transport.New(transport.Config{BaseURL: srv.URL})
	res := New(client)

	_, err = res.Resolve(context.Background(), ref, platformForTest())
	require.Error(t, err)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
