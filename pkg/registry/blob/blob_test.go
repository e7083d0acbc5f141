package blob

import (
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

	ocidigest "github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ociregistry/ociregistry/internal/ociimage"
	"github.com/ociregistry/ociregistry/pkg/registry/transport"
)

func gzipBytes(t *testing.T, plain []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(plain)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return fmt.Sprintf("sha256:%x", sum)
}

func TestDownloadPlainBlobVerifiesDigest(t *testing.T) {
	content := []byte("some layer bytes")
	dgst := sha256Hex(content)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/v2/foo/blobs/"+dgst, func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := transport.New(transport.Config{BaseURL: srv.URL})
	d := New(client)

	dest := filepath.Join(t.TempDir(), "blob.bin")
	desc := ociimage.Descriptor{Digest: ocidigest.Digest(dgst), Size: int64(len(content))}

	n, err := d.Download(context.Background(), "foo", desc, dest, false)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDownloadGzipDecodesButHashesWireBytes(t *testing.T) {
	plain := []byte("layer tar contents go here")
	compressed := gzipBytes(t, plain)
	wireDigest := sha256Hex(compressed)

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/v2/foo/blobs/"+wireDigest, func(w http.ResponseWriter, r *http.Request) {
		w.Write(compressed)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := transport.New(transport.Config{BaseURL: srv.URL})
	d := New(client)

	dest := filepath.Join(t.TempDir(), "layer.tar")
	desc := ociimage.Descriptor{Digest: ocidigest.Digest(wireDigest), Size: int64(len(compressed))}

	n, err := d.Download(context.Background(), "foo", desc, dest, true)
	require.NoError(t, err)
	assert.Equal(t, int64(len(plain)), n)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestDownloadDigestMismatchRemovesPartial(t *testing.T) {
	content := []byte("tampered in transit")
	wrongDigest := sha256Hex([]byte("not the same bytes"))

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/v2/foo/blobs/"+wrongDigest, func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := transport.New(transport.Config{BaseURL: srv.URL})
	d := New(client)

	dest := filepath.Join(t.TempDir(), "blob.bin")
	desc := ociimage.Descriptor{Digest: ocidigest.Digest(wrongDigest), Size: int64(len(content))}

	_, err := d.Download(context.Background(), "foo", desc, dest, false)
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}
