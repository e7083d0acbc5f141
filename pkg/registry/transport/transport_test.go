package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ociregistry/ociregistry/pkg/registry/auth"
	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

func TestDoMetadataNoAuthNeeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	resp, err := c.DoMetadata(context.Background(), http.MethodGet, "/v2/foo/manifests/latest", auth.RepositoryScope("foo", "pull"), "")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDoMetadataSecondUnauthorizedSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.DoMetadata(context.Background(), http.MethodGet, "/v2/foo/manifests/latest", auth.RepositoryScope("foo", "pull"), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, regerr.ErrUnauthorized))
}

func TestDoMetadataRetriesOnceThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		n := calls.Add(1)
		if n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	resp, err := c.DoMetadata(context.Background(), http.MethodGet, "/v2/foo/manifests/latest", auth.RepositoryScope("foo", "pull"), "")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStreamNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, _, err := c.Stream(context.Background(), "/v2/foo/blobs/sha256:abc", auth.RepositoryScope("foo", "pull"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, regerr.ErrImageNotFound))
}

func TestStreamReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v2/" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Write([]byte("blob-bytes"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	body, _, err := c.Stream(context.Background(), "/v2/foo/blobs/sha256:abc", auth.RepositoryScope("foo", "pull"))
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "blob-bytes", string(data))
}

func TestIdleTimeoutReaderTimesOut(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	r := newIdleTimeoutReader(pr, 10*time.Millisecond)
	buf := make([]byte, 16)
	_, err := r.Read(buf)
	require.Error(t, err)
	assert.True(t, errors.Is(err, regerr.ErrNetworkError))
}

func TestNewPlainHTTPScheme(t *testing.T) {
	c := New(Config{BaseURL: "registry.example.com", PlainHTTP: true})
	assert.Equal(t, "http://registry.example.com/v2/", c.URL("/v2/"))
}

func TestNewDefaultHTTPSScheme(t *testing.T) {
	c := New(Config{BaseURL: "registry.example.com"})
	assert.Equal(t, "https://registry.example.com/v2/", c.URL("/v2/"))
}
