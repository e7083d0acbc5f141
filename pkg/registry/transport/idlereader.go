package transport

import (
	"fmt"
	"io"
	"time"

	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

// idleTimeoutReader wraps a blob response body so that a stall in the
// transfer - no bytes for `timeout` - surfaces as a NetworkError rather
// than hanging the caller forever. Total transfer time is unbounded; only
// the gap between successive reads is timed, per §5's idle-read timeout.
type idleTimeoutReader struct {
	rc      io.ReadCloser
	timeout time.Duration
}

func newIdleTimeoutReader(rc io.ReadCloser, timeout time.Duration) io.ReadCloser {
	return &idleTimeoutReader{rc: rc, timeout: timeout}
}

func (r *idleTimeoutReader) Read(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}

	done := make(chan result, 1)
	go func() {
		n, err := r.rc.Read(p)
		done <- result{n, err}
	}()

	select {
	case res := <-done:
		return res.n, res.err
	case <-time.After(r.timeout):
		return 0, fmt.Errorf("%w: no data for %s", regerr.ErrNetworkError, r.timeout)
	}
}

func (r *idleTimeoutReader) Close() error {
	return r.rc.Close()
}
