package pack

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

// linkOrCopy places src's content at dst, preferring a hard link (src and
// dst are both scratch files under the same pull's working/staging tree
// and discarded together) and falling back to a copy across filesystem
// boundaries.
func linkOrCopy(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", regerr.ErrIOError, filepath.Dir(dst), err)
	}

	if err := os.Link(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", regerr.ErrIOError, src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", regerr.ErrIOError, dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: copying %s to %s: %w", regerr.ErrIOError, src, dst, err)
	}
	return nil
}
