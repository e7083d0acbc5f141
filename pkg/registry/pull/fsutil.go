package pull

import (
	"io"
	"os"
)

// copyFile is commit's fallback whenever os.Rename fails, typically with
// EXDEV when the working directory and the caller's save directory live on
// different filesystems.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
