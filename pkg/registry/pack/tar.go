package pack

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/ociregistry/ociregistry/pkg/registry/regerr"
)

// tarDirectory walks stageDir and writes every entry into a tar archive at
// outputPath, optionally wrapped in gzip. It generalizes the teacher's
// untar (app/file.go) in reverse: where untar reads a tar+gzip stream and
// recreates files via filepath.WalkDir-shaped switch-on-type-flag logic,
// this walks the filesystem and emits the matching tar headers, without
// needing to chdir the process the way the original Python's TarImageDir did.
func tarDirectory(stageDir, outputPath string, gzipOutput bool) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %w", regerr.ErrIOError, outputPath, err)
	}
	defer out.Close()

	var w io.Writer = out
	var gz *gzip.Writer
	if gzipOutput {
		gz = gzip.NewWriter(out)
		w = gz
	}

	tw := tar.NewWriter(w)

	walkErr := filepath.WalkDir(stageDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == stageDir {
			return nil
		}

		rel, err := filepath.Rel(stageDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.IsDir() {
			hdr := &tar.Header{Name: rel + "/", Typeflag: tar.TypeDir, Mode: int64(info.Mode().Perm()), ModTime: info.ModTime()}
			return tw.WriteHeader(hdr)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		return fmt.Errorf("%w: taring %s: %w", regerr.ErrIOError, stageDir, walkErr)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("%w: finalizing tar: %w", regerr.ErrIOError, err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("%w: finalizing gzip: %w", regerr.ErrIOError, err)
		}
	}

	return nil
}
