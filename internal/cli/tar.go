package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ociregistry/ociregistry/internal/cliutil"
	"github.com/ociregistry/ociregistry/pkg/registry/pack"
)

// newTarCommand builds an archive, without contacting the registry, from a
// directory laid out like a pull's working directory: manifest.json,
// image_config.json, and one <chain-id>/layer.tar per layer. The pull
// command removes its own working directory when it finishes, so such a
// directory has to be prepared by other means.
func newTarCommand() *cobra.Command {
	var imageDir, output, format, repoTag string
	var gzipOutput bool

	cmd := &cobra.Command{
		Use:   "tar",
		Short: "Assemble a directory in pull working-directory layout into an archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if imageDir == "" {
				return cliutil.Wrap(cliutil.ExitUserError, fmt.Errorf("--image-dir is required"))
			}
			if output == "" {
				return cliutil.Wrap(cliutil.ExitUserError, fmt.Errorf("--output is required"))
			}

			packFormat, err := parsePackFormat(format)
			if err != nil {
				return cliutil.Wrap(cliutil.ExitUserError, err)
			}

			in, err := pack.LoadInputFromDir(imageDir, repoTag)
			if err != nil {
				return err
			}

			packager := pack.New()
			if err := packager.Pack(cmd.Context(), in, packFormat, gzipOutput, output); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), output)
			return err
		},
	}

	cmd.Flags().StringVar(&imageDir, "image-dir", "", "directory with manifest.json, image_config.json and <chain-id>/layer.tar entries (required)")
	cmd.Flags().StringVar(&output, "output", "", "output archive path (required)")
	cmd.Flags().StringVar(&format, "format", "v2", "archive format: v2, oci")
	cmd.Flags().StringVar(&repoTag, "repo-tag", "", "repository:tag to embed in the archive metadata")
	cmd.Flags().BoolVarP(&gzipOutput, "gzip", "z", false, "gzip-compress the output archive")

	return cmd
}
