package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ociregistry/ociregistry/internal/cliutil"
	"github.com/ociregistry/ociregistry/pkg/registry"
	"github.com/ociregistry/ociregistry/pkg/registry/pack"
	"github.com/ociregistry/ociregistry/pkg/registry/platform"
)

func newPullCommand() *cobra.Command {
	var saveTo, platformStr, format string

	cmd := &cobra.Command{
		Use:   "pull <ref>",
		Short: "Pull an image's layers and config into an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if saveTo == "" {
				return cliutil.Wrap(cliutil.ExitUserError, fmt.Errorf("--save-to is required"))
			}

			target, err := platform.Parse(platformStr)
			if err != nil {
				return cliutil.Wrap(cliutil.ExitUserError, err)
			}

			packFormat, err := parsePackFormat(format)
			if err != nil {
				return cliutil.Wrap(cliutil.ExitUserError, err)
			}

			client, ref, err := newClientForRef(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			archivePath, err := client.Pull(cmd.Context(), ref, registry.PullOptions{
				SaveDir:  saveTo,
				Platform: target,
				Format:   packFormat,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), archivePath)
			return err
		},
	}

	cmd.Flags().StringVar(&saveTo, "save-to", "", "directory to write the archive into (required)")
	cmd.Flags().StringVar(&platformStr, "platform", "", "target platform os/arch[/variant] (default: host)")
	cmd.Flags().StringVar(&format, "format", "v2", "archive format: v2, oci")

	return cmd
}

func parsePackFormat(s string) (pack.Format, error) {
	switch s {
	case "v2", "":
		return pack.FormatV2, nil
	case "oci":
		return pack.FormatOCI, nil
	default:
		return pack.Format(0), fmt.Errorf("invalid format %q: expected v2 or oci", s)
	}
}
