package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ociregistry/ociregistry/internal/cliutil"
	"github.com/ociregistry/ociregistry/pkg/registry/platform"
)

func newInspectCommand() *cobra.Command {
	var platformStr string

	cmd := &cobra.Command{
		Use:   "inspect <ref>",
		Short: "Resolve a reference's manifest and image config against a platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := platform.Parse(platformStr)
			if err != nil {
				return cliutil.Wrap(cliutil.ExitUserError, err)
			}

			client, ref, err := newClientForRef(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			result, err := client.Inspect(cmd.Context(), ref, target)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return cliutil.Wrap(cliutil.ExitIOFailure, fmt.Errorf("encoding result: %w", err))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&platformStr, "platform", "", "target platform os/arch[/variant] (default: host)")

	return cmd
}
