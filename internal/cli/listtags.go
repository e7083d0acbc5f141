package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ociregistry/ociregistry/internal/cliutil"
)

func newListTagsCommand() *cobra.Command {
	var limit int
	var last string

	cmd := &cobra.Command{
		Use:   "list-tags <ref>",
		Short: "List the tags of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, ref, err := newClientForRef(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			tags, err := client.ListTags(cmd.Context(), ref.Path(), limit, last)
			if err != nil {
				return err
			}

			for _, tag := range tags.Tags {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), tag); err != nil {
					return cliutil.Wrap(cliutil.ExitIOFailure, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of tags to return")
	cmd.Flags().StringVar(&last, "last", "", "last tag seen, for pagination")

	return cmd
}
