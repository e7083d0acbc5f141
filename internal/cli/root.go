// Package cli implements the cobra command tree for the ociregistry CLI:
// list-tags, inspect, pull, and tar, plus the shared global flags and
// PersistentPreRunE that loads config and wires up logging.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/ociregistry/ociregistry/internal/cliutil"
	"github.com/ociregistry/ociregistry/internal/config"
	"github.com/ociregistry/ociregistry/internal/logging"
	"github.com/ociregistry/ociregistry/internal/version"
)

// Execute builds the command tree, runs it, and returns the process exit
// code named in §6.
func Execute() int {
	cmd := NewRootCommand()

	if err := cmd.Execute(); err != nil {
		return cliutil.ClassifyExitCode(err)
	}
	return cliutil.ExitSuccess
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "ociregistry",
		Short: "Inspect and pull images from an OCI/Docker Registry HTTP API v2 host",
		Long: `ociregistry talks the OCI/Docker Registry HTTP API v2 directly: it lists
tags, inspects manifests against a target platform, and pulls image layers
into a Docker V2 or OCI layout archive without ever running a container.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.GetInfo().String(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return cliutil.Wrap(cliutil.ExitUserError, err)
			}

			logger := logging.New(cfg.LogLevel, cfg.LogFormat)

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug().
				Str("logLevel", cfg.LogLevel).
				Str("logFormat", cfg.LogFormat).
				Msg("configuration loaded")

			return nil
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .ociregistry.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.String("username", "", "registry username")
	pf.String("password", "", "registry password")
	pf.Bool("ignore-cert-error", false, "skip TLS certificate verification")
	pf.Bool("plain-http", false, "use http:// instead of https:// against the registry")

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return cliutil.Wrap(cliutil.ExitUserError, err)
	})

	cmd.AddCommand(
		newListTagsCommand(),
		newInspectCommand(),
		newPullCommand(),
		newTarCommand(),
	)

	return cmd
}
