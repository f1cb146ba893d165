package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/arcade-market/media-api/pkg/config"
	"github.com/arcade-market/media-api/pkg/logging"
)

// options are the persistent flags shared by every subcommand
type options struct {
	configPath string
	logLevel   string
	output     string
	config     *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "mediactl",
		Short: "Resolve NFT media locators and inspect the media API",
		Long: strings.TrimSpace(`
Resolve ipfs://, gateway and templated locators to displayable URLs using the
same engine as the media API, and inspect the mirrors of a running instance.
`),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := logging.InitLogger(opts.logLevel, "console"); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}
			if opts.output != "table" && opts.output != "json" {
				return fmt.Errorf("unknown output format %q", opts.output)
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			opts.config = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config-path", "config.local.yaml", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")

	cmd.AddCommand(
		newResolveCommand(opts),
		newCandidatesCommand(opts),
		newMirrorsCommand(opts),
	)
	return cmd
}

// newTable creates a table writer that renders to the command's output
func newTable(cmd *cobra.Command, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	return t
}
