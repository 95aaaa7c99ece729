package commands

import (
	"github.com/spf13/cobra"

	"github.com/holvikit/holvi/internal/buildinfo"
)

// DefaultConfigFile is read when --config is not given.
const DefaultConfigFile = "holvi.yaml"

type rootOptions struct {
	configPath  string
	debug       bool
	metricsFile string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "holvi",
		Short:   "Manage Holvi invoices from the command line",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", DefaultConfigFile, "path to holvi.yaml")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "log every request to stderr")
	rootCmd.PersistentFlags().StringVar(&opts.metricsFile, "metrics-file", "", "write request metrics in Prometheus text format to this file")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newInvoiceCommand(opts))

	return rootCmd
}
