// Package cli implements citetool, a command-line front end to the citation
// operations.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/citation-index-service/internal/app"
	"github.com/helixir/citation-index-service/internal/config"
	"github.com/helixir/citation-index-service/internal/observability"
)

// options holds the persistent flags shared by every subcommand.
type options struct {
	verbose bool
	format  string
	input   string
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "citetool",
		Short: "Run OpenCitations table transforms and identifier utilities",
		Long: `citetool runs the citation operations of the index service locally.

Tables are read as CSV with a header line and written as CSV, as a JSON
table, or as JSON records. Upstream endpoints are configured the same way
as the server, through CITEINDEX_* environment variables or config.yaml.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log upstream activity to stderr")
	rootCmd.PersistentFlags().StringVarP(&opts.format, "format", "f", "csv", "output format (csv, table, records)")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newParamCmd(opts),
		newOpsCmd(opts),
		newVenueCmd(opts),
		newNormalizeCmd(),
		newTimespanCmd(),
	)
	return rootCmd
}

// build loads configuration and wires the operations. Logs go to stderr
// and are silenced unless --verbose is set.
func (o *options) build(stderr io.Writer) (*app.Components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := zerolog.Nop()
	if o.verbose {
		logCfg := observability.DefaultLoggingConfig()
		logCfg.Level = "debug"
		logCfg.Format = "console"
		logCfg.Writer = stderr
		logger = observability.NewLogger(logCfg)
	}

	return app.Build(cfg, logger, nil)
}

// openInput returns the named file, or stdin for "" and "-".
func openInput(cmd *cobra.Command, name string) (io.ReadCloser, error) {
	if name == "" || name == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return f, nil
}
