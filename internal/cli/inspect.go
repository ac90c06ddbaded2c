package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helixir/citation-index-service/internal/citation"
	"github.com/helixir/citation-index-service/internal/identifier"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <identifier>...",
		Short: "Print identifiers in canonical scheme:value form",
		Long: `Normalize strips resolver URL prefixes, percent-decodes and lower-cases
DOIs. Identifiers of unknown schemes are printed unchanged.

Examples:
  citetool normalize https://doi.org/10.1108/JD-12-2013-0166
  citetool normalize meta:br/0601 pmid:123/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, raw := range args {
				fmt.Fprintln(cmd.OutOrStdout(), identifier.Normalize(raw).String())
			}
			return nil
		},
	}
}

func newTimespanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timespan <citing-date> <cited-date>",
		Short: "Print the ISO 8601 duration between two publication dates",
		Long: `Timespan compares two dates of year, year-month or full precision
and prints the duration at the coarser of the two precisions.

Example:
  citetool timespan 2019-03 2010-12-07`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			span := citation.Timespan(args[0], args[1])
			if span == "" {
				return fmt.Errorf("cannot compute a timespan between %q and %q", args[0], args[1])
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), span)
			return err
		},
	}
}
