package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/citation-index-service/internal/identifier"
	"github.com/helixir/citation-index-service/internal/table"
)

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <transform> [args...]",
		Short: "Apply a table transform to a CSV table",
		Long: `Run reads a CSV table, applies the named transform and writes the
result. Remaining arguments are passed to the transform.

Examples:
  citetool run metadata id citation reference -i results.csv
  citetool run citations_info oci citing cited < pairs.csv
  citetool run sum_all count -f records < counts.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd, opts, args[0], args[1:])
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", "CSV input file, - for stdin")
	return cmd
}

func runTransform(cmd *cobra.Command, opts *options, name string, args []string) error {
	c, err := opts.build(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	fn, ok := c.Registry.Transform(name)
	if !ok {
		return fmt.Errorf("unknown transform %q (known: %s)", name, strings.Join(c.Registry.TransformNames(), ", "))
	}

	in, err := openInput(cmd, opts.input)
	if err != nil {
		return err
	}
	defer in.Close()

	t, err := table.ReadCSV(in)
	if err != nil {
		return err
	}

	out, _, err := fn(cmd.Context(), t, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return writeTable(cmd.OutOrStdout(), out, opts.format)
}

func writeTable(w io.Writer, t *table.Table, format string) error {
	switch format {
	case "csv", "":
		return t.WriteCSV(w)
	case "records":
		if err := t.WriteJSON(w); err != nil {
			return err
		}
		_, err := fmt.Fprintln(w)
		return err
	case "table":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func newParamCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "param <preprocessor> <value>",
		Short: "Apply a parameter preprocessor to a value",
		Long: `Param prints the value a query parameter takes after preprocessing.

Examples:
  citetool param id2omids doi:10.1108/jd-12-2013-0166
  citetool param generate_id_search doi:10.1/a__pmid:123`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.build(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			fn, ok := c.Registry.Param(args[0])
			if !ok {
				return fmt.Errorf("unknown preprocessor %q (known: %s)", args[0], strings.Join(c.Registry.ParamNames(), ", "))
			}
			out, err := fn(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
			return err
		},
	}
}

func newOpsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the registered transforms and preprocessors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.build(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "transforms:")
			for _, n := range c.Registry.TransformNames() {
				fmt.Fprintln(w, "  "+n)
			}
			fmt.Fprintln(w, "preprocessors:")
			for _, n := range c.Registry.ParamNames() {
				fmt.Fprintln(w, "  "+n)
			}
			return nil
		},
	}
}

func newVenueCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "venue <issn-or-jid>",
		Short: "List the resources published in a venue",
		Long: `Venue resolves a journal identifier and prints the OMID of every
resource that is part of it, directly or through volumes and issues.

Example:
  citetool venue issn:0138-9130`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.build(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			omids, err := c.Resolver.ResolveVenue(cmd.Context(), identifier.Normalize(args[0]))
			if err != nil {
				return err
			}
			for _, id := range omids {
				fmt.Fprintln(cmd.OutOrStdout(), id.String())
			}
			return nil
		},
	}
}
