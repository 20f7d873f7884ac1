package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lucretia/gnat-llvm/repinfo"
)

// ValidFormats defines the allowed report formats.
var ValidFormats = []string{"text", "json"}

// RepinfoOptions holds flags for the repinfo command.
type RepinfoOptions struct {
	Format string
	DB     string
	ID     string
	List   bool
}

// NewRepinfoCommand creates the repinfo command.
func NewRepinfoCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RepinfoOptions{}

	cmd := &cobra.Command{
		Use:   "repinfo [unit.cue]",
		Short: "Report sizes, alignments and alternates of every type",
		Long: `Elaborate the unit and report, for every type, its size and alignment
(in terms of discriminants when they depend on them), its array bounds,
and its alternates.

With --db the report is also saved to a SQLite database. --id prints a
saved report instead of elaborating a file, and --list lists the saved
reports.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format == "" {
				opts.Format = rootOpts.Config.Report.Format
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.DB == "" {
				opts.DB = rootOpts.Config.Report.Database
			}
			return runRepinfo(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "", "output format (text|json)")
	cmd.Flags().StringVar(&opts.DB, "db", "", "SQLite database to save to or read from")
	cmd.Flags().StringVar(&opts.ID, "id", "", "print the saved report with this unit ID")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list the saved reports")

	return cmd
}

func runRepinfo(cmd *cobra.Command, rootOpts *RootOptions, opts *RepinfoOptions, args []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	switch {
	case opts.List || opts.ID != "":
		if opts.DB == "" {
			return fmt.Errorf("--list and --id need a database (--db)")
		}
		if len(args) > 0 {
			return fmt.Errorf("--list and --id take no unit file")
		}
	case len(args) == 0:
		return fmt.Errorf("a unit file is required")
	}

	if opts.List {
		units, err := repinfo.List(ctx, opts.DB)
		if err != nil {
			return err
		}
		for _, u := range units {
			fmt.Fprintf(w, "%s  %s  %s\n", u.ID, u.Created.Local().Format(time.DateTime), u.Unit)
		}
		return nil
	}

	var r *repinfo.Report
	if opts.ID != "" {
		var err error
		if r, err = repinfo.Load(ctx, opts.DB, opts.ID); err != nil {
			return err
		}
	} else {
		c, err := rootOpts.open(args[0])
		if err != nil {
			return err
		}
		defer c.Close()
		if r, err = repinfo.Build(c); err != nil {
			return err
		}
		if opts.DB != "" {
			if err := r.Save(ctx, opts.DB); err != nil {
				return err
			}
		}
	}
	return r.Write(w, opts.Format, rootOpts.styled(w))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
