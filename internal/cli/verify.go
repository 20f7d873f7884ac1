package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Lucretia/gnat-llvm/verify"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	Engine  string
	Samples int
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify <unit.cue>",
		Short: "Check integer alternate conversions",
		Long: `Convert values of every integer and biased alternate from the primitive
representation and back, in the interpreter, in WebAssembly, or both, and
report the values that do not survive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Engine == "" {
				opts.Engine = rootOpts.Config.Verify.Engine
			}
			if opts.Samples == 0 {
				opts.Samples = rootOpts.Config.Verify.MaxSamples
			}
			c, err := rootOpts.open(args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			res, err := verify.Run(cmd.Context(), c, verify.Options{
				Engine:     verify.Engine(opts.Engine),
				MaxSamples: opts.Samples,
			})
			if err != nil {
				return err
			}
			printChecks(cmd.OutOrStdout(), res)
			if n := res.Failed(); n > 0 {
				return fmt.Errorf("%d of %d alternates failed", n, len(res.Checks))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Engine, "engine", "", "where to run conversions (interp|wasm|both)")
	cmd.Flags().IntVarP(&opts.Samples, "samples", "n", 0, "most values tried per alternate")

	return cmd
}

func printChecks(w io.Writer, res *verify.Result) {
	for _, c := range res.Checks {
		head := fmt.Sprintf("%s %s %s", c.Type, c.Kind, c.Physical)
		switch {
		case c.Skipped != "":
			fmt.Fprintf(w, "SKIP %s: %s\n", head, c.Skipped)
		case c.OK():
			fmt.Fprintf(w, "ok   %s: %d values in %d .. %d\n", head, c.Samples, c.Low, c.High)
		default:
			fmt.Fprintf(w, "FAIL %s\n", head)
			for _, f := range c.Failures {
				fmt.Fprintf(w, "     %s\n", f)
			}
		}
	}
}
