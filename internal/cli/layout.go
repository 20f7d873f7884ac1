package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/unit"
)

// LayoutOptions holds flags for the layout command.
type LayoutOptions struct {
	Literals bool
}

// NewLayoutCommand creates the layout command.
func NewLayoutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LayoutOptions{}

	cmd := &cobra.Command{
		Use:   "layout <unit.cue>",
		Short: "List every alternate in creation order",
		Long: `Elaborate the unit and list the registry: one line per alternate, in
the order the alternates were created. With --literals, also print the
initialization function built for each literal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := rootOpts.open(args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			return runLayout(c, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&opts.Literals, "literals", "l", false, "print literal initialization functions")

	return cmd
}

func runLayout(c *unit.Context, opts *LayoutOptions, w io.Writer) error {
	reg := c.Registry
	fmt.Fprintf(w, "unit %s: %d types, %d alternates\n", c.Model.Unit, len(c.Model.Types()), reg.Len())
	for gt := range reg.Each() {
		fmt.Fprintf(w, "%4d %s\n", gt, describe(reg, gt))
	}
	if !opts.Literals {
		return nil
	}
	for _, lit := range c.Literals {
		fn, err := c.InitFunc(lit)
		if err != nil {
			return fmt.Errorf("literal %s: %w", lit.Name, err)
		}
		fmt.Fprintf(w, "\n; %s : %s\n%s", lit.Name, lit.Value.Typ.Name, fn)
	}
	return nil
}

func describe(reg *gltype.Registry, gt gltype.GLType) string {
	parts := []string{reg.Source(gt).Name, reg.Kind(gt).String(), reg.Physical(gt).String()}
	if v, ok := reg.Size(gt); ok {
		parts = append(parts, fmt.Sprintf("size=%d", v))
	}
	if v, ok := reg.Alignment(gt); ok {
		parts = append(parts, fmt.Sprintf("align=%d", v))
	}
	if v, ok := reg.Bias(gt); ok {
		parts = append(parts, fmt.Sprintf("bias=%d", v))
	}
	if reg.IsMaxSize(gt) {
		parts = append(parts, "max_size")
	}
	if reg.IsDefault(gt) {
		parts = append(parts, "default")
	}
	return strings.Join(parts, " ")
}
