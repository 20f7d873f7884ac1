// Package cli implements the glrep command line.
package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Lucretia/gnat-llvm/arrays"
	"github.com/Lucretia/gnat-llvm/config"
	"github.com/Lucretia/gnat-llvm/diag"
	"github.com/Lucretia/gnat-llvm/gltype"
	"github.com/Lucretia/gnat-llvm/lower"
	"github.com/Lucretia/gnat-llvm/repinfo"
	"github.com/Lucretia/gnat-llvm/shape"
	"github.com/Lucretia/gnat-llvm/unit"
	"github.com/Lucretia/gnat-llvm/verify"
	"github.com/Lucretia/gnat-llvm/wasmgen"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Config   *config.Config
	Log      *zap.Logger
	File     string
	LogLevel string
	Color    string
}

// NewRootCommand creates the root command for glrep.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "glrep",
		Short: "glrep - representation alternates of source types",
		Long: `Elaborate a unit description and inspect how each of its types is
represented: alternates, sizes in terms of discriminants, and array bounds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.Log != nil {
				_ = opts.Log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.File, "config", "c", "", "configuration file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override the configured log level")
	cmd.PersistentFlags().StringVar(&opts.Color, "color", "", "override the configured color mode (auto|always|never)")

	cmd.AddCommand(NewLayoutCommand(opts))
	cmd.AddCommand(NewRepinfoCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewBrowseCommand(opts))

	return cmd
}

func (o *RootOptions) setup() error {
	cfg := config.Default()
	if o.File != "" {
		var err error
		if cfg, err = config.Load(o.File); err != nil {
			return err
		}
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.Color != "" {
		cfg.Report.Color = o.Color
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := cfg.NewLogger()
	if err != nil {
		return err
	}
	o.Config, o.Log = cfg, log

	arrays.SetLogger(log.Named("arrays"))
	diag.SetLogger(log.Named("diag"))
	gltype.SetLogger(log.Named("gltype"))
	lower.SetLogger(log.Named("lower"))
	repinfo.SetLogger(log.Named("repinfo"))
	shape.SetLogger(log.Named("shape"))
	unit.SetLogger(log.Named("unit"))
	verify.SetLogger(log.Named("verify"))
	wasmgen.SetLogger(log.Named("wasmgen"))
	return nil
}

// open loads and elaborates the unit description at path.
func (o *RootOptions) open(path string) (*unit.Context, error) {
	return unit.Open(o.Config, o.Log.Named("unit"), path)
}

// styled decides whether output to w gets colors.
func (o *RootOptions) styled(w io.Writer) bool {
	switch o.Config.Report.Color {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
