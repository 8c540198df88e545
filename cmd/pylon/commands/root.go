package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"Pylon/internal/calc/constants"
	"Pylon/internal/config"
	"Pylon/internal/engine"
	"Pylon/internal/logger"
)

type options struct {
	input        string
	catalogXLSX  string
	constantsDir string
	pack         string
	budget       time.Duration
	compact      bool
	verbose      bool

	eng *engine.Engine
}

// errFailed marks a calculation whose failure envelope was already printed.
var errFailed = errors.New("calculation failed")

func Execute() error {
	root := NewRoot()
	err := root.Execute()
	if err != nil && !errors.Is(err, errFailed) {
		fmt.Fprintln(root.ErrOrStderr(), "pylon:", err)
	}
	return err
}

func NewRoot() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "pylon",
		Short:         "Sign and pole structural calculations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&o.input, "input", "i", "-", "JSON input file, - for stdin")
	f.StringVar(&o.catalogXLSX, "catalog-xlsx", "", "member catalog spreadsheet (default: builtin catalog)")
	f.StringVar(&o.constantsDir, "constants-dir", "", "extra directory of constants packs")
	f.StringVar(&o.pack, "pack", "", "constants pack as name@version (default: "+constants.DefaultName+"@"+constants.DefaultVersion+")")
	f.DurationVar(&o.budget, "budget", 0, "optimization time budget (default from PYLON_SEARCH_BUDGET)")
	f.BoolVar(&o.compact, "compact", false, "print single-line JSON")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		loadsCmd(o), membersCmd(o), footingCmd(o), baseplateCmd(o), autosizeCmd(o),
		weldCmd(o), designCmd(o), batchCmd(o), versionsCmd(o), reportCmd(o),
	)
	return root
}

// setup merges PYLON_* configuration under the flags and builds the engine.
func (o *options) setup(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("catalog-xlsx") {
		o.catalogXLSX = cfg.CatalogXLSX
	}
	if !flags.Changed("constants-dir") {
		o.constantsDir = cfg.ConstantsDir
	}
	if !flags.Changed("pack") {
		o.pack = cfg.ConstantsPack
	}
	if !flags.Changed("budget") {
		o.budget = cfg.SearchBudget
	}

	level := "error"
	if o.verbose {
		level = "debug"
	}
	lvl, err := logger.ParseLevel(level)
	if err != nil {
		return err
	}

	snap, err := engine.Load(engine.Source{
		CatalogXLSX:   o.catalogXLSX,
		ConstantsDir:  o.constantsDir,
		ConstantsPack: o.pack,
	})
	if err != nil {
		return err
	}
	o.eng = engine.New(snap,
		engine.WithSearchBudget(o.budget),
		engine.WithWorkers(cfg.Workers),
		engine.WithLogger(logger.New(cmd.ErrOrStderr(), lvl)),
	)
	return nil
}

func (o *options) readInput(cmd *cobra.Command, dst any) error {
	var r io.Reader = cmd.InOrStdin()
	if o.input != "-" {
		f, err := os.Open(o.input)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", o.input, err)
	}
	return nil
}

func (o *options) print(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if !o.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
