package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"Pylon/internal/calc/baseplate"
	"Pylon/internal/calc/envelope"
	"Pylon/internal/calc/foundation"
	"Pylon/internal/calc/loads"
	"Pylon/internal/calc/members"
	"Pylon/internal/engine"
)

// calcCmd decodes the input, runs one engine operation and prints its
// envelope. A failed calculation still prints a failure envelope.
func calcCmd[T any](o *options, use, short, op string, run func(*cobra.Command, *engine.Engine, T) (envelope.Envelope, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in T
			if err := o.readInput(cmd, &in); err != nil {
				return err
			}
			env, err := run(cmd, o.eng, in)
			if err != nil {
				if perr := o.print(cmd, o.eng.Failure(op, err)); perr != nil {
					return perr
				}
				fmt.Fprintln(cmd.ErrOrStderr(), "pylon:", err)
				return errFailed
			}
			return o.print(cmd, env)
		},
	}
}

func loadsCmd(o *options) *cobra.Command {
	return calcCmd(o, "loads", "Derive wind, dead and snow loads for a sign", engine.OpLoads,
		func(_ *cobra.Command, e *engine.Engine, in loads.Input) (envelope.Envelope, error) {
			return e.DeriveLoads(in)
		})
}

func membersCmd(o *options) *cobra.Command {
	return calcCmd(o, "members", "Rank catalog members for a demand moment", engine.OpMembers,
		func(cmd *cobra.Command, e *engine.Engine, in members.Request) (envelope.Envelope, error) {
			return e.SelectMembers(cmd.Context(), in)
		})
}

func footingCmd(o *options) *cobra.Command {
	return calcCmd(o, "footing", "Solve direct-burial embedment depth", engine.OpFooting,
		func(_ *cobra.Command, e *engine.Engine, in foundation.Input) (envelope.Envelope, error) {
			return e.SolveFooting(in)
		})
}

func baseplateCmd(o *options) *cobra.Command {
	return calcCmd(o, "baseplate", "Check a base plate connection", engine.OpBaseplate,
		func(_ *cobra.Command, e *engine.Engine, in baseplate.Input) (envelope.Envelope, error) {
			return e.CheckBaseplate(in)
		})
}

func autosizeCmd(o *options) *cobra.Command {
	return calcCmd(o, "autosize", "Find the cheapest passing base plate configuration", engine.OpAutosize,
		func(cmd *cobra.Command, e *engine.Engine, in baseplate.Input) (envelope.Envelope, error) {
			return e.AutoSizeBaseplate(cmd.Context(), in)
		})
}

func weldCmd(o *options) *cobra.Command {
	return calcCmd(o, "weld", "Recommend a fillet weld size", engine.OpWeld,
		func(_ *cobra.Command, e *engine.Engine, in baseplate.WeldInput) (envelope.Envelope, error) {
			return e.RecommendWeld(in)
		})
}

func designCmd(o *options) *cobra.Command {
	return calcCmd(o, "design", "Run loads, members, footing and connection in one pass", engine.OpDesign,
		func(cmd *cobra.Command, e *engine.Engine, in engine.DesignRequest) (envelope.Envelope, error) {
			return e.Design(cmd.Context(), in)
		})
}

func batchCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Run a JSON array of design requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var reqs []engine.DesignRequest
			if err := o.readInput(cmd, &reqs); err != nil {
				return err
			}
			out, err := o.eng.Batch(cmd.Context(), reqs)
			if err != nil {
				return err
			}
			return o.print(cmd, out)
		},
	}
}

func versionsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "Print solver, constants and catalog versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.print(cmd, o.eng.Versions())
		},
	}
}
