package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"walkeryt/internal/guard"
	"walkeryt/internal/logging"
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running instance and every process it started",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			g := guard.New(cfg, store, ctx.log())
			result, err := g.Supersede(cmd.Context())
			if err != nil {
				return err
			}
			interrupted, err := store.MarkInterrupted(cmd.Context())
			if err != nil {
				logging.WarnWithContext(ctx.log(), "mark interrupted runs failed", "runstore_write_failed", logging.Error(err))
			}

			out := cmd.OutOrStdout()
			if result.InstancePID == 0 && result.Children == 0 {
				fmt.Fprintln(out, "No running instance")
			}
			if result.InstancePID != 0 {
				fmt.Fprintf(out, "Stopped instance (pid %d)\n", result.InstancePID)
			}
			if result.Children > 0 {
				fmt.Fprintf(out, "Stopped %d orphaned process(es)\n", result.Children)
			}
			if result.Stale > 0 {
				fmt.Fprintf(out, "Removed %d stale registry row(s)\n", result.Stale)
			}
			if interrupted > 0 {
				fmt.Fprintf(out, "Marked %d run(s) interrupted\n", interrupted)
			}
			return nil
		},
	}
}
