package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"walkeryt/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, directories, and notification reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			failed := 0

			fmt.Fprintln(out, renderSectionHeader("Dependencies", colorize))
			for _, dep := range preflight.CheckSystemDeps(cfg) {
				switch {
				case dep.Available:
					fmt.Fprintln(out, renderStatusLine(dep.Name, statusOK, dep.Command, colorize))
				case dep.Optional:
					fmt.Fprintln(out, renderStatusLine(dep.Name, statusWarn, dep.Detail, colorize))
				default:
					failed++
					fmt.Fprintln(out, renderStatusLine(dep.Name, statusError, dep.Detail, colorize))
				}
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderSectionHeader("Environment", colorize))
			results := preflight.RunAll(cmd.Context(), cfg)
			results = append(results,
				preflight.CheckNtfyFromConfig(cmd.Context(), cfg),
				preflight.CheckSeparationDevice(cmd.Context(), cfg.Separation.Device),
			)
			for _, r := range results {
				switch {
				case r.Passed:
					fmt.Fprintln(out, renderStatusLine(r.Name, statusOK, r.Detail, colorize))
				case r.Advisory:
					fmt.Fprintln(out, renderStatusLine(r.Name, statusWarn, r.Detail, colorize))
				default:
					failed++
					fmt.Fprintln(out, renderStatusLine(r.Name, statusError, r.Detail, colorize))
				}
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, ctx.configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Run history", statusInfo, cfg.DatabasePath(), colorize))
			fmt.Fprintln(out, renderStatusLine("Log file", statusInfo, cfg.LogPath(), colorize))

			if failed > 0 {
				noun := "checks"
				if failed == 1 {
					noun = "check"
				}
				return fmt.Errorf("%d %s failed", failed, noun)
			}
			return nil
		},
	}
}
