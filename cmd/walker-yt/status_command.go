package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"walkeryt/internal/download"
	"walkeryt/internal/pcm"
	"walkeryt/internal/runstore"
	"walkeryt/internal/streamhttp"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [video-id|url]",
		Short: "Show recent runs, or the latest run of one track",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			var runs []*runstore.Run
			if len(args) == 1 {
				src, err := download.ResolveSource(args[0], cfg.Download.URLTemplate)
				if err != nil {
					return err
				}
				run, err := store.LatestForTrack(cmd.Context(), src.TrackID)
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("no runs recorded for %s", src.TrackID)
				}
				runs = []*runstore.Run{run}
			} else {
				runs, err = store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
			}

			if asJSON {
				views := make([]streamhttp.RunView, 0, len(runs))
				for _, run := range runs {
					views = append(views, streamhttp.ViewOf(run))
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}

			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.TrackID,
					run.Keep,
					colorStatus(run.Status, colorize),
					fmt.Sprintf("%d/%d", run.SegmentsCompleted, run.SegmentsTotal),
					strconv.Itoa(run.SegmentsDegraded),
					pcm.Stream.Duration(run.BufferedBytes).Round(time.Second).String(),
					formatAge(run.UpdatedAt),
				})
			}
			fmt.Fprintln(out, renderTable([]column{
				{title: "Track"},
				{title: "Keep"},
				{title: "Status"},
				{title: "Segments", right: true},
				{title: "Gaps", right: true},
				{title: "Buffered", right: true},
				{title: "Updated"},
			}, rows))

			if len(args) == 1 {
				return printRunDetail(cmd, store, runs[0])
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print runs as JSON")
	return cmd
}

func printRunDetail(cmd *cobra.Command, store *runstore.Store, run *runstore.Run) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Status: %s\n", statusTitle(run.Status))
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "Error: %s\n", run.ErrorMessage)
	}
	degraded, err := store.DegradedSegments(cmd.Context(), run.ID)
	if err != nil {
		return err
	}
	for _, d := range degraded {
		fmt.Fprintf(out, "Skipped segment %d: %s\n", d.Index, d.Reason)
	}
	if run.BufferPath != "" {
		fmt.Fprintf(out, "Buffer: %s\n", run.BufferPath)
	}
	return nil
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	age := time.Since(t)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	case age < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(age.Hours()))
	default:
		return t.Local().Format("2006-01-02")
	}
}
