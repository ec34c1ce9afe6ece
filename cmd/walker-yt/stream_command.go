package main

import (
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"walkeryt/internal/download"
	"walkeryt/internal/pcm"
	"walkeryt/internal/streamhttp"
)

func newStreamCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stream <video-id|url>",
		Short: "Write the latest run's buffer to stdout, following it while it grows",
		Long: "Writes raw " + pcm.Stream.String() + " samples to stdout. The output ends when the run " +
			"finishes or fails, so it can be piped into any player:\n\n" +
			"  walker-yt stream <id> | mpv --demuxer=rawaudio -",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			src, err := download.ResolveSource(args[0], cfg.Download.URLTemplate)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reader, _, err := streamhttp.OpenStream(runCtx, cfg, store, src.TrackID, ctx.log())
			if err != nil {
				if errors.Is(err, streamhttp.ErrNoRun) {
					return fmt.Errorf("no run recorded for %s; start one with walker-yt separate", src.TrackID)
				}
				return err
			}
			go func() {
				<-runCtx.Done()
				_ = reader.Close()
			}()
			defer reader.Close()

			if _, err := io.Copy(cmd.OutOrStdout(), reader); err != nil && runCtx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
