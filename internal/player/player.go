package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"syscall"

	"walkeryt/internal/config"
	"walkeryt/internal/logging"
	"walkeryt/internal/pcm"
	"walkeryt/internal/procs"
)

// Player launches the playback consumer.
type Player struct {
	Binary       string
	Format       pcm.Format
	CacheSeconds int
	ExtraArgs    []string
	Launcher     procs.Launcher
	Logger       *slog.Logger
}

// New builds a Player from configuration.
func New(cfg *config.Config, launcher procs.Launcher, logger *slog.Logger) *Player {
	return &Player{
		Binary:       cfg.Tools.Player,
		Format:       pcm.Stream,
		CacheSeconds: cfg.Player.CacheSeconds,
		ExtraArgs:    append([]string(nil), cfg.Player.ExtraArgs...),
		Launcher:     launcher,
		Logger:       logging.NewComponentLogger(logger, "player"),
	}
}

// Args returns the mpv command line for a stream with the given title.
func (p *Player) Args(title string) []string {
	args := []string{
		"--no-video",
		"--demuxer=rawaudio",
		"--demuxer-rawaudio-rate=" + strconv.Itoa(p.Format.SampleRate),
		"--demuxer-rawaudio-channels=" + strconv.Itoa(p.Format.Channels),
		"--demuxer-rawaudio-format=" + p.Format.Codec(),
		"--cache=yes",
	}
	if p.CacheSeconds > 0 {
		args = append(args, "--demuxer-readahead-secs="+strconv.Itoa(p.CacheSeconds))
	}
	if title != "" {
		args = append(args, "--force-media-title="+title)
	}
	args = append(args, p.ExtraArgs...)
	return append(args, "-")
}

// Play runs the player until it exits, copying stream to its stdin. When
// stream is an io.Closer it is closed once the player exits so a blocked read
// returns. A player that quits before the stream ends is not an error.
func (p *Player) Play(ctx context.Context, stream io.Reader, title string) error {
	logger := logging.WithContext(ctx, p.Logger)
	cmd := exec.CommandContext(ctx, p.Binary, p.Args(title)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("player stdin: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	wait, err := procs.Or(p.Launcher).Start(ctx, cmd, procs.RolePlayer)
	if err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	logger.Info("player started", logging.String("binary", p.Binary), logging.Int("pid", cmd.Process.Pid))

	copied := make(chan copyResult, 1)
	go func() {
		n, err := io.Copy(stdin, stream)
		_ = stdin.Close()
		copied <- copyResult{n: n, err: err}
	}()

	waitErr := wait()
	if closer, ok := stream.(io.Closer); ok {
		_ = closer.Close()
	}
	res := <-copied
	logger.Info("player exited", logging.Int64("streamed_bytes", res.n))

	if waitErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if tail := procs.Tail(stderr.String(), 400); tail != "" {
			return fmt.Errorf("player: %w: %s", waitErr, tail)
		}
		return fmt.Errorf("player: %w", waitErr)
	}
	if res.err != nil && !ignorableCopyError(res.err) {
		logger.Debug("stream copy ended early", logging.Error(res.err))
	}
	return nil
}

type copyResult struct {
	n   int64
	err error
}

func ignorableCopyError(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe)
}
