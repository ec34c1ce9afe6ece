package pcm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"walkeryt/internal/procs"
)

// Decoder turns an audio file into raw samples in a fixed Format.
type Decoder interface {
	Decode(ctx context.Context, path string, w io.Writer) error
}

// ErrFormatMismatch reports a container whose samples cannot be copied
// without resampling or remixing.
var ErrFormatMismatch = errors.New("pcm format mismatch")

// FFmpegDecoder shells out to ffmpeg and reads raw samples from its stdout.
type FFmpegDecoder struct {
	Binary   string
	Format   Format
	Launcher procs.Launcher
}

// NewFFmpegDecoder builds a decoder targeting the stream format.
func NewFFmpegDecoder(binary string) *FFmpegDecoder {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegDecoder{Binary: binary, Format: Stream}
}

func (d *FFmpegDecoder) Decode(ctx context.Context, path string, w io.Writer) error {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-i", path,
		"-f", d.Format.Codec(),
		"-acodec", "pcm_" + d.Format.Codec(),
		"-ar", strconv.Itoa(d.Format.SampleRate),
		"-ac", strconv.Itoa(d.Format.Channels),
		"pipe:1",
	}
	cmd := exec.CommandContext(ctx, d.Binary, args...)
	cmd.Stdout = w
	if err := procs.RunCaptured(ctx, d.Launcher, cmd, procs.RoleDecoder); err != nil {
		return fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}
	return nil
}

// WAVDecoder copies samples straight out of WAV files that already match the
// target format. Anything else goes to Fallback.
type WAVDecoder struct {
	Format   Format
	Fallback Decoder
	// FramesPerRead bounds memory per read call.
	FramesPerRead int
}

// NewWAVDecoder builds a native WAV decoder that defers to fallback for
// mismatched or non-WAV input.
func NewWAVDecoder(fallback Decoder) *WAVDecoder {
	return &WAVDecoder{Format: Stream, Fallback: fallback, FramesPerRead: 8192}
}

func (d *WAVDecoder) Decode(ctx context.Context, path string, w io.Writer) error {
	err := d.decodeNative(ctx, path, w)
	if errors.Is(err, ErrFormatMismatch) && d.Fallback != nil {
		return d.Fallback.Decode(ctx, path, w)
	}
	return err
}

func (d *WAVDecoder) decodeNative(ctx context.Context, path string, w io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	if !dec.IsValidFile() {
		return fmt.Errorf("%w: %s is not a valid wav file", ErrFormatMismatch, path)
	}
	if int(dec.SampleRate) != d.Format.SampleRate ||
		int(dec.NumChans) != d.Format.Channels ||
		int(dec.BitDepth) != d.Format.BitDepth ||
		dec.WavAudioFormat != 1 {
		return fmt.Errorf("%w: %s is %d Hz, %d ch, %d bit (format %d)",
			ErrFormatMismatch, path, dec.SampleRate, dec.NumChans, dec.BitDepth, dec.WavAudioFormat)
	}

	frames := d.FramesPerRead
	if frames <= 0 {
		frames = 8192
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: d.Format.Channels, SampleRate: d.Format.SampleRate},
		Data:           make([]int, frames*d.Format.Channels),
		SourceBitDepth: d.Format.BitDepth,
	}
	out := make([]byte, 0, len(buf.Data)*2)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := dec.PCMBuffer(buf)
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("read wav samples %s: %w", path, readErr)
		}
		if n > 0 {
			out = out[:0]
			for _, sample := range buf.Data[:n] {
				out = binary.LittleEndian.AppendUint16(out, uint16(int16(sample)))
			}
			if _, err := w.Write(out); err != nil {
				return fmt.Errorf("write samples: %w", err)
			}
		}
		if n == 0 || readErr != nil {
			return nil
		}
	}
}
