package pcm

import (
	"fmt"
	"time"
)

// Format describes interleaved signed little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// Stream is the format of the separation buffer.
var Stream = Format{SampleRate: 44100, Channels: 2, BitDepth: 16}

// FrameSize returns the byte width of one sample across all channels.
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

// BytesPerSecond returns the data rate of the format.
func (f Format) BytesPerSecond() int64 {
	return int64(f.SampleRate) * int64(f.FrameSize())
}

// Duration converts a byte count into playback time.
func (f Format) Duration(n int64) time.Duration {
	bps := f.BytesPerSecond()
	if bps <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// Align truncates n down to a whole number of frames.
func (f Format) Align(n int64) int64 {
	frame := int64(f.FrameSize())
	if frame <= 0 {
		return n
	}
	return n - n%frame
}

// Codec returns the ffmpeg sample format name, such as "s16le".
func (f Format) Codec() string {
	return fmt.Sprintf("s%dle", f.BitDepth)
}

func (f Format) String() string {
	return fmt.Sprintf("%d Hz, %d ch, %s", f.SampleRate, f.Channels, f.Codec())
}
