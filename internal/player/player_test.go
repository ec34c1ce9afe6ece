package player_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"walkeryt/internal/pcm"
	"walkeryt/internal/player"
	"walkeryt/internal/testsupport"
)

func newPlayer(t *testing.T, body string) *player.Player {
	t.Helper()
	script := filepath.Join(t.TempDir(), "mpv")
	testsupport.WriteScript(t, script, body)
	cfg := testsupport.NewConfig(t)
	cfg.Tools.Player = script
	return player.New(cfg, nil, nil)
}

func TestArgsDeclareRawStream(t *testing.T) {
	p := &player.Player{Binary: "mpv", Format: pcm.Stream, CacheSeconds: 60, ExtraArgs: []string{"--volume=80"}}
	got := p.Args("Song (instrumental)")
	want := []string{
		"--no-video",
		"--demuxer=rawaudio",
		"--demuxer-rawaudio-rate=44100",
		"--demuxer-rawaudio-channels=2",
		"--demuxer-rawaudio-format=s16le",
		"--cache=yes",
		"--demuxer-readahead-secs=60",
		"--force-media-title=Song (instrumental)",
		"--volume=80",
		"-",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %q want %q", got, want)
	}

	p.CacheSeconds = 0
	for _, arg := range p.Args("") {
		if strings.HasPrefix(arg, "--demuxer-readahead-secs") || strings.HasPrefix(arg, "--force-media-title") {
			t.Fatalf("unexpected arg %q", arg)
		}
	}
}

func TestPlayCopiesStreamToStdin(t *testing.T) {
	out := filepath.Join(t.TempDir(), "received")
	p := newPlayer(t, "cat > '"+out+"'\n")

	if err := p.Play(context.Background(), strings.NewReader("pcm-bytes"), "title"); err != nil {
		t.Fatalf("Play: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "pcm-bytes" {
		t.Fatalf("got %q want %q", data, "pcm-bytes")
	}
}

func TestPlayerQuitClosesStream(t *testing.T) {
	p := newPlayer(t, "exit 0\n")
	pr, pw := io.Pipe()
	defer pw.Close()

	if err := p.Play(context.Background(), pr, ""); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if _, err := pw.Write([]byte("x")); err == nil {
		t.Fatal("stream still open after player exit")
	}
}

func TestPlayFailureIncludesStderr(t *testing.T) {
	p := newPlayer(t, "echo 'audio device busy' >&2\nexit 3\n")

	err := p.Play(context.Background(), strings.NewReader("pcm"), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "audio device busy") {
		t.Fatalf("error %q missing stderr", err)
	}
}
