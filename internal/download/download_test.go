package download_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"walkeryt/internal/download"
	"walkeryt/internal/testsupport"
)

const template = "https://www.youtube.com/watch?v=%s"

func TestResolveSource(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, tt := range tests {
		src, err := download.ResolveSource(tt.in, template)
		if err != nil {
			t.Fatalf("ResolveSource(%q): %v", tt.in, err)
		}
		if src.TrackID != tt.want {
			t.Fatalf("ResolveSource(%q) id = %q, want %q", tt.in, src.TrackID, tt.want)
		}
		if src.URL != "https://www.youtube.com/watch?v="+tt.want {
			t.Fatalf("unexpected URL %q", src.URL)
		}
	}

	for _, bad := range []string{"", "short", "https://example.com/watch?v=dQw4w9WgXcQ", "https://youtube.com/watch"} {
		if _, err := download.ResolveSource(bad, template); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestFetchReusesCachedInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := cfg.TrackDir("dQw4w9WgXcQ")
	cached := filepath.Join(dir, "input.m4a")
	testsupport.WriteFile(t, cached, 256)

	calls := 0
	d := download.New(cfg, nil, download.WithFetchFunc(func(context.Context, string, string, download.Progress) (string, error) {
		calls++
		return "", nil
	}))
	var last float64
	path, err := d.Fetch(context.Background(), "https://example", dir, func(p float64) { last = p })
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if path != cached || calls != 0 {
		t.Fatalf("expected cached %q without fetch, got %q after %d calls", cached, path, calls)
	}
	if last != 100 {
		t.Fatalf("expected progress 100, got %v", last)
	}
}

func TestFetchIgnoresPartialCache(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := cfg.TrackDir("abc")
	testsupport.WriteFile(t, filepath.Join(dir, "input.m4a.part"), 64)

	d := download.New(cfg, nil, download.WithFetchFunc(func(_ context.Context, _ string, tmpl string, progress download.Progress) (string, error) {
		if filepath.Base(tmpl) != "input.%(ext)s" {
			t.Fatalf("unexpected output template %q", tmpl)
		}
		progress(50)
		out := filepath.Join(dir, "input.webm")
		testsupport.WriteFile(t, out, 128)
		return out, nil
	}))
	path, err := d.Fetch(context.Background(), "https://example", dir, func(float64) {})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if filepath.Base(path) != "input.webm" {
		t.Fatalf("unexpected path %q", path)
	}
}

func TestFetchRemovesPartialsOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := cfg.TrackDir("abc")
	boom := errors.New("HTTP Error 403")

	d := download.New(cfg, nil, download.WithFetchFunc(func(context.Context, string, string, download.Progress) (string, error) {
		testsupport.WriteFile(t, filepath.Join(dir, "input.m4a.part"), 64)
		testsupport.WriteFile(t, filepath.Join(dir, "input.m4a"), 64)
		return "", boom
	}))
	if _, err := d.Fetch(context.Background(), "https://example", dir, nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "input.*"))
	if len(matches) != 0 {
		t.Fatalf("expected partial files removed, found %v", matches)
	}
	if _, ok := download.Cached(dir); ok {
		t.Fatal("expected no cached input after failure")
	}
}

func TestFetchFailsWhenNothingWritten(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := cfg.TrackDir("abc")
	d := download.New(cfg, nil, download.WithFetchFunc(func(context.Context, string, string, download.Progress) (string, error) {
		return filepath.Join(dir, "input.m4a"), nil
	}))
	if _, err := d.Fetch(context.Background(), "https://example", dir, nil); err == nil {
		t.Fatal("expected error when no file was written")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected track dir to exist: %v", err)
	}
}
