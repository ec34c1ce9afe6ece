package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNewTeeHandlerCollapses(t *testing.T) {
	if _, ok := newTeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler without outputs")
	}
	var buf bytes.Buffer
	only := slog.NewJSONHandler(&buf, nil)
	if h := newTeeHandler(nil, only); h != only {
		t.Fatal("expected the file handler to be returned unwrapped")
	}
	if h := newTeeHandler(only, nil); h != only {
		t.Fatal("expected the console handler to be returned unwrapped")
	}
}

func TestTeeHandlerRespectsEachLevel(t *testing.T) {
	var consoleBuf, fileBuf bytes.Buffer
	console := slog.NewTextHandler(&consoleBuf, &slog.HandlerOptions{Level: slog.LevelWarn})
	file := slog.NewTextHandler(&fileBuf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(newTeeHandler(console, file))
	if logger.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled on both sides")
	}

	logger.Info("segment appended")
	logger.Warn("segment skipped")

	if strings.Contains(consoleBuf.String(), "segment appended") {
		t.Fatalf("console received info record: %q", consoleBuf.String())
	}
	if !strings.Contains(consoleBuf.String(), "segment skipped") {
		t.Fatalf("console missing warning: %q", consoleBuf.String())
	}
	for _, want := range []string{"segment appended", "segment skipped"} {
		if !strings.Contains(fileBuf.String(), want) {
			t.Fatalf("file missing %q: %q", want, fileBuf.String())
		}
	}
}

func TestTeeHandlerWithAttrsPropagates(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(newTeeHandler(slog.NewTextHandler(&a, nil), slog.NewTextHandler(&b, nil))).With("run_id", "r-1")
	logger.Info("hello")

	for _, out := range []string{a.String(), b.String()} {
		if !strings.Contains(out, "run_id=r-1") {
			t.Fatalf("expected attrs on both outputs, got %q", out)
		}
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestTeeHandlerKeepsWritingAfterConsoleError(t *testing.T) {
	var fileBuf bytes.Buffer
	console := failingHandler{slog.NewTextHandler(&bytes.Buffer{}, nil)}
	h := newTeeHandler(console, slog.NewTextHandler(&fileBuf, nil))

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "buffer ready", 0))
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected console error, got %v", err)
	}
	if !strings.Contains(fileBuf.String(), "buffer ready") {
		t.Fatalf("file output skipped after console error: %q", fileBuf.String())
	}
}
