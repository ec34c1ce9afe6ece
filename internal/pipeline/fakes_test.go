package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"walkeryt/internal/config"
	"walkeryt/internal/pipeline"
	"walkeryt/internal/segment"
	"walkeryt/internal/separation"
	"walkeryt/internal/testsupport"
)

// fakeSplitter writes count placeholder slices.
type fakeSplitter struct {
	count int
	err   error
}

func (f fakeSplitter) Split(_ context.Context, _ string, dir string, _ time.Duration) ([]segment.Segment, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	segments := make([]segment.Segment, 0, f.count)
	for i := 0; i < f.count; i++ {
		path := filepath.Join(dir, fmt.Sprintf("segment_%06d.m4a", i))
		if err := os.WriteFile(path, []byte{byte(i)}, 0o644); err != nil {
			return nil, err
		}
		segments = append(segments, segment.Segment{Index: i, Path: path})
	}
	return segments, nil
}

// fakeSeparator writes size bytes of value index+1 per segment. Segments in
// missing produce no output; a segment in block waits for the context.
type fakeSeparator struct {
	size    int
	missing map[int]bool
	fail    map[int]error
	block   map[int]bool
	delay   time.Duration

	mu    sync.Mutex
	order []int
}

func (f *fakeSeparator) Separate(ctx context.Context, seg segment.Segment, outDir string, _ separation.Component, progress separation.ProgressFunc) (string, error) {
	f.mu.Lock()
	f.order = append(f.order, seg.Index)
	f.mu.Unlock()

	if f.block[seg.Index] {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := f.fail[seg.Index]; err != nil {
		return "", err
	}
	if f.missing[seg.Index] {
		return "", fmt.Errorf("%w: segment %d", separation.ErrNoOutput, seg.Index)
	}
	if progress != nil {
		progress(50)
		progress(100)
	}
	path := filepath.Join(outDir, seg.Name()+".wav")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, segmentBytes(seg.Index, f.size), 0o644)
}

func (f *fakeSeparator) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.order...)
}

func segmentBytes(index, size int) []byte {
	return bytes.Repeat([]byte{byte(index + 1)}, size)
}

// rawDecoder treats the separated file as already decoded samples.
type rawDecoder struct{}

func (rawDecoder) Decode(_ context.Context, path string, w io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// snapshotRecorder keeps every reported snapshot.
type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []pipeline.Snapshot
}

func (r *snapshotRecorder) Report(_ context.Context, snap pipeline.Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, snap)
	r.mu.Unlock()
}

func (r *snapshotRecorder) all() []pipeline.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.Snapshot(nil), r.snaps...)
}

func newRunContext(t *testing.T, threshold int64) (*config.Config, *pipeline.RunContext) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithPipeline(func(p *config.Pipeline) {
		p.ReadyThresholdBytes = threshold
		p.PollIntervalMS = 20
		p.ReadyTimeoutSeconds = 10
	}))
	track := pipeline.Track{ID: "dQw4w9WgXcQ", SourceURL: cfg.SourceURL("dQw4w9WgXcQ")}
	rc := pipeline.NewRunContext(cfg, track, separation.Vocals, nil)
	rc.Track.Input = filepath.Join(rc.Dir, "input.m4a")
	testsupport.WriteFile(t, rc.Track.Input, 128)
	return cfg, rc
}

func waitDone(t *testing.T, run *pipeline.Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}
}

var errBoom = errors.New("boom")
