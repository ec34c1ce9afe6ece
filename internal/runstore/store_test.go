package runstore_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"walkeryt/internal/runstore"
)

func openStore(t *testing.T) *runstore.Store {
	t.Helper()
	store, err := runstore.Open(filepath.Join(t.TempDir(), "state", "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newRun(t *testing.T, store *runstore.Store, id, track string) *runstore.Run {
	t.Helper()
	run := &runstore.Run{ID: id, TrackID: track, SourceURL: "https://example.com/" + track, Keep: "instrumental"}
	if err := store.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	return run
}

func TestCreateAndGetRun(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	newRun(t, store, "run-1", "track-a")

	got, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got == nil {
		t.Fatal("expected run")
	}
	if got.Status != runstore.StatusPending || got.TrackID != "track-a" || got.Keep != "instrumental" {
		t.Fatalf("unexpected run: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp")
	}

	missing, err := store.GetRun(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil,nil for missing run, got %v %v", missing, err)
	}
}

func TestCreateRunRequiresIdentifiers(t *testing.T) {
	store := openStore(t)
	if err := store.CreateRun(context.Background(), &runstore.Run{ID: "x"}); err == nil {
		t.Fatal("expected error without track id")
	}
	if err := store.CreateRun(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil run")
	}
}

func TestUpdateProgressSetsReadyOnce(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	newRun(t, store, "run-1", "track-a")

	if err := store.UpdateProgress(ctx, "run-1", runstore.Progress{Status: runstore.StatusSeparating, SegmentsTotal: 4, SegmentsCompleted: 1, BufferedBytes: 100}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	got, _ := store.GetRun(ctx, "run-1")
	if !got.ReadyAt.IsZero() {
		t.Fatal("expected ready_at unset while separating")
	}

	if err := store.UpdateProgress(ctx, "run-1", runstore.Progress{Status: runstore.StatusReady, SegmentsTotal: 4, SegmentsCompleted: 2, BufferedBytes: 600000}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	got, _ = store.GetRun(ctx, "run-1")
	firstReady := got.ReadyAt
	if firstReady.IsZero() {
		t.Fatal("expected ready_at once ready")
	}

	time.Sleep(2 * time.Millisecond)
	if err := store.UpdateProgress(ctx, "run-1", runstore.Progress{Status: runstore.StatusStreaming, SegmentsTotal: 4, SegmentsCompleted: 3, BufferedBytes: 900000}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	got, _ = store.GetRun(ctx, "run-1")
	if !got.ReadyAt.Equal(firstReady) {
		t.Fatalf("ready_at changed: %v -> %v", firstReady, got.ReadyAt)
	}
	if got.SegmentsCompleted != 3 || got.BufferedBytes != 900000 {
		t.Fatalf("unexpected counters: %+v", got)
	}

	err := store.UpdateProgress(ctx, "missing", runstore.Progress{Status: runstore.StatusReady})
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows for missing run, got %v", err)
	}
}

func TestRecordDegradedIsIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	newRun(t, store, "run-1", "track-a")

	for i := 0; i < 2; i++ {
		if err := store.RecordDegraded(ctx, "run-1", 2, "no separated output"); err != nil {
			t.Fatalf("RecordDegraded: %v", err)
		}
	}
	if err := store.RecordDegraded(ctx, "run-1", 5, "no separated output"); err != nil {
		t.Fatalf("RecordDegraded: %v", err)
	}

	got, _ := store.GetRun(ctx, "run-1")
	if got.SegmentsDegraded != 2 {
		t.Fatalf("expected 2 degraded segments, got %d", got.SegmentsDegraded)
	}
	segs, err := store.DegradedSegments(ctx, "run-1")
	if err != nil {
		t.Fatalf("DegradedSegments: %v", err)
	}
	if len(segs) != 2 || segs[0].Index != 2 || segs[1].Index != 5 {
		t.Fatalf("unexpected degraded segments: %+v", segs)
	}
}

func TestFinishRunRequiresTerminalStatus(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	newRun(t, store, "run-1", "track-a")

	if err := store.FinishRun(ctx, "run-1", runstore.StatusSeparating, ""); err == nil {
		t.Fatal("expected error for non-terminal status")
	}
	if err := store.FinishRun(ctx, "run-1", runstore.StatusProducerDied, "producer died before first chunk"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	got, _ := store.GetRun(ctx, "run-1")
	if got.Status != runstore.StatusProducerDied || got.ErrorMessage == "" || got.FinishedAt.IsZero() {
		t.Fatalf("unexpected finished run: %+v", got)
	}
}

func TestMarkInterruptedOnlyTouchesActiveRuns(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	newRun(t, store, "done", "track-a")
	newRun(t, store, "active", "track-b")
	if err := store.FinishRun(ctx, "done", runstore.StatusFinished, ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := store.UpdateProgress(ctx, "active", runstore.Progress{Status: runstore.StatusStreaming}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}

	n, err := store.MarkInterrupted(ctx)
	if err != nil {
		t.Fatalf("MarkInterrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 interrupted run, got %d", n)
	}
	active, _ := store.GetRun(ctx, "active")
	if active.Status != runstore.StatusInterrupted || active.ErrorMessage != runstore.InterruptedReason {
		t.Fatalf("unexpected interrupted run: %+v", active)
	}
	done, _ := store.GetRun(ctx, "done")
	if done.Status != runstore.StatusFinished {
		t.Fatalf("finished run was modified: %+v", done)
	}
}

func TestListRunsAndLatestForTrack(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	newRun(t, store, "r1", "track-a")
	time.Sleep(2 * time.Millisecond)
	newRun(t, store, "r2", "track-b")
	time.Sleep(2 * time.Millisecond)
	newRun(t, store, "r3", "track-a")

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "r3" || runs[1].ID != "r2" {
		t.Fatalf("unexpected run order: %v", runIDs(runs))
	}

	latest, err := store.LatestForTrack(ctx, "track-a")
	if err != nil {
		t.Fatalf("LatestForTrack: %v", err)
	}
	if latest == nil || latest.ID != "r3" {
		t.Fatalf("unexpected latest run: %+v", latest)
	}
}

func TestPruneFinished(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	newRun(t, store, "old", "track-a")
	newRun(t, store, "live", "track-b")
	if err := store.FinishRun(ctx, "old", runstore.StatusFinished, ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	n, err := store.PruneFinished(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("PruneFinished: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned run, got %d", n)
	}
	if got, _ := store.GetRun(ctx, "live"); got == nil {
		t.Fatal("active run should survive pruning")
	}
}

func TestProcessRegistry(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	procs := []runstore.Process{
		{PID: 4242, PGID: 4242, Role: "separator", RunID: "run-1", Marker: "run-1", Command: "demucs"},
		{PID: 4343, PGID: 4343, Role: "player", RunID: "run-1", Marker: "run-1", Command: "mpv"},
	}
	for _, proc := range procs {
		if err := store.RegisterProcess(ctx, proc); err != nil {
			t.Fatalf("RegisterProcess: %v", err)
		}
	}
	if err := store.RegisterProcess(ctx, runstore.Process{PID: 0}); err == nil {
		t.Fatal("expected error for invalid pid")
	}

	listed, err := store.ListProcesses(ctx)
	if err != nil {
		t.Fatalf("ListProcesses: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 processes, got %d", len(listed))
	}

	if err := store.RemoveProcess(ctx, 4242); err != nil {
		t.Fatalf("RemoveProcess: %v", err)
	}
	if err := store.RemoveProcess(ctx, 9999); err != nil {
		t.Fatalf("RemoveProcess of missing pid: %v", err)
	}
	listed, _ = store.ListProcesses(ctx)
	if len(listed) != 1 || listed[0].Role != "player" {
		t.Fatalf("unexpected remaining processes: %+v", listed)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := runstore.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.RawExecForTest("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	store.Close()

	if _, err := runstore.Open(path); !errors.Is(err, runstore.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
}

func runIDs(runs []*runstore.Run) []string {
	ids := make([]string, 0, len(runs))
	for _, r := range runs {
		ids = append(ids, r.ID)
	}
	return ids
}
