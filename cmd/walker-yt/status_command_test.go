package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"walkeryt/internal/runstore"
	"walkeryt/internal/streamhttp"
	"walkeryt/internal/testsupport"
)

func TestStatusListsRuns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := store.CreateRun(ctx, &runstore.Run{ID: "run-a", TrackID: "aaaaaaaaaaa", Keep: "vocals"}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := store.UpdateProgress(ctx, "run-a", runstore.Progress{Status: runstore.StatusReady, SegmentsTotal: 4, SegmentsCompleted: 2, BufferedBytes: 176400 * 60}); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if err := store.FinishRun(ctx, "run-a", runstore.StatusFinished, ""); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := store.CreateRun(ctx, &runstore.Run{ID: "run-b", TrackID: "bbbbbbbbbbb", Keep: "instrumental"}); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := store.FinishRun(ctx, "run-b", runstore.StatusTimedOut, "timed out waiting for the first chunk"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "Finished", "Timed Out", "2/4", "1m0s"} {
		requireContains(t, out, want)
	}

	out, _, err = runCLI(t, []string{"status", "bbbbbbbbbbb"}, configPath)
	if err != nil {
		t.Fatalf("status track: %v", err)
	}
	requireContains(t, out, "Status: Timed Out")
	requireContains(t, out, "Error: timed out waiting for the first chunk")
	if strings.Contains(out, "aaaaaaaaaaa") {
		t.Fatalf("expected only the requested track, got %q", out)
	}

	out, _, err = runCLI(t, []string{"status", "--json", "--limit", "1"}, configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var views []streamhttp.RunView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(views) != 1 {
		t.Fatalf("got %d runs want 1", len(views))
	}
}

func TestStatusEmptyHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"status"}, configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "No runs recorded")

	if _, _, err := runCLI(t, []string{"status", "ccccccccccc"}, configPath); err == nil {
		t.Fatal("expected error for a track without runs")
	}
}

func TestStatusTitle(t *testing.T) {
	tests := map[runstore.Status]string{
		runstore.StatusFinished:     "Finished",
		runstore.StatusTimedOut:     "Timed Out",
		runstore.StatusProducerDied: "Producer Died",
		"":                          "-",
	}
	for status, want := range tests {
		if got := statusTitle(status); got != want {
			t.Fatalf("statusTitle(%q) = %q, want %q", status, got, want)
		}
	}
}
