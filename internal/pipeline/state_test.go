package pipeline_test

import (
	"testing"

	"walkeryt/internal/pipeline"
	"walkeryt/internal/runstore"
	"walkeryt/internal/separation"
)

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to pipeline.State
		ok       bool
	}{
		{pipeline.StateIdle, pipeline.StateSplitting, true},
		{pipeline.StateIdle, pipeline.StateSeparating, false},
		{pipeline.StateSplitting, pipeline.StateSeparating, true},
		{pipeline.StateSplitting, pipeline.StateError, true},
		{pipeline.StateSeparating, pipeline.StateReady, true},
		{pipeline.StateReady, pipeline.StateStreaming, true},
		{pipeline.StateReady, pipeline.StateSeparating, false},
		{pipeline.StateStreaming, pipeline.StateFinished, true},
		{pipeline.StateFinished, pipeline.StateError, false},
		{pipeline.StateError, pipeline.StateSplitting, false},
	}
	for _, tt := range tests {
		if got := pipeline.CanTransition(tt.from, tt.to); got != tt.ok {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestStateHelpers(t *testing.T) {
	if pipeline.StateStreaming.StoreStatus() != runstore.StatusStreaming {
		t.Fatal("unexpected store status for streaming")
	}
	if !pipeline.StateError.Terminal() || pipeline.StateReady.Terminal() {
		t.Fatal("unexpected terminal classification")
	}
}

func TestSnapshotPercentAndLabel(t *testing.T) {
	snap := pipeline.Snapshot{
		Component:         separation.Instrumental,
		State:             pipeline.StateSeparating,
		Segment:           1,
		SegmentsTotal:     4,
		SegmentsCompleted: 1,
		ModelPercent:      50,
	}
	if got := snap.Percent(); got != 37 {
		t.Fatalf("Percent = %d, want 37", got)
	}
	if got := snap.Label(); got != "Separating instrumental 2/4 · 50%" {
		t.Fatalf("unexpected label %q", got)
	}

	snap.Degraded = []pipeline.Degradation{{Index: 0}, {Index: 2}}
	snap.Segment = 3
	snap.ModelPercent = 0
	if got := snap.Label(); got != "Separating instrumental 4/4 · 2 gaps" {
		t.Fatalf("unexpected label %q", got)
	}

	done := pipeline.Snapshot{State: pipeline.StateFinished, SegmentsTotal: 4}
	if done.Percent() != 100 {
		t.Fatalf("finished percent = %d", done.Percent())
	}
}
