package logging

import "testing"

func TestProgressSamplerDefaults(t *testing.T) {
	s := NewProgressSampler(0)
	if s.bucketSize != 10 {
		t.Fatalf("bucketSize = %v, want 10", s.bucketSize)
	}
	if s.lastBucket != -1 {
		t.Fatalf("lastBucket = %d, want -1", s.lastBucket)
	}
}

func TestProgressSamplerNilSampler(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50, "separating") {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(25)
	steps := []struct {
		percent float64
		stage   string
		want    bool
	}{
		{0, "separating", true},
		{5, "separating", false},
		{24, "separating", false},
		{25, "separating", true},
		{30, "separating", false},
		{80, "separating", true},
		{150, "separating", true},
		{100, "separating", false},
		{0, "appending", true},
		{-1, "appending", false},
	}
	for i, step := range steps {
		if got := s.ShouldLog(step.percent, step.stage); got != step.want {
			t.Fatalf("step %d (%v%% %s): ShouldLog = %v, want %v", i, step.percent, step.stage, got, step.want)
		}
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(50, "separating")
	s.Reset()
	if !s.ShouldLog(50, "separating") {
		t.Fatal("expected sampler to emit again after reset")
	}
}
