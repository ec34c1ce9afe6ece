package main

import (
	"path/filepath"
	"testing"

	"walkeryt/internal/testsupport"
)

func TestDoctorReportsHealthyEnvironment(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"doctor"}, configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "Demucs:")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "ntfy:")
	requireContains(t, out, cfg.DatabasePath())
}

func TestDoctorFailsOnMissingTool(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	cfg.Tools.Demucs = filepath.Join(t.TempDir(), "missing-demucs")
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, []string{"doctor"}, configPath)
	if err == nil {
		t.Fatal("expected doctor to fail")
	}
	requireContains(t, err.Error(), "1 check failed")
	requireContains(t, out, "[ERROR]")
}

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Demucs", statusError, "not found", false)
	want := "  Demucs:            [ERROR] not found"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if colored := renderStatusLine("Demucs", statusOK, "", true); colored[:len(ansiGreen)] != ansiGreen {
		t.Fatalf("expected green prefix, got %q", colored)
	}
}
