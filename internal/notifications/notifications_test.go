package notifications_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"walkeryt/internal/notifications"
	"walkeryt/internal/testsupport"
)

func TestDesktopArgs(t *testing.T) {
	d := notifications.NewDesktop("")
	args := strings.Join(d.Args(notifications.Update{
		Title:   "Processing",
		Body:    "Separating vocals 1/3",
		Percent: 40,
		Urgency: notifications.UrgencyCritical,
		Replace: "17",
	}), " ")
	for _, want := range []string{
		"-u critical",
		"-p",
		"-r 17",
		"-h int:value:40",
		"-h string:x-canonical-private-synchronous:walker-yt",
		"-- Processing Separating vocals 1/3",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("expected %q in %q", want, args)
		}
	}

	plain := strings.Join(d.Args(notifications.Update{Title: "Done", Percent: notifications.NoProgress}), " ")
	if strings.Contains(plain, "int:value") || strings.Contains(plain, "-r ") {
		t.Fatalf("unexpected progress hints in %q", plain)
	}
}

func TestDesktopReturnsNotificationID(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "notify-send")
	testsupport.WriteScript(t, bin, `echo "$@" >> "`+filepath.Join(dir, "calls")+`"
echo 42
`)
	d := notifications.NewDesktop(bin)

	token, err := d.Progress(context.Background(), notifications.Update{Title: "Processing", Percent: 0})
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if token != "42" {
		t.Fatalf("got %q want %q", token, "42")
	}
	if _, err := d.Progress(context.Background(), notifications.Update{Title: "Processing", Percent: 10, Replace: token}); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	calls, _ := os.ReadFile(filepath.Join(dir, "calls"))
	lines := strings.Split(strings.TrimSpace(string(calls)), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "-r 42") {
		t.Fatalf("expected replace on second call, got %q", calls)
	}
}

func TestDesktopKeepsTokenOnGarbageOutput(t *testing.T) {
	bin := filepath.Join(t.TempDir(), "notify-send")
	testsupport.WriteScript(t, bin, "echo 'not a number'\n")
	token, err := notifications.NewDesktop(bin).Progress(context.Background(), notifications.Update{Replace: "7", Percent: 5})
	if err != nil || token != "7" {
		t.Fatalf("expected previous token, got %q, %v", token, err)
	}
}

func TestNtfyPostsOnlyFinalUpdates(t *testing.T) {
	var (
		requests int
		title    string
		priority string
		body     string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		title = r.Header.Get("Title")
		priority = r.Header.Get("Priority")
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		if r.URL.Path != "/walker" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	n := notifications.NewNtfy(server.URL+"/", "walker", time.Second)
	if _, err := n.Progress(context.Background(), notifications.Update{Title: "Processing", Percent: 50}); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if requests != 0 {
		t.Fatalf("expected intermediate update to be dropped, got %d requests", requests)
	}
	if _, err := n.Progress(context.Background(), notifications.Update{Title: "Failed", Body: "timed out waiting for the first chunk", Final: true, Failed: true}); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected one request, got %d", requests)
	}
	if title != "walker-yt - Failed" || priority != "high" || body != "timed out waiting for the first chunk" {
		t.Fatalf("unexpected request title=%q priority=%q body=%q", title, priority, body)
	}
}

func TestNtfyReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic reserved", http.StatusForbidden)
	}))
	defer server.Close()

	n := notifications.NewNtfy("", server.URL+"/topic", time.Second)
	if n.Endpoint() != server.URL+"/topic" {
		t.Fatalf("unexpected endpoint %q", n.Endpoint())
	}
	_, err := n.Progress(context.Background(), notifications.Update{Title: "Done", Final: true})
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestConsoleRedrawsLine(t *testing.T) {
	var buf bytes.Buffer
	c := notifications.NewConsole(&buf)
	if _, err := c.Progress(context.Background(), notifications.Update{Title: "Processing", Body: "Splitting", Percent: 10}); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if _, err := c.Progress(context.Background(), notifications.Update{Title: "Done", Percent: 100, Final: true}); err != nil {
		t.Fatalf("Progress: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "[ 10%] Processing: Splitting") || !strings.HasSuffix(out, "[100%] Done\n") {
		t.Fatalf("unexpected console output %q", out)
	}
}

type recordingSink struct {
	replaces []notifications.Token
	next     int
	err      error
}

func (r *recordingSink) Progress(_ context.Context, update notifications.Update) (notifications.Token, error) {
	r.replaces = append(r.replaces, update.Replace)
	r.next++
	return notifications.Token(strings.Repeat("x", r.next)), r.err
}

func TestFanoutTracksTokensPerSink(t *testing.T) {
	a := &recordingSink{}
	boom := errors.New("dbus unavailable")
	b := &recordingSink{err: boom}
	f := notifications.NewFanout(a, b)

	token, err := f.Progress(context.Background(), notifications.Update{Title: "Processing"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	again, _ := f.Progress(context.Background(), notifications.Update{Title: "Processing", Replace: token})
	if again != token {
		t.Fatalf("expected stable fan-out token, got %q then %q", token, again)
	}
	if a.replaces[0] != "" || a.replaces[1] != "x" {
		t.Fatalf("expected sink token forwarded, got %v", a.replaces)
	}
}

func TestNewSinkWithNothingEnabledIsNoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.Desktop = false
	cfg.Notifications.NtfyTopic = ""
	sink := notifications.NewSink(cfg, nil)
	if _, err := sink.Progress(context.Background(), notifications.Update{Title: "x"}); err != nil {
		t.Fatalf("Progress: %v", err)
	}
}
