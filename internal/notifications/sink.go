package notifications

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"walkeryt/internal/config"
	"walkeryt/internal/logging"
)

// Urgency mirrors the freedesktop notification urgency levels.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

// Token identifies a previously delivered update so it can be replaced.
type Token string

// NoProgress marks an update without a progress bar.
const NoProgress = -1

// Update is one progress notification.
type Update struct {
	Title   string
	Body    string
	Percent int
	Urgency Urgency
	Replace Token
	// Final marks the last update for a run: success or failure.
	Final  bool
	Failed bool
}

// Sink delivers updates.
type Sink interface {
	Progress(ctx context.Context, update Update) (Token, error)
}

// NewSink builds the sinks enabled in cfg. With nothing enabled it returns a
// no-op sink.
func NewSink(cfg *config.Config, logger *slog.Logger) Sink {
	var sinks []Sink
	if cfg.Notifications.Desktop {
		sinks = append(sinks, NewDesktop(cfg.Tools.NotifySend))
	}
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
		sinks = append(sinks, NewNtfy(cfg.Notifications.NtfyServer, topic, timeout))
	}
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		sinks = append(sinks, NewConsole(os.Stderr))
	}
	switch len(sinks) {
	case 0:
		return Noop{}
	case 1:
		return &logged{sink: sinks[0], logger: logging.NewComponentLogger(logger, "notifications")}
	default:
		return &logged{sink: NewFanout(sinks...), logger: logging.NewComponentLogger(logger, "notifications")}
	}
}

// Noop discards updates.
type Noop struct{}

func (Noop) Progress(context.Context, Update) (Token, error) { return "", nil }

// logged absorbs delivery failures: a missing notification daemon must never
// fail a run.
type logged struct {
	sink   Sink
	logger *slog.Logger
	once   sync.Once
}

func (l *logged) Progress(ctx context.Context, update Update) (Token, error) {
	token, err := l.sink.Progress(ctx, update)
	if err != nil {
		l.once.Do(func() {
			logging.WarnWithContext(l.logger, "notification delivery failed", "notification_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notify-send or ntfy settings"),
				logging.String(logging.FieldImpact, "progress is only visible in logs"),
			)
		})
	}
	return token, nil
}
