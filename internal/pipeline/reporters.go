package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"walkeryt/internal/logging"
	"walkeryt/internal/notifications"
	"walkeryt/internal/runstore"
	"walkeryt/internal/services"
)

// StoreReporter persists snapshots to the run history.
type StoreReporter struct {
	store  *runstore.Store
	logger *slog.Logger

	mu       sync.Mutex
	degraded map[string]int
	// closed holds runs whose terminal status was written. Snapshots taken
	// before that write can arrive after it and are dropped.
	closed map[string]struct{}
}

// NewStoreReporter writes progress for every run it sees into store.
func NewStoreReporter(store *runstore.Store, logger *slog.Logger) *StoreReporter {
	return &StoreReporter{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "runstore"),
		degraded: make(map[string]int),
		closed:   make(map[string]struct{}),
	}
}

func (s *StoreReporter) Report(ctx context.Context, snap Snapshot) {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.closed[snap.RunID]; ok {
		return
	}

	for _, d := range snap.Degraded[s.degraded[snap.RunID]:] {
		if err := s.store.RecordDegraded(ctx, snap.RunID, d.Index, d.Reason); err != nil {
			s.warn("record degraded segment", err)
			return
		}
	}
	s.degraded[snap.RunID] = len(snap.Degraded)

	status := snap.State.StoreStatus()
	if snap.State.Terminal() {
		// Counters are written with the last live status; the terminal
		// status follows.
		status = runstore.StatusSeparating
		if snap.Ready {
			status = runstore.StatusReady
		}
		if snap.Streaming {
			status = runstore.StatusStreaming
		}
	}
	err := s.store.UpdateProgress(ctx, snap.RunID, runstore.Progress{
		Status:            status,
		SegmentsTotal:     snap.SegmentsTotal,
		SegmentsCompleted: snap.SegmentsCompleted,
		BufferedBytes:     snap.BufferedBytes,
	})
	if err != nil {
		s.warn("update run progress", err)
		return
	}

	switch snap.State {
	case StateFinished:
		err = s.store.FinishRun(ctx, snap.RunID, runstore.StatusFinished, "")
	case StateError:
		err = s.store.FinishRun(ctx, snap.RunID, services.FailureStatus(snap.Err), services.Diagnostic(snap.Err))
	}
	if err != nil {
		s.warn("finish run", err)
	}
	if snap.State.Terminal() {
		delete(s.degraded, snap.RunID)
		s.closed[snap.RunID] = struct{}{}
	}
}

func (s *StoreReporter) warn(op string, err error) {
	logging.WarnWithContext(s.logger, "run history write failed", "runstore_write_failed",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldImpact, "status output may lag the live run"),
	)
}

// DownloadShare is the slice of the progress bar reserved for the download.
const DownloadShare = 10

// ProgressReporter turns snapshots into replaceable progress notifications.
// Updates are handed to one delivery goroutine so a slow sink never stalls
// the worker. Only the newest pending update is delivered; a queued final
// update is never replaced by a progress one. The sink's token is forwarded
// on every delivery so one notification is updated in place for the run.
type ProgressReporter struct {
	sink notifications.Sink

	mu       sync.Mutex
	pending  *notifications.Update
	percent  int
	label    string
	finished bool
	closed   bool

	wake      chan struct{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// token is only touched by the delivery goroutine.
	token notifications.Token
}

// NewProgressReporter reports to sink until Close or Finish.
func NewProgressReporter(sink notifications.Sink) *ProgressReporter {
	if sink == nil {
		sink = notifications.Noop{}
	}
	p := &ProgressReporter{
		sink:    sink,
		percent: -1,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.deliver()
	return p
}

// Download reports download progress in the first DownloadShare percent.
func (p *ProgressReporter) Download(ctx context.Context, percent float64) {
	scaled := int(percent * DownloadShare / 100)
	p.send(ctx, notifications.Update{
		Title:   "Processing",
		Body:    "Downloading audio",
		Percent: min(max(scaled, 0), DownloadShare),
		Urgency: notifications.UrgencyCritical,
	})
}

func (p *ProgressReporter) Report(ctx context.Context, snap Snapshot) {
	update := notifications.Update{
		Title:   "Processing",
		Body:    snap.Label(),
		Percent: DownloadShare + snap.Percent()*(100-DownloadShare)/100,
		Urgency: notifications.UrgencyCritical,
	}
	switch snap.State {
	case StateFinished:
		update.Title = "Done"
		update.Urgency = notifications.UrgencyNormal
		update.Final = true
	case StateError:
		update.Title = "Failed"
		update.Percent = notifications.NoProgress
		update.Final = true
		update.Failed = true
	}
	p.send(ctx, update)
}

// Finish closes the notification with a caller-decided outcome, such as a
// readiness timeout that the worker never observed, and stops delivery once
// it is sent.
func (p *ProgressReporter) Finish(ctx context.Context, err error) {
	if err == nil {
		p.send(ctx, notifications.Update{Title: "Done", Body: "Playback finished", Percent: 100, Urgency: notifications.UrgencyNormal, Final: true})
	} else {
		p.send(ctx, notifications.Update{
			Title:   "Failed",
			Body:    services.Diagnostic(err),
			Percent: notifications.NoProgress,
			Urgency: notifications.UrgencyCritical,
			Final:   true,
			Failed:  true,
		})
	}
	p.Close()
}

// Close delivers whatever is still pending and stops the delivery goroutine.
// Later updates are dropped. It is safe to call more than once.
func (p *ProgressReporter) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		close(p.stop)
	})
	<-p.done
}

// Started reports that playback began.
func (p *ProgressReporter) Started(ctx context.Context, snap Snapshot) {
	p.send(ctx, notifications.Update{
		Title:   "Playing " + snap.Component.Label(),
		Body:    snap.Label(),
		Percent: DownloadShare + snap.Percent()*(100-DownloadShare)/100,
		Urgency: notifications.UrgencyNormal,
	})
}

func (p *ProgressReporter) send(_ context.Context, update notifications.Update) {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return
	case p.finished && !update.Final:
		p.mu.Unlock()
		return
	case !update.Final && update.Percent == p.percent && update.Body == p.label:
		p.mu.Unlock()
		return
	}
	p.percent = update.Percent
	p.label = update.Body
	p.finished = p.finished || update.Final
	p.pending = &update
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *ProgressReporter) deliver() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.flush()
		case <-p.stop:
			p.flush()
			return
		}
	}
}

func (p *ProgressReporter) flush() {
	p.mu.Lock()
	update := p.pending
	p.pending = nil
	p.mu.Unlock()
	if update == nil {
		return
	}
	update.Replace = p.token
	token, _ := p.sink.Progress(context.Background(), *update)
	if token != "" {
		p.token = token
	}
}
