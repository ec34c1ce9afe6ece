package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"walkeryt/internal/separation"
	"walkeryt/internal/services"
)

// Reporter observes run snapshots. Report is called from the worker and
// from the caller goroutine, so implementations must be safe for concurrent
// use. Reporters absorb their own failures.
type Reporter interface {
	Report(ctx context.Context, snap Snapshot)
}

// Degradation is a segment that was skipped.
type Degradation struct {
	Index  int
	Reason string
}

// Snapshot is a consistent copy of a run's progress.
type Snapshot struct {
	RunID     string
	TrackID   string
	Component separation.Component
	State     State
	// Segment is the index being separated, or -1 before the first one.
	Segment           int
	SegmentsTotal     int
	SegmentsCompleted int
	Degraded          []Degradation
	ModelPercent      int
	BufferedBytes     int64
	Ready             bool
	Streaming         bool
	ReadyAt           time.Time
	Err               error
}

// Processed counts segments that were appended or skipped.
func (s Snapshot) Processed() int {
	return s.SegmentsCompleted + len(s.Degraded)
}

// Percent is the pipeline's completion from 0 to 100.
func (s Snapshot) Percent() int {
	switch {
	case s.State == StateFinished:
		return 100
	case s.SegmentsTotal <= 0:
		return 0
	}
	done := s.Processed() * 100
	if s.Segment >= s.Processed() && s.ModelPercent > 0 {
		done += s.ModelPercent
	}
	percent := done / s.SegmentsTotal
	if percent > 99 {
		percent = 99
	}
	return percent
}

// Label is a one-line description for notifications.
func (s Snapshot) Label() string {
	var b strings.Builder
	switch s.State {
	case StateIdle:
		b.WriteString("Waiting")
	case StateSplitting:
		b.WriteString("Splitting track")
	case StateSeparating, StateReady, StateStreaming:
		fmt.Fprintf(&b, "Separating %s %d/%d", s.Component.Label(), min(s.Segment+1, s.SegmentsTotal), s.SegmentsTotal)
		if s.ModelPercent > 0 && s.ModelPercent < 100 {
			fmt.Fprintf(&b, " · %d%%", s.ModelPercent)
		}
	case StateFinished:
		fmt.Fprintf(&b, "Separated %d segments", s.SegmentsTotal)
	case StateError:
		b.WriteString("Failed: ")
		b.WriteString(services.Diagnostic(s.Err))
	}
	if n := len(s.Degraded); n > 0 {
		noun := "gaps"
		if n == 1 {
			noun = "gap"
		}
		fmt.Fprintf(&b, " · %d %s", n, noun)
	}
	return b.String()
}

// Run is one execution of the coordinator loop.
type Run struct {
	rc        *RunContext
	reporters []Reporter
	buffered  func() int64
	changed   func() <-chan struct{}
	done      chan struct{}

	mu           sync.Mutex
	state        State
	segment      int
	total        int
	completed    int
	degraded     []Degradation
	modelPercent int
	ready        bool
	streaming    bool
	readyAt      time.Time
	err          error
}

func newRun(rc *RunContext, reporters []Reporter, buffered func() int64, changed func() <-chan struct{}) *Run {
	return &Run{
		rc:        rc,
		reporters: reporters,
		buffered:  buffered,
		changed:   changed,
		done:      make(chan struct{}),
		state:     StateIdle,
		segment:   -1,
	}
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.rc.RunID }

// Context returns the run's context.
func (r *Run) Context() *RunContext { return r.rc }

// Done is closed when the worker exits.
func (r *Run) Done() <-chan struct{} { return r.done }

// Buffered returns the durable buffer size.
func (r *Run) Buffered() int64 { return r.buffered() }

// Changed returns a channel closed on the next buffer append.
func (r *Run) Changed() <-chan struct{} { return r.changed() }

// State returns the current state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the failure that ended the run, if any.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Wait blocks until the worker exits or ctx ends.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the run's progress.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		RunID:             r.rc.RunID,
		TrackID:           r.rc.Track.ID,
		Component:         r.rc.Component,
		State:             r.state,
		Segment:           r.segment,
		SegmentsTotal:     r.total,
		SegmentsCompleted: r.completed,
		Degraded:          append([]Degradation(nil), r.degraded...),
		ModelPercent:      r.modelPercent,
		BufferedBytes:     r.buffered(),
		Ready:             r.ready,
		Streaming:         r.streaming,
		ReadyAt:           r.readyAt,
		Err:               r.err,
	}
}

// Attach records that a consumer started reading the buffer. It moves a
// Ready run to Streaming; a run that already finished stays Finished.
func (r *Run) Attach(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateSeparating && !r.ready && r.buffered() >= r.rc.ReadyThreshold {
		// The gate saw the bytes before the worker recorded readiness.
		r.markReadyLocked()
	}
	switch {
	case r.state == StateReady:
		r.state = StateStreaming
		r.streaming = true
	case r.state == StateFinished && r.ready:
		r.streaming = true
	default:
		state := r.state
		r.mu.Unlock()
		return transitionError{from: state, to: StateStreaming}
	}
	r.mu.Unlock()
	r.report(ctx)
	return nil
}

func (r *Run) transition(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !CanTransition(r.state, to) {
		return transitionError{from: r.state, to: to}
	}
	r.state = to
	return nil
}

func (r *Run) setTotal(n int) {
	r.mu.Lock()
	r.total = n
	r.mu.Unlock()
}

// beginSegment records the segment now being separated. Once the run is
// Ready or Streaming the state no longer changes per segment.
func (r *Run) beginSegment(index int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segment = index
	r.modelPercent = 0
	if r.state == StateSplitting || r.state == StateSeparating {
		r.state = StateSeparating
	}
}

func (r *Run) setModelPercent(percent int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if percent == r.modelPercent {
		return false
	}
	r.modelPercent = percent
	return true
}

// completeSegment counts an appended segment and records readiness the first
// time the buffer reaches the threshold. It reports whether this call made
// the run ready.
func (r *Run) completeSegment() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	r.modelPercent = 0
	if r.ready || r.buffered() < r.rc.ReadyThreshold {
		return false
	}
	r.markReadyLocked()
	return true
}

func (r *Run) markReadyLocked() {
	r.ready = true
	r.readyAt = time.Now()
	if r.state == StateSeparating {
		r.state = StateReady
	}
}

func (r *Run) addDegraded(index int, reason string) {
	r.mu.Lock()
	r.degraded = append(r.degraded, Degradation{Index: index, Reason: reason})
	r.modelPercent = 0
	r.mu.Unlock()
}

func (r *Run) finish() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !CanTransition(r.state, StateFinished) {
		return transitionError{from: r.state, to: StateFinished}
	}
	r.state = StateFinished
	return nil
}

// fail moves the run to Error. A failure before the buffer became playable
// is reported as a dead producer.
func (r *Run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Terminal() {
		return
	}
	if !r.ready {
		err = fmt.Errorf("%w: %w", services.ErrProducerDied, err)
	}
	r.state = StateError
	r.err = err
}

func (r *Run) report(ctx context.Context) {
	if len(r.reporters) == 0 {
		return
	}
	snap := r.Snapshot()
	for _, reporter := range r.reporters {
		reporter.Report(ctx, snap)
	}
}
